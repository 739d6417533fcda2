package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/rebac"
)

// RedisAssignmentStore keeps actor role assignments in Redis hashes
// (key: assign:{actorID}, field: roleID|scope, value: assignment JSON).
type RedisAssignmentStore struct {
	client *redis.Client
	keyFmt string // format string, e.g. "assign:%s"
}

func NewRedisAssignmentStore(client *redis.Client) *RedisAssignmentStore {
	return &RedisAssignmentStore{client: client, keyFmt: "assign:%s"}
}

func (r *RedisAssignmentStore) key(actorID string) string {
	return fmt.Sprintf(r.keyFmt, actorID)
}

func field(a rebac.RoleAssignment) string {
	return a.Role + "|" + a.Scope
}

func (r *RedisAssignmentStore) Save(ctx context.Context, actorID string, a rebac.RoleAssignment) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.key(actorID), field(a), string(data)).Err()
}

func (r *RedisAssignmentStore) Delete(ctx context.Context, actorID, roleID, scope string) error {
	return r.client.HDel(ctx, r.key(actorID), roleID+"|"+scope).Err()
}

func (r *RedisAssignmentStore) List(ctx context.Context, actorID string) ([]rebac.RoleAssignment, error) {
	vals, err := r.client.HGetAll(ctx, r.key(actorID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]rebac.RoleAssignment, 0, len(vals))
	for _, raw := range vals {
		var a rebac.RoleAssignment
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("decode assignment for %s: %w", actorID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// ActorContext assembles the actor's evaluation context from Redis.
func (r *RedisAssignmentStore) ActorContext(ctx context.Context, actorID string) (*rebac.ActorContext, error) {
	assignments, err := r.List(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return &rebac.ActorContext{ID: actorID, Assignments: assignments}, nil
}
