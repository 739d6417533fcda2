package stores

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/rebac"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisAssignmentStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := NewRedisAssignmentStore(testRedis(t))

	until := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	a := rebac.RoleAssignment{
		Role:     "editor",
		Scope:    "project-1",
		Schedule: "* 9-17 * * 1-5",
		Window:   rebac.TimeWindow{Until: until},
	}
	if err := store.Save(ctx, "user-1", a); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "user-1", rebac.RoleAssignment{Role: "viewer"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	list, err := store.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(list))
	}

	var scoped *rebac.RoleAssignment
	for i := range list {
		if list[i].Role == "editor" {
			scoped = &list[i]
		}
	}
	if scoped == nil {
		t.Fatalf("editor assignment missing")
	}
	if scoped.Scope != "project-1" || scoped.Schedule != "* 9-17 * * 1-5" || !scoped.Window.Until.Equal(until) {
		t.Fatalf("assignment fields lost: %+v", scoped)
	}
}

func TestRedisAssignmentStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewRedisAssignmentStore(testRedis(t))

	if err := store.Save(ctx, "user-1", rebac.RoleAssignment{Role: "viewer"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "user-1", "viewer", ""); err != nil {
		t.Fatalf("delete: %v", err)
	}

	list, err := store.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty after delete, got %+v", list)
	}
}

func TestRedisAssignmentStoreActorContext(t *testing.T) {
	ctx := context.Background()
	store := NewRedisAssignmentStore(testRedis(t))

	if err := store.Save(ctx, "user-1", rebac.RoleAssignment{Role: "viewer"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	actor, err := store.ActorContext(ctx, "user-1")
	if err != nil {
		t.Fatalf("actor context: %v", err)
	}
	if actor.ID != "user-1" || len(actor.Assignments) != 1 {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}
