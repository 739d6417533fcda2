package stores

import (
	"context"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/rebac"
)

// SQLPolicyStore persists full policy state in SQL (squealx). Load gathers
// everything into a Config so callers can build an immutable Snapshot; the
// engine itself never touches the database.
type SQLPolicyStore struct {
	db *squealx.DB
}

func NewSQLPolicyStore(db *squealx.DB) *SQLPolicyStore {
	return &SQLPolicyStore{db: db}
}

func (s *SQLPolicyStore) SaveResource(ctx context.Context, r *rebac.Resource) error {
	q := `INSERT INTO resources(id, class, parent) VALUES(:id, :class, :parent)
		ON CONFLICT(id) DO UPDATE SET class=:class, parent=:parent`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": r.ID, "class": r.Class, "parent": r.Parent})
	return err
}

func (s *SQLPolicyStore) SaveRole(ctx context.Context, r *rebac.Role) error {
	q := `INSERT INTO roles(id, name) VALUES(:id, :name)
		ON CONFLICT(id) DO UPDATE SET name=:name`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": r.ID, "name": r.Name})
	return err
}

func (s *SQLPolicyStore) SavePermission(ctx context.Context, p *rebac.Permission) error {
	q := `INSERT INTO permissions(id, name, level) VALUES(:id, :name, :level)
		ON CONFLICT(id) DO UPDATE SET name=:name, level=:level`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": p.ID, "name": p.Name, "level": p.Level})
	return err
}

func (s *SQLPolicyStore) GrantMatrixPermission(ctx context.Context, roleID, permission string) error {
	q := `INSERT INTO role_matrix(role_id, permission) VALUES(:role_id, :permission)
		ON CONFLICT(role_id, permission) DO NOTHING`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"role_id": roleID, "permission": permission})
	return err
}

func (s *SQLPolicyStore) RevokeMatrixPermission(ctx context.Context, roleID, permission string) error {
	q := `DELETE FROM role_matrix WHERE role_id = :role_id AND permission = :permission`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"role_id": roleID, "permission": permission})
	return err
}

func (s *SQLPolicyStore) SaveAssignment(ctx context.Context, actorID string, a rebac.RoleAssignment) error {
	q := `INSERT INTO role_assignments(actor_id, role_id, scope, valid_from, valid_until, schedule_cron, revoked_at)
		VALUES(:actor_id, :role_id, :scope, :valid_from, :valid_until, :schedule_cron, :revoked_at)
		ON CONFLICT(actor_id, role_id, scope) DO UPDATE SET
		valid_from=:valid_from, valid_until=:valid_until, schedule_cron=:schedule_cron, revoked_at=:revoked_at`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"actor_id":      actorID,
		"role_id":       a.Role,
		"scope":         a.Scope,
		"valid_from":    sqlNullTimeOrNil(a.Window.From),
		"valid_until":   sqlNullTimeOrNil(a.Window.Until),
		"schedule_cron": a.Schedule,
		"revoked_at":    sqlNullTimeOrNil(a.RevokedAt),
	})
	return err
}

func (s *SQLPolicyStore) SaveOverride(ctx context.Context, g *rebac.OverrideGrant) error {
	if !g.Effect.Valid() {
		return fmt.Errorf("override %s: unknown effect %q", g.ID, g.Effect)
	}
	q := `INSERT INTO override_grants(id, authority, resource, action, effect, valid_from, valid_until, schedule_cron, revoked_at)
		VALUES(:id, :authority, :resource, :action, :effect, :valid_from, :valid_until, :schedule_cron, :revoked_at)
		ON CONFLICT(id) DO UPDATE SET
		authority=:authority, resource=:resource, action=:action, effect=:effect,
		valid_from=:valid_from, valid_until=:valid_until, schedule_cron=:schedule_cron, revoked_at=:revoked_at`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":            g.ID,
		"authority":     g.Authority,
		"resource":      g.Resource,
		"action":        g.Action,
		"effect":        string(g.Effect),
		"valid_from":    sqlNullTimeOrNil(g.Window.From),
		"valid_until":   sqlNullTimeOrNil(g.Window.Until),
		"schedule_cron": g.Schedule,
		"revoked_at":    sqlNullTimeOrNil(g.RevokedAt),
	})
	return err
}

func (s *SQLPolicyStore) SaveDelegation(ctx context.Context, d *rebac.DelegationRule) error {
	q := `INSERT INTO delegation_rules(granter, grantee, can_grant, can_modify, can_revoke)
		VALUES(:granter, :grantee, :can_grant, :can_modify, :can_revoke)
		ON CONFLICT(granter, grantee) DO UPDATE SET
		can_grant=:can_grant, can_modify=:can_modify, can_revoke=:can_revoke`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"granter":    d.Granter,
		"grantee":    d.Grantee,
		"can_grant":  boolToInt(d.CanGrant),
		"can_modify": boolToInt(d.CanModify),
		"can_revoke": boolToInt(d.CanRevoke),
	})
	return err
}

// Load reads the whole policy state back into a Config.
func (s *SQLPolicyStore) Load(ctx context.Context) (*rebac.Config, error) {
	cfg := &rebac.Config{Matrix: map[string][]string{}}

	rows, err := s.db.NamedQueryContext(ctx, `SELECT id, class, parent FROM resources ORDER BY id`, map[string]any{})
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		r := &rebac.Resource{}
		if err := rows.Scan(&r.ID, &r.Class, &r.Parent); err != nil {
			rows.Close()
			return nil, err
		}
		cfg.Resources = append(cfg.Resources, r)
	}
	rows.Close()

	rows, err = s.db.NamedQueryContext(ctx, `SELECT id, name FROM roles ORDER BY id`, map[string]any{})
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		r := &rebac.Role{}
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			rows.Close()
			return nil, err
		}
		cfg.Roles = append(cfg.Roles, r)
	}
	rows.Close()

	rows, err = s.db.NamedQueryContext(ctx, `SELECT id, name, level FROM permissions ORDER BY id`, map[string]any{})
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		p := &rebac.Permission{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Level); err != nil {
			rows.Close()
			return nil, err
		}
		cfg.Permissions = append(cfg.Permissions, p)
	}
	rows.Close()

	rows, err = s.db.NamedQueryContext(ctx, `SELECT role_id, permission FROM role_matrix ORDER BY role_id, permission`, map[string]any{})
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var roleID, perm string
		if err := rows.Scan(&roleID, &perm); err != nil {
			rows.Close()
			return nil, err
		}
		cfg.Matrix[roleID] = append(cfg.Matrix[roleID], perm)
	}
	rows.Close()

	rows, err = s.db.NamedQueryContext(ctx, `SELECT actor_id, role_id, scope, valid_from, valid_until, schedule_cron, revoked_at FROM role_assignments ORDER BY actor_id, role_id, scope`, map[string]any{})
	if err != nil {
		return nil, err
	}
	actorIdx := map[string]int{}
	for rows.Next() {
		var actorID, roleID, scope, schedule string
		var fromRaw, untilRaw, revokedRaw interface{}
		if err := rows.Scan(&actorID, &roleID, &scope, &fromRaw, &untilRaw, &schedule, &revokedRaw); err != nil {
			rows.Close()
			return nil, err
		}
		a := rebac.RoleAssignment{
			Role:     roleID,
			Scope:    scope,
			Schedule: schedule,
			Window: rebac.TimeWindow{
				From:  scanTime(fromRaw),
				Until: scanTime(untilRaw),
			},
			RevokedAt: scanTime(revokedRaw),
		}
		idx, ok := actorIdx[actorID]
		if !ok {
			idx = len(cfg.Actors)
			actorIdx[actorID] = idx
			cfg.Actors = append(cfg.Actors, rebac.ActorConfig{ID: actorID})
		}
		cfg.Actors[idx].Assignments = append(cfg.Actors[idx].Assignments, a)
	}
	rows.Close()

	rows, err = s.db.NamedQueryContext(ctx, `SELECT id, authority, resource, action, effect, valid_from, valid_until, schedule_cron, revoked_at FROM override_grants ORDER BY id`, map[string]any{})
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		g := &rebac.OverrideGrant{}
		var effect, schedule string
		var fromRaw, untilRaw, revokedRaw interface{}
		if err := rows.Scan(&g.ID, &g.Authority, &g.Resource, &g.Action, &effect, &fromRaw, &untilRaw, &schedule, &revokedRaw); err != nil {
			rows.Close()
			return nil, err
		}
		g.Effect = rebac.Effect(effect)
		g.Schedule = schedule
		g.Window = rebac.TimeWindow{From: scanTime(fromRaw), Until: scanTime(untilRaw)}
		g.RevokedAt = scanTime(revokedRaw)
		cfg.Overrides = append(cfg.Overrides, g)
	}
	rows.Close()

	rows, err = s.db.NamedQueryContext(ctx, `SELECT granter, grantee, can_grant, can_modify, can_revoke FROM delegation_rules ORDER BY granter, grantee`, map[string]any{})
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		d := &rebac.DelegationRule{}
		var cg, cm, cr int
		if err := rows.Scan(&d.Granter, &d.Grantee, &cg, &cm, &cr); err != nil {
			rows.Close()
			return nil, err
		}
		d.CanGrant = cg == 1
		d.CanModify = cm == 1
		d.CanRevoke = cr == 1
		cfg.Delegations = append(cfg.Delegations, d)
	}
	rows.Close()

	return cfg, nil
}

// LoadSnapshot loads and indexes the policy state in one step.
func (s *SQLPolicyStore) LoadSnapshot(ctx context.Context) (*rebac.Snapshot, map[string]*rebac.ActorContext, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	snap, err := cfg.BuildSnapshot()
	if err != nil {
		return nil, nil, err
	}
	return snap, cfg.ActorContexts(), nil
}
