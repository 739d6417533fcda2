package stores

import (
	"context"
	"sync"

	"github.com/oarkflow/rebac"
)

// MemoryPolicyStore keeps policy state in process memory. It mirrors the
// SQLPolicyStore surface so tests and single-node setups can swap it in.
type MemoryPolicyStore struct {
	mu          sync.RWMutex
	resources   map[string]*rebac.Resource
	roles       map[string]*rebac.Role
	permissions map[string]*rebac.Permission
	matrix      map[string]map[string]bool
	assignments map[string][]rebac.RoleAssignment
	overrides   map[string]*rebac.OverrideGrant
	delegations map[string]*rebac.DelegationRule // key granter|grantee
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{
		resources:   make(map[string]*rebac.Resource),
		roles:       make(map[string]*rebac.Role),
		permissions: make(map[string]*rebac.Permission),
		matrix:      make(map[string]map[string]bool),
		assignments: make(map[string][]rebac.RoleAssignment),
		overrides:   make(map[string]*rebac.OverrideGrant),
		delegations: make(map[string]*rebac.DelegationRule),
	}
}

func (m *MemoryPolicyStore) SaveResource(_ context.Context, r *rebac.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dup := *r
	m.resources[r.ID] = &dup
	return nil
}

func (m *MemoryPolicyStore) SaveRole(_ context.Context, r *rebac.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dup := *r
	m.roles[r.ID] = &dup
	return nil
}

func (m *MemoryPolicyStore) SavePermission(_ context.Context, p *rebac.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dup := *p
	m.permissions[p.ID] = &dup
	return nil
}

func (m *MemoryPolicyStore) GrantMatrixPermission(_ context.Context, roleID, permission string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.matrix[roleID] == nil {
		m.matrix[roleID] = make(map[string]bool)
	}
	m.matrix[roleID][permission] = true
	return nil
}

func (m *MemoryPolicyStore) RevokeMatrixPermission(_ context.Context, roleID, permission string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.matrix[roleID], permission)
	return nil
}

func (m *MemoryPolicyStore) SaveAssignment(_ context.Context, actorID string, a rebac.RoleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.assignments[actorID]
	for i, existing := range list {
		if existing.Role == a.Role && existing.Scope == a.Scope {
			list[i] = a
			return nil
		}
	}
	m.assignments[actorID] = append(list, a)
	return nil
}

func (m *MemoryPolicyStore) SaveOverride(_ context.Context, g *rebac.OverrideGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dup := *g
	m.overrides[g.ID] = &dup
	return nil
}

func (m *MemoryPolicyStore) SaveDelegation(_ context.Context, d *rebac.DelegationRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dup := *d
	m.delegations[d.Granter+"|"+d.Grantee] = &dup
	return nil
}

// Load copies the store contents into a Config.
func (m *MemoryPolicyStore) Load(_ context.Context) (*rebac.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := &rebac.Config{Matrix: map[string][]string{}}
	for _, r := range m.resources {
		dup := *r
		cfg.Resources = append(cfg.Resources, &dup)
	}
	for _, r := range m.roles {
		dup := *r
		cfg.Roles = append(cfg.Roles, &dup)
	}
	for _, p := range m.permissions {
		dup := *p
		cfg.Permissions = append(cfg.Permissions, &dup)
	}
	for roleID, set := range m.matrix {
		for perm := range set {
			cfg.Matrix[roleID] = append(cfg.Matrix[roleID], perm)
		}
	}
	for actorID, list := range m.assignments {
		a := rebac.ActorConfig{ID: actorID}
		a.Assignments = append(a.Assignments, list...)
		cfg.Actors = append(cfg.Actors, a)
	}
	for _, g := range m.overrides {
		dup := *g
		cfg.Overrides = append(cfg.Overrides, &dup)
	}
	for _, d := range m.delegations {
		dup := *d
		cfg.Delegations = append(cfg.Delegations, &dup)
	}
	return cfg, nil
}

// LoadSnapshot loads and indexes the policy state in one step.
func (m *MemoryPolicyStore) LoadSnapshot(ctx context.Context) (*rebac.Snapshot, map[string]*rebac.ActorContext, error) {
	cfg, err := m.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	snap, err := cfg.BuildSnapshot()
	if err != nil {
		return nil, nil, err
	}
	return snap, cfg.ActorContexts(), nil
}
