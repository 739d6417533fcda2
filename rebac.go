package rebac

import (
	"sort"
	"strings"
	"time"

	"github.com/oarkflow/rebac/utils"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Resource is a node in the resource hierarchy. The parent relation must form
// a forest; the engine only reads it and never mutates it.
type Resource struct {
	ID     string `json:"id" yaml:"id"`
	Class  string `json:"class" yaml:"class"`
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"` // empty = root
}

// Role is a named grant target in the global permission matrix.
type Role struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Permission describes a named permission. Level is used only for display
// ranking, never for resolution.
type Permission struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Level int    `json:"level" yaml:"level"`
}

// Effect is the closed ALLOW/DENY variant carried by override grants.
type Effect string

const (
	EffectAllow Effect = "ALLOW"
	EffectDeny  Effect = "DENY"
)

// Valid reports whether the effect is one of the two known variants.
func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// TimeWindow bounds a grant's validity. A zero bound is open-ended.
type TimeWindow struct {
	From  time.Time `json:"from,omitempty" yaml:"from,omitempty"`
	Until time.Time `json:"until,omitempty" yaml:"until,omitempty"`
}

// Validate rejects windows whose lower bound falls after the upper bound.
func (w TimeWindow) Validate() error {
	if !w.From.IsZero() && !w.Until.IsZero() && w.From.After(w.Until) {
		return NewValidationError("window", "from is after until")
	}
	return nil
}

// Contains reports whether now falls inside the window. The upper bound is
// exclusive: a grant expires the instant valid_until is reached.
func (w TimeWindow) Contains(now time.Time) bool {
	if !w.From.IsZero() && now.Before(w.From) {
		return false
	}
	if !w.Until.IsZero() && !now.Before(w.Until) {
		return false
	}
	return true
}

// RoleAssignment binds an actor to a role, optionally scoped to a resource
// subtree and optionally bounded in time or by a recurring schedule.
type RoleAssignment struct {
	Role      string     `json:"role" yaml:"role"`
	Scope     string     `json:"scope,omitempty" yaml:"scope,omitempty"` // empty = global
	Window    TimeWindow `json:"window,omitempty" yaml:"window,omitempty"`
	Schedule  string     `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	RevokedAt time.Time  `json:"revoked_at,omitempty" yaml:"revoked_at,omitempty"`
}

// OverrideGrant is a hierarchy-scoped exception to the global matrix.
// Authority is either an actor ID or "role:<roleID>"; "*" matches any actor.
type OverrideGrant struct {
	ID        string     `json:"id" yaml:"id"`
	Authority string     `json:"authority" yaml:"authority"`
	Resource  string     `json:"resource" yaml:"resource"`
	Action    string     `json:"action" yaml:"action"`
	Effect    Effect     `json:"effect" yaml:"effect"`
	Window    TimeWindow `json:"window,omitempty" yaml:"window,omitempty"`
	Schedule  string     `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	RevokedAt time.Time  `json:"revoked_at,omitempty" yaml:"revoked_at,omitempty"`
}

const roleAuthorityPrefix = "role:"

// AppliesTo reports whether the grant's authority covers the actor, given the
// actor's set of currently-active role IDs.
func (g *OverrideGrant) AppliesTo(actorID string, activeRoles map[string]bool) bool {
	if g.Authority == "*" || g.Authority == actorID {
		return true
	}
	if strings.HasPrefix(g.Authority, roleAuthorityPrefix) {
		return activeRoles[g.Authority[len(roleAuthorityPrefix):]]
	}
	return false
}

// matchesAction reports whether the grant covers the requested action.
// Exact names, "*" and dotted namespace wildcards are supported.
func (g *OverrideGrant) matchesAction(action string) bool {
	return utils.MatchAction(action, g.Action)
}

// ActorContext carries everything the engine needs to know about the
// requesting actor: its role assignments and any directly-granted overrides.
type ActorContext struct {
	ID          string           `json:"id" yaml:"id"`
	Assignments []RoleAssignment `json:"assignments,omitempty" yaml:"assignments,omitempty"`
	Overrides   []*OverrideGrant `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// ============================================================================
// POLICY SNAPSHOT
// ============================================================================

// Snapshot is an immutable view of policy state supplied to every evaluation.
// The engine never mutates a snapshot and never caches across snapshots;
// concurrent evaluations may share one freely.
type Snapshot struct {
	hierarchy   *Hierarchy
	roles       map[string]*Role
	matrix      map[string]map[string]bool // role ID -> permission name set
	overrides   map[string][]*OverrideGrant
	delegations map[delegationKey]*DelegationRule

	roleList       []*Role
	overrideList   []*OverrideGrant
	delegationList []*DelegationRule
}

// NewSnapshot indexes the supplied policy state. The inputs are copied; the
// caller may reuse its slices and maps afterwards.
func NewSnapshot(h *Hierarchy, roles []*Role, matrix map[string][]string, overrides []*OverrideGrant, delegations []*DelegationRule) *Snapshot {
	if h == nil {
		h = NewHierarchy(nil)
	}
	s := &Snapshot{
		hierarchy:   h,
		roles:       make(map[string]*Role, len(roles)),
		matrix:      make(map[string]map[string]bool, len(matrix)),
		overrides:   make(map[string][]*OverrideGrant),
		delegations: make(map[delegationKey]*DelegationRule, len(delegations)),
	}
	for _, r := range roles {
		if r == nil {
			continue
		}
		dup := *r
		s.roles[r.ID] = &dup
		s.roleList = append(s.roleList, &dup)
	}
	for roleID, perms := range matrix {
		set := make(map[string]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		s.matrix[roleID] = set
	}
	for _, g := range overrides {
		if g == nil {
			continue
		}
		dup := *g
		s.overrides[g.Resource] = append(s.overrides[g.Resource], &dup)
		s.overrideList = append(s.overrideList, &dup)
	}
	for _, d := range delegations {
		if d == nil {
			continue
		}
		dup := *d
		s.delegations[delegationKey{d.Granter, d.Grantee}] = &dup
		s.delegationList = append(s.delegationList, &dup)
	}
	return s
}

// Hierarchy returns the snapshot's resource hierarchy accessor.
func (s *Snapshot) Hierarchy() *Hierarchy { return s.hierarchy }

// Role looks up a role definition by ID.
func (s *Snapshot) Role(id string) (*Role, bool) {
	r, ok := s.roles[id]
	return r, ok
}

// Roles returns the role definitions sorted by ID.
func (s *Snapshot) Roles() []*Role {
	out := make([]*Role, len(s.roleList))
	copy(out, s.roleList)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoleGrants reports whether the role's global permission set carries the
// action. The wildcard permission "*" grants every action.
func (s *Snapshot) RoleGrants(roleID, action string) bool {
	set, ok := s.matrix[roleID]
	if !ok {
		return false
	}
	return set[action] || set["*"]
}

// MatrixRow returns a copy of the role's permission names, sorted.
func (s *Snapshot) MatrixRow(roleID string) []string {
	set, ok := s.matrix[roleID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// OverridesFor returns the overrides targeting exactly the given resource.
// The returned slice is shared; callers must not mutate it.
func (s *Snapshot) OverridesFor(resourceID string) []*OverrideGrant {
	return s.overrides[resourceID]
}

// WithMatrixChange derives a snapshot whose matrix row for roleID has the
// given permissions added and removed. The receiver is left untouched;
// hierarchy, overrides and delegation rules are shared between the two.
func (s *Snapshot) WithMatrixChange(roleID string, added, removed []string) *Snapshot {
	dup := *s
	dup.matrix = make(map[string]map[string]bool, len(s.matrix)+1)
	for id, set := range s.matrix {
		dup.matrix[id] = set
	}
	row := make(map[string]bool, len(s.matrix[roleID])+len(added))
	for p := range s.matrix[roleID] {
		row[p] = true
	}
	for _, p := range added {
		row[p] = true
	}
	for _, p := range removed {
		delete(row, p)
	}
	dup.matrix[roleID] = row
	return &dup
}
