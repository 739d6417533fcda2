package rebac

import "time"

// Builders provide a fluent API for creating overrides, assignments,
// delegation rules and whole configs.

// OverrideBuilder builds an OverrideGrant
type OverrideBuilder struct {
	g *OverrideGrant
}

func NewOverrideBuilder() *OverrideBuilder {
	return &OverrideBuilder{g: &OverrideGrant{Effect: EffectAllow}}
}

func (b *OverrideBuilder) ID(id string) *OverrideBuilder { b.g.ID = id; return b }
func (b *OverrideBuilder) Actor(actorID string) *OverrideBuilder {
	b.g.Authority = actorID
	return b
}
func (b *OverrideBuilder) Role(roleID string) *OverrideBuilder {
	b.g.Authority = roleAuthorityPrefix + roleID
	return b
}
func (b *OverrideBuilder) Resource(id string) *OverrideBuilder   { b.g.Resource = id; return b }
func (b *OverrideBuilder) Action(action string) *OverrideBuilder { b.g.Action = action; return b }
func (b *OverrideBuilder) Allow() *OverrideBuilder               { b.g.Effect = EffectAllow; return b }
func (b *OverrideBuilder) Deny() *OverrideBuilder                { b.g.Effect = EffectDeny; return b }
func (b *OverrideBuilder) From(t time.Time) *OverrideBuilder     { b.g.Window.From = t; return b }
func (b *OverrideBuilder) Until(t time.Time) *OverrideBuilder    { b.g.Window.Until = t; return b }
func (b *OverrideBuilder) Schedule(expr string) *OverrideBuilder { b.g.Schedule = expr; return b }
func (b *OverrideBuilder) Build() *OverrideGrant                 { return b.g }

// AssignmentBuilder builds a RoleAssignment
type AssignmentBuilder struct {
	a RoleAssignment
}

func NewAssignmentBuilder(roleID string) *AssignmentBuilder {
	return &AssignmentBuilder{a: RoleAssignment{Role: roleID}}
}

func (b *AssignmentBuilder) Scope(resourceID string) *AssignmentBuilder {
	b.a.Scope = resourceID
	return b
}
func (b *AssignmentBuilder) From(t time.Time) *AssignmentBuilder     { b.a.Window.From = t; return b }
func (b *AssignmentBuilder) Until(t time.Time) *AssignmentBuilder    { b.a.Window.Until = t; return b }
func (b *AssignmentBuilder) Schedule(expr string) *AssignmentBuilder { b.a.Schedule = expr; return b }
func (b *AssignmentBuilder) Build() RoleAssignment                   { return b.a }

// DelegationBuilder builds a DelegationRule
type DelegationBuilder struct {
	d *DelegationRule
}

func NewDelegationBuilder(granter, grantee string) *DelegationBuilder {
	return &DelegationBuilder{d: &DelegationRule{Granter: granter, Grantee: grantee}}
}

func (b *DelegationBuilder) Grant() *DelegationBuilder  { b.d.CanGrant = true; return b }
func (b *DelegationBuilder) Modify() *DelegationBuilder { b.d.CanModify = true; return b }
func (b *DelegationBuilder) Revoke() *DelegationBuilder { b.d.CanRevoke = true; return b }
func (b *DelegationBuilder) All() *DelegationBuilder {
	b.d.CanGrant, b.d.CanModify, b.d.CanRevoke = true, true, true
	return b
}
func (b *DelegationBuilder) Build() *DelegationRule { return b.d }

// ConfigBuilder assembles a Config incrementally
type ConfigBuilder struct {
	cfg *Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: &Config{Version: 1, Matrix: map[string][]string{}}}
}

func (b *ConfigBuilder) Resource(id, class, parent string) *ConfigBuilder {
	b.cfg.Resources = append(b.cfg.Resources, &Resource{ID: id, Class: class, Parent: parent})
	return b
}

func (b *ConfigBuilder) Role(id, name string, permissions ...string) *ConfigBuilder {
	b.cfg.Roles = append(b.cfg.Roles, &Role{ID: id, Name: name})
	if len(permissions) > 0 {
		b.cfg.Matrix[id] = append(b.cfg.Matrix[id], permissions...)
	}
	return b
}

func (b *ConfigBuilder) Permission(id, name string, level int) *ConfigBuilder {
	b.cfg.Permissions = append(b.cfg.Permissions, &Permission{ID: id, Name: name, Level: level})
	return b
}

func (b *ConfigBuilder) Actor(id string, assignments ...RoleAssignment) *ConfigBuilder {
	b.cfg.Actors = append(b.cfg.Actors, ActorConfig{ID: id, Assignments: assignments})
	return b
}

func (b *ConfigBuilder) Override(g *OverrideGrant) *ConfigBuilder {
	b.cfg.Overrides = append(b.cfg.Overrides, g)
	return b
}

func (b *ConfigBuilder) Delegation(d *DelegationRule) *ConfigBuilder {
	b.cfg.Delegations = append(b.cfg.Delegations, d)
	return b
}

func (b *ConfigBuilder) Navigation(sections ...NavSection) *ConfigBuilder {
	b.cfg.Navigation = append(b.cfg.Navigation, sections...)
	return b
}

func (b *ConfigBuilder) Build() *Config { return b.cfg }
