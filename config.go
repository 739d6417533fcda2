package rebac

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a complete policy snapshot in portable form
type Config struct {
	Version     uint16              `json:"version" yaml:"version"`
	Resources   []*Resource         `json:"resources" yaml:"resources"`
	Roles       []*Role             `json:"roles" yaml:"roles"`
	Permissions []*Permission       `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Matrix      map[string][]string `json:"matrix" yaml:"matrix"` // role ID -> permission names
	Actors      []ActorConfig       `json:"actors,omitempty" yaml:"actors,omitempty"`
	Overrides   []*OverrideGrant    `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	Delegations []*DelegationRule   `json:"delegations,omitempty" yaml:"delegations,omitempty"`
	Navigation  []NavSection        `json:"navigation,omitempty" yaml:"navigation,omitempty"`
	Engine      EngineConfig        `json:"engine" yaml:"engine"`
}

type ActorConfig struct {
	ID          string           `json:"id" yaml:"id"`
	Assignments []RoleAssignment `json:"assignments,omitempty" yaml:"assignments,omitempty"`
}

type EngineConfig struct {
	MaxDepth          int   `json:"max_depth" yaml:"max_depth"`
	ScheduleCacheSize int64 `json:"schedule_cache_size" yaml:"schedule_cache_size"`
	TraceDisabled     bool  `json:"trace_disabled" yaml:"trace_disabled"`
}

// ConfigLoader loads configuration from various formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadBinary loads from custom binary protocol
func (l *ConfigLoader) LoadBinary(data []byte) (*Config, error) {
	r := bytes.NewReader(data)
	return decodeBinaryConfig(r)
}

// EncodeBinaryConfig encodes config to binary format
func EncodeBinaryConfig(cfg *Config) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := encodeBinaryConfig(cfg, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate checks the config for structural problems: hierarchy cycles,
// inverted windows, malformed schedules, unknown override effects, matrix
// rows for undeclared roles.
func (c *Config) Validate() error {
	h := NewHierarchy(c.Resources)
	if err := h.Validate(); err != nil {
		return err
	}
	declared := make(map[string]bool, len(c.Roles))
	for _, r := range c.Roles {
		if r != nil {
			declared[r.ID] = true
		}
	}
	for roleID := range c.Matrix {
		if !declared[roleID] {
			return NewValidationError("matrix", fmt.Sprintf("row for undeclared role %q", roleID))
		}
	}
	for _, g := range c.Overrides {
		if g == nil {
			continue
		}
		if !g.Effect.Valid() {
			return NewValidationError("override "+g.ID, fmt.Sprintf("unknown effect %q", g.Effect))
		}
		if err := g.Window.Validate(); err != nil {
			return NewValidationError("override "+g.ID, err.Error())
		}
		if err := ValidateSchedule(g.Schedule); err != nil {
			return NewValidationError("override "+g.ID, err.Error())
		}
	}
	for _, a := range c.Actors {
		for _, asg := range a.Assignments {
			if err := asg.Window.Validate(); err != nil {
				return NewValidationError("actor "+a.ID, err.Error())
			}
			if err := ValidateSchedule(asg.Schedule); err != nil {
				return NewValidationError("actor "+a.ID, err.Error())
			}
		}
	}
	return nil
}

// BuildSnapshot validates the config and indexes it into a Snapshot.
func (c *Config) BuildSnapshot() (*Snapshot, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	h := NewHierarchy(c.Resources)
	return NewSnapshot(h, c.Roles, c.Matrix, c.Overrides, c.Delegations), nil
}

// ActorContexts returns the configured actors keyed by ID, ready for
// Evaluate and Simulate calls.
func (c *Config) ActorContexts() map[string]*ActorContext {
	out := make(map[string]*ActorContext, len(c.Actors))
	for _, a := range c.Actors {
		out[a.ID] = &ActorContext{ID: a.ID, Assignments: a.Assignments}
	}
	return out
}

// NewEngineFromConfig builds an engine honoring the config's engine section.
func NewEngineFromConfig(cfg *Config, opts ...EngineOption) *Engine {
	base := []EngineOption{}
	if cfg.Engine.MaxDepth > 0 {
		base = append(base, WithMaxDepth(cfg.Engine.MaxDepth))
	}
	if cfg.Engine.ScheduleCacheSize > 0 {
		base = append(base, WithScheduleCacheSize(cfg.Engine.ScheduleCacheSize))
	}
	if cfg.Engine.TraceDisabled {
		base = append(base, WithoutTrace())
	}
	return NewEngine(append(base, opts...)...)
}

// Binary protocol encoding/decoding
const (
	binaryMagic   = 0x5242 // "RB" for rebac
	binaryVersion = 1
)

func encodeBinaryConfig(cfg *Config, w io.Writer) error {
	buf := &bytes.Buffer{}

	// Header: magic(2) + version(2) + config_version(2)
	binary.Write(buf, binary.LittleEndian, uint16(binaryMagic))
	binary.Write(buf, binary.LittleEndian, uint16(binaryVersion))
	binary.Write(buf, binary.LittleEndian, cfg.Version)

	// Encode sections with type tags
	writeSection(buf, 0x01, func(b *bytes.Buffer) { encodeResources(b, cfg.Resources) })
	writeSection(buf, 0x02, func(b *bytes.Buffer) { encodeRoles(b, cfg.Roles) })
	writeSection(buf, 0x03, func(b *bytes.Buffer) { encodePermissions(b, cfg.Permissions) })
	writeSection(buf, 0x04, func(b *bytes.Buffer) { encodeMatrix(b, cfg.Matrix) })
	writeSection(buf, 0x05, func(b *bytes.Buffer) { encodeActors(b, cfg.Actors) })
	writeSection(buf, 0x06, func(b *bytes.Buffer) { encodeOverrides(b, cfg.Overrides) })
	writeSection(buf, 0x07, func(b *bytes.Buffer) { encodeDelegations(b, cfg.Delegations) })
	writeSection(buf, 0x08, func(b *bytes.Buffer) { encodeNavigation(b, cfg.Navigation) })
	writeSection(buf, 0x09, func(b *bytes.Buffer) { encodeEngineConfig(b, &cfg.Engine) })

	_, err := w.Write(buf.Bytes())
	return err
}

func decodeBinaryConfig(r io.Reader) (*Config, error) {
	cfg := &Config{}

	var magic, ver, cfgVer uint16
	binary.Read(r, binary.LittleEndian, &magic)
	binary.Read(r, binary.LittleEndian, &ver)
	binary.Read(r, binary.LittleEndian, &cfgVer)

	if magic != binaryMagic {
		return nil, fmt.Errorf("invalid magic: %x", magic)
	}
	if ver != binaryVersion {
		return nil, fmt.Errorf("unsupported version: %d", ver)
	}
	cfg.Version = cfgVer

	for {
		var tag uint8
		if err := binary.Read(r, binary.LittleEndian, &tag); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		var size uint32
		binary.Read(r, binary.LittleEndian, &size)
		data := make([]byte, size)
		io.ReadFull(r, data)

		switch tag {
		case 0x01:
			cfg.Resources = decodeResources(data)
		case 0x02:
			cfg.Roles = decodeRoles(data)
		case 0x03:
			cfg.Permissions = decodePermissions(data)
		case 0x04:
			cfg.Matrix = decodeMatrix(data)
		case 0x05:
			cfg.Actors = decodeActors(data)
		case 0x06:
			cfg.Overrides = decodeOverrides(data)
		case 0x07:
			cfg.Delegations = decodeDelegations(data)
		case 0x08:
			cfg.Navigation = decodeNavigation(data)
		case 0x09:
			cfg.Engine = decodeEngineConfig(data)
		}
	}

	return cfg, nil
}

func writeSection(buf *bytes.Buffer, tag uint8, fn func(*bytes.Buffer)) {
	tmp := &bytes.Buffer{}
	fn(tmp)
	binary.Write(buf, binary.LittleEndian, tag)
	binary.Write(buf, binary.LittleEndian, uint32(tmp.Len()))
	buf.Write(tmp.Bytes())
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) string {
	var l uint16
	binary.Read(r, binary.LittleEndian, &l)
	b := make([]byte, l)
	r.Read(b)
	return string(b)
}

func writeTime(buf *bytes.Buffer, t time.Time) {
	if t.IsZero() {
		binary.Write(buf, binary.LittleEndian, int64(0))
		return
	}
	binary.Write(buf, binary.LittleEndian, t.Unix())
}

func readTime(r *bytes.Reader) time.Time {
	var unix int64
	binary.Read(r, binary.LittleEndian, &unix)
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

func writeWindow(buf *bytes.Buffer, w TimeWindow) {
	writeTime(buf, w.From)
	writeTime(buf, w.Until)
}

func readWindow(r *bytes.Reader) TimeWindow {
	return TimeWindow{From: readTime(r), Until: readTime(r)}
}

func encodeResources(buf *bytes.Buffer, resources []*Resource) {
	binary.Write(buf, binary.LittleEndian, uint16(len(resources)))
	for _, res := range resources {
		writeString(buf, res.ID)
		writeString(buf, res.Class)
		writeString(buf, res.Parent)
	}
}

func decodeResources(data []byte) []*Resource {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	resources := make([]*Resource, count)
	for i := range resources {
		resources[i] = &Resource{
			ID:     readString(r),
			Class:  readString(r),
			Parent: readString(r),
		}
	}
	return resources
}

func encodeRoles(buf *bytes.Buffer, roles []*Role) {
	binary.Write(buf, binary.LittleEndian, uint16(len(roles)))
	for _, role := range roles {
		writeString(buf, role.ID)
		writeString(buf, role.Name)
	}
}

func decodeRoles(data []byte) []*Role {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	roles := make([]*Role, count)
	for i := range roles {
		roles[i] = &Role{ID: readString(r), Name: readString(r)}
	}
	return roles
}

func encodePermissions(buf *bytes.Buffer, perms []*Permission) {
	binary.Write(buf, binary.LittleEndian, uint16(len(perms)))
	for _, p := range perms {
		writeString(buf, p.ID)
		writeString(buf, p.Name)
		binary.Write(buf, binary.LittleEndian, int32(p.Level))
	}
}

func decodePermissions(data []byte) []*Permission {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	perms := make([]*Permission, count)
	for i := range perms {
		p := &Permission{ID: readString(r), Name: readString(r)}
		var lvl int32
		binary.Read(r, binary.LittleEndian, &lvl)
		p.Level = int(lvl)
		perms[i] = p
	}
	return perms
}

func encodeMatrix(buf *bytes.Buffer, matrix map[string][]string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(matrix)))
	for roleID, perms := range matrix {
		writeString(buf, roleID)
		binary.Write(buf, binary.LittleEndian, uint16(len(perms)))
		for _, p := range perms {
			writeString(buf, p)
		}
	}
}

func decodeMatrix(data []byte) map[string][]string {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	matrix := make(map[string][]string, count)
	for i := 0; i < int(count); i++ {
		roleID := readString(r)
		var permCount uint16
		binary.Read(r, binary.LittleEndian, &permCount)
		perms := make([]string, permCount)
		for j := range perms {
			perms[j] = readString(r)
		}
		matrix[roleID] = perms
	}
	return matrix
}

func encodeAssignment(buf *bytes.Buffer, a RoleAssignment) {
	writeString(buf, a.Role)
	writeString(buf, a.Scope)
	writeWindow(buf, a.Window)
	writeString(buf, a.Schedule)
	writeTime(buf, a.RevokedAt)
}

func decodeAssignment(r *bytes.Reader) RoleAssignment {
	return RoleAssignment{
		Role:      readString(r),
		Scope:     readString(r),
		Window:    readWindow(r),
		Schedule:  readString(r),
		RevokedAt: readTime(r),
	}
}

func encodeActors(buf *bytes.Buffer, actors []ActorConfig) {
	binary.Write(buf, binary.LittleEndian, uint16(len(actors)))
	for _, a := range actors {
		writeString(buf, a.ID)
		binary.Write(buf, binary.LittleEndian, uint16(len(a.Assignments)))
		for _, asg := range a.Assignments {
			encodeAssignment(buf, asg)
		}
	}
}

func decodeActors(data []byte) []ActorConfig {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	actors := make([]ActorConfig, count)
	for i := range actors {
		actors[i].ID = readString(r)
		var asgCount uint16
		binary.Read(r, binary.LittleEndian, &asgCount)
		actors[i].Assignments = make([]RoleAssignment, asgCount)
		for j := range actors[i].Assignments {
			actors[i].Assignments[j] = decodeAssignment(r)
		}
	}
	return actors
}

func encodeOverrides(buf *bytes.Buffer, overrides []*OverrideGrant) {
	binary.Write(buf, binary.LittleEndian, uint16(len(overrides)))
	for _, g := range overrides {
		writeString(buf, g.ID)
		writeString(buf, g.Authority)
		writeString(buf, g.Resource)
		writeString(buf, g.Action)
		buf.WriteByte(map[Effect]byte{EffectAllow: 1, EffectDeny: 2}[g.Effect])
		writeWindow(buf, g.Window)
		writeString(buf, g.Schedule)
		writeTime(buf, g.RevokedAt)
	}
}

func decodeOverrides(data []byte) []*OverrideGrant {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	overrides := make([]*OverrideGrant, count)
	for i := range overrides {
		g := &OverrideGrant{}
		g.ID = readString(r)
		g.Authority = readString(r)
		g.Resource = readString(r)
		g.Action = readString(r)
		eff, _ := r.ReadByte()
		g.Effect = map[byte]Effect{1: EffectAllow, 2: EffectDeny}[eff]
		g.Window = readWindow(r)
		g.Schedule = readString(r)
		g.RevokedAt = readTime(r)
		overrides[i] = g
	}
	return overrides
}

func encodeDelegations(buf *bytes.Buffer, rules []*DelegationRule) {
	binary.Write(buf, binary.LittleEndian, uint16(len(rules)))
	for _, d := range rules {
		writeString(buf, d.Granter)
		writeString(buf, d.Grantee)
		var flags byte
		if d.CanGrant {
			flags |= 1
		}
		if d.CanModify {
			flags |= 2
		}
		if d.CanRevoke {
			flags |= 4
		}
		buf.WriteByte(flags)
	}
}

func decodeDelegations(data []byte) []*DelegationRule {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	rules := make([]*DelegationRule, count)
	for i := range rules {
		d := &DelegationRule{}
		d.Granter = readString(r)
		d.Grantee = readString(r)
		flags, _ := r.ReadByte()
		d.CanGrant = flags&1 != 0
		d.CanModify = flags&2 != 0
		d.CanRevoke = flags&4 != 0
		rules[i] = d
	}
	return rules
}

func encodeNavItem(buf *bytes.Buffer, item NavItem) {
	writeString(buf, item.ID)
	writeString(buf, item.Label)
	writeString(buf, item.Href)
	writeString(buf, item.Icon)
	binary.Write(buf, binary.LittleEndian, uint16(len(item.RequiredPermissions)))
	for _, p := range item.RequiredPermissions {
		writeString(buf, p)
	}
	binary.Write(buf, binary.LittleEndian, uint16(len(item.Children)))
	for _, child := range item.Children {
		encodeNavItem(buf, child)
	}
}

func decodeNavItem(r *bytes.Reader) NavItem {
	item := NavItem{
		ID:    readString(r),
		Label: readString(r),
		Href:  readString(r),
		Icon:  readString(r),
	}
	var permCount uint16
	binary.Read(r, binary.LittleEndian, &permCount)
	if permCount > 0 {
		item.RequiredPermissions = make([]string, permCount)
		for i := range item.RequiredPermissions {
			item.RequiredPermissions[i] = readString(r)
		}
	}
	var childCount uint16
	binary.Read(r, binary.LittleEndian, &childCount)
	if childCount > 0 {
		item.Children = make([]NavItem, childCount)
		for i := range item.Children {
			item.Children[i] = decodeNavItem(r)
		}
	}
	return item
}

func encodeNavigation(buf *bytes.Buffer, sections []NavSection) {
	binary.Write(buf, binary.LittleEndian, uint16(len(sections)))
	for _, s := range sections {
		writeString(buf, s.ID)
		writeString(buf, s.Label)
		binary.Write(buf, binary.LittleEndian, uint16(len(s.Items)))
		for _, item := range s.Items {
			encodeNavItem(buf, item)
		}
	}
}

func decodeNavigation(data []byte) []NavSection {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	sections := make([]NavSection, count)
	for i := range sections {
		sections[i].ID = readString(r)
		sections[i].Label = readString(r)
		var itemCount uint16
		binary.Read(r, binary.LittleEndian, &itemCount)
		sections[i].Items = make([]NavItem, itemCount)
		for j := range sections[i].Items {
			sections[i].Items[j] = decodeNavItem(r)
		}
	}
	return sections
}

func encodeEngineConfig(buf *bytes.Buffer, cfg *EngineConfig) {
	binary.Write(buf, binary.LittleEndian, int32(cfg.MaxDepth))
	binary.Write(buf, binary.LittleEndian, cfg.ScheduleCacheSize)
	buf.WriteByte(map[bool]byte{true: 1, false: 0}[cfg.TraceDisabled])
}

func decodeEngineConfig(data []byte) EngineConfig {
	r := bytes.NewReader(data)
	cfg := EngineConfig{}
	var depth int32
	binary.Read(r, binary.LittleEndian, &depth)
	cfg.MaxDepth = int(depth)
	binary.Read(r, binary.LittleEndian, &cfg.ScheduleCacheSize)
	td, _ := r.ReadByte()
	cfg.TraceDisabled = td == 1
	return cfg
}
