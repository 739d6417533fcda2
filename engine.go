package rebac

import (
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/robfig/cron/v3"

	"github.com/oarkflow/rebac/logger"
)

// ============================================================================
// PERMISSION RESOLUTION ENGINE
// ============================================================================

// Status is the outcome of a resolution. "inherited" means no applicable
// grant or rule was found at any level; it is NOT a denial, and callers
// decide how to treat it.
type Status string

const (
	StatusGranted   Status = "granted"
	StatusDenied    Status = "denied"
	StatusInherited Status = "inherited"
)

// Resolution step names, in evaluation order.
const (
	StepDirectOverride    = "Direct Override"
	StepInheritedOverride = "Inherited Override"
	StepGlobalMatrix      = "Global Role Matrix"
	StepDefault           = "Default"
)

// TraceStep records one stage of the resolution walk.
type TraceStep struct {
	Step   string `json:"step"`
	Reason string `json:"reason"`
	Status Status `json:"status"` // status if this step had decided; "" for skipped steps
}

// Decision is the full outcome of an Evaluate call.
type Decision struct {
	Actor     string      `json:"actor"`
	Resource  string      `json:"resource"`
	Action    string      `json:"action"`
	Status    Status      `json:"status"`
	Trace     []TraceStep `json:"trace,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Allowed is a convenience for callers that treat inherited as not granted.
func (d *Decision) Allowed() bool { return d.Status == StatusGranted }

// AccessRequest is one (resource, action) pair for batch evaluation.
type AccessRequest struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Engine resolves access decisions against immutable snapshots. It holds no
// policy state of its own, so one engine can serve any number of snapshots
// concurrently. The only internal state is the parsed-schedule cache, which
// is keyed by expression text and therefore snapshot-independent.
type Engine struct {
	log        logger.Logger
	maxDepth   int
	schedCache *ristretto.Cache
	traceOff   bool
}

// EngineOption customizes engine construction.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger. Defaults to logger.NullLogger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMaxDepth bounds ancestor walks. Defaults to DefaultMaxDepth.
func WithMaxDepth(depth int) EngineOption {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithScheduleCacheSize sizes the parsed-schedule cache (max entries).
// Pass 0 to disable caching; parsing then happens on every temporal check.
func WithScheduleCacheSize(maxEntries int64) EngineOption {
	return func(e *Engine) {
		if maxEntries <= 0 {
			e.schedCache = nil
			return
		}
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: maxEntries * 10,
			MaxCost:     maxEntries,
			BufferItems: 64,
		})
		if err != nil {
			return
		}
		e.schedCache = cache
	}
}

// WithoutTrace disables trace collection for throughput-sensitive callers.
// Decisions still carry status and timestamp.
func WithoutTrace() EngineOption {
	return func(e *Engine) { e.traceOff = true }
}

// NewEngine constructs an engine with a 4096-entry schedule cache and a
// null logger unless options say otherwise.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		log:      &logger.NullLogger{},
		maxDepth: DefaultMaxDepth,
	}
	WithScheduleCacheSize(4096)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// parseFailed is the cache sentinel for expressions that do not parse.
type parseFailed struct{}

// matchSchedule resolves expr against now through the cache. An unparsable
// expression never matches; the failure is cached so bad data costs one
// parse, not one per evaluation.
func (e *Engine) matchSchedule(expr string, now time.Time) bool {
	if expr == "" {
		return true
	}
	if e.schedCache != nil {
		if v, ok := e.schedCache.Get(expr); ok {
			if sched, ok := v.(cron.Schedule); ok {
				return scheduleMatches(sched, now)
			}
			return false
		}
	}
	sched, err := ParseSchedule(expr)
	if err != nil {
		if e.schedCache != nil {
			e.schedCache.Set(expr, parseFailed{}, 1)
		}
		e.log.Debug("schedule parse failed", "expr", expr, "error", err.Error())
		return false
	}
	if e.schedCache != nil {
		e.schedCache.Set(expr, sched, 1)
	}
	return scheduleMatches(sched, now)
}

// grantLive applies revocation, window and schedule checks through the
// engine's schedule cache.
func (e *Engine) grantLive(window TimeWindow, schedule string, revokedAt, now time.Time) bool {
	return grantActive(window, schedule, revokedAt, now, e.matchSchedule)
}

// activeRoleIDs computes the actor's live roles for a target resource.
// Unscoped assignments always participate; a scoped assignment participates
// only when its scope is the target or one of the target's ancestors.
// scopeSet may be nil to restrict the result to unscoped assignments.
func (e *Engine) activeRoleIDs(actor *ActorContext, scopeSet map[string]bool, now time.Time) map[string]bool {
	if actor == nil {
		return nil
	}
	roles := make(map[string]bool, len(actor.Assignments))
	for _, a := range actor.Assignments {
		if a.Scope != "" && !scopeSet[a.Scope] {
			continue
		}
		if !e.grantLive(a.Window, a.Schedule, a.RevokedAt, now) {
			continue
		}
		roles[a.Role] = true
	}
	return roles
}

// overridesAt gathers the active, action-matching, authority-matching
// overrides targeting exactly resourceID, from both the snapshot and the
// actor's directly-held grants.
func (e *Engine) overridesAt(snap *Snapshot, actor *ActorContext, activeRoles map[string]bool, resourceID, action string, now time.Time) []*OverrideGrant {
	var out []*OverrideGrant
	consider := func(g *OverrideGrant) {
		if g == nil || g.Resource != resourceID || !g.matchesAction(action) {
			return
		}
		if !g.Effect.Valid() {
			return
		}
		if !g.AppliesTo(actor.ID, activeRoles) {
			return
		}
		if !e.grantLive(g.Window, g.Schedule, g.RevokedAt, now) {
			return
		}
		out = append(out, g)
	}
	for _, g := range snap.OverridesFor(resourceID) {
		consider(g)
	}
	for _, g := range actor.Overrides {
		consider(g)
	}
	return out
}

// decideOverrides applies DENY-over-ALLOW among same-resource grants.
func decideOverrides(grants []*OverrideGrant) (Status, *OverrideGrant) {
	var allow *OverrideGrant
	for _, g := range grants {
		if g.Effect == EffectDeny {
			return StatusDenied, g
		}
		if allow == nil {
			allow = g
		}
	}
	if allow != nil {
		return StatusGranted, allow
	}
	return StatusInherited, nil
}

// Evaluate resolves whether actor may perform action on the resource at now.
// Resolution order: direct override, closest-ancestor override, global role
// matrix, then the inherited default. The call is a pure function of its
// arguments; now is captured once (time.Now if zero) and reused for every
// temporal check so a single decision never straddles a boundary.
func (e *Engine) Evaluate(resourceID, action string, actor *ActorContext, snap *Snapshot, now time.Time) *Decision {
	if now.IsZero() {
		now = time.Now()
	}
	d := &Decision{Resource: resourceID, Action: action, Timestamp: now}
	if actor != nil {
		d.Actor = actor.ID
	}
	if actor == nil || snap == nil || resourceID == "" || action == "" {
		d.Status = StatusInherited
		e.step(d, StepDefault, "missing actor, snapshot, resource or action", StatusInherited)
		return d
	}

	h := snap.Hierarchy()
	ancestors := h.Ancestors(resourceID, e.maxDepth)

	scopeSet := make(map[string]bool, len(ancestors)+1)
	scopeSet[resourceID] = true
	for _, a := range ancestors {
		scopeSet[a] = true
	}
	activeRoles := e.activeRoleIDs(actor, scopeSet, now)

	// Step 1: direct override on the target resource.
	direct := e.overridesAt(snap, actor, activeRoles, resourceID, action, now)
	if status, g := decideOverrides(direct); status != StatusInherited {
		d.Status = status
		e.step(d, StepDirectOverride, fmt.Sprintf("override %s effect=%s on %s", g.ID, g.Effect, resourceID), status)
		e.logDecision(d)
		return d
	}
	e.step(d, StepDirectOverride, "no active override on "+resourceID, "")

	// Step 2: closest ancestor holding any applicable override decides.
	for _, anc := range ancestors {
		grants := e.overridesAt(snap, actor, activeRoles, anc, action, now)
		if len(grants) == 0 {
			continue
		}
		status, g := decideOverrides(grants)
		d.Status = status
		e.step(d, StepInheritedOverride, fmt.Sprintf("override %s effect=%s inherited from %s", g.ID, g.Effect, anc), status)
		e.logDecision(d)
		return d
	}
	e.step(d, StepInheritedOverride, fmt.Sprintf("no ancestor override (%d ancestors walked)", len(ancestors)), "")

	// Step 3: global role matrix over the actor's active roles.
	for _, roleID := range sortedKeys(activeRoles) {
		if snap.RoleGrants(roleID, action) {
			d.Status = StatusGranted
			e.step(d, StepGlobalMatrix, fmt.Sprintf("role %s grants %s", roleID, action), StatusGranted)
			e.logDecision(d)
			return d
		}
	}
	e.step(d, StepGlobalMatrix, fmt.Sprintf("no grant among %d active roles", len(activeRoles)), "")

	// Step 4: nothing applied anywhere.
	d.Status = StatusInherited
	e.step(d, StepDefault, "no applicable grant at any level", StatusInherited)
	e.logDecision(d)
	return d
}

// EvaluateBatch resolves several requests for one actor against one
// snapshot, all at the same instant.
func (e *Engine) EvaluateBatch(reqs []AccessRequest, actor *ActorContext, snap *Snapshot, now time.Time) []*Decision {
	if now.IsZero() {
		now = time.Now()
	}
	out := make([]*Decision, len(reqs))
	for i, r := range reqs {
		out[i] = e.Evaluate(r.Resource, r.Action, actor, snap, now)
	}
	return out
}

// GlobalPermissions returns the sorted union of matrix permissions granted
// by the actor's active unscoped assignments. Scoped assignments and
// overrides are ignored; this is the view navigation evaluation uses.
func (e *Engine) GlobalPermissions(actor *ActorContext, snap *Snapshot, now time.Time) []string {
	if actor == nil || snap == nil {
		return nil
	}
	if now.IsZero() {
		now = time.Now()
	}
	roles := e.activeRoleIDs(actor, nil, now)
	set := make(map[string]bool)
	for roleID := range roles {
		for _, p := range snap.MatrixRow(roleID) {
			set[p] = true
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HasGlobalPermission reports whether the actor holds the permission through
// the global matrix alone. The wildcard "*" grants everything.
func (e *Engine) HasGlobalPermission(actor *ActorContext, snap *Snapshot, permission string, now time.Time) bool {
	if actor == nil || snap == nil {
		return false
	}
	if now.IsZero() {
		now = time.Now()
	}
	roles := e.activeRoleIDs(actor, nil, now)
	for roleID := range roles {
		if snap.RoleGrants(roleID, permission) {
			return true
		}
	}
	return false
}

func (e *Engine) step(d *Decision, step, reason string, status Status) {
	if e.traceOff {
		return
	}
	d.Trace = append(d.Trace, TraceStep{Step: step, Reason: reason, Status: status})
}

func (e *Engine) logDecision(d *Decision) {
	e.log.Debug("decision",
		"actor", d.Actor,
		"resource", d.Resource,
		"action", d.Action,
		"status", string(d.Status),
	)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
