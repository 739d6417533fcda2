package rebac

import "time"

// ============================================================================
// IMPACT SIMULATION
// ============================================================================

// Triple names one (actor, resource, action) probe in a simulation
// population.
type Triple struct {
	Actor    string `json:"actor"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// TripleOutcome pairs a probe with its status under baseline and proposed
// policy.
type TripleOutcome struct {
	Triple
	Before Status `json:"before"`
	After  Status `json:"after"`
}

// SimulationSummary carries the bucket counts.
type SimulationSummary struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// SimulationResult classifies every probe. Added holds probes that become
// granted under the proposed policy, Removed probes that stop being granted,
// Unchanged the rest (including denied→inherited shifts, which do not change
// effective access). Slice order follows population order, so identical
// inputs produce identical output.
type SimulationResult struct {
	Added     []TripleOutcome   `json:"added"`
	Removed   []TripleOutcome   `json:"removed"`
	Unchanged []TripleOutcome   `json:"unchanged"`
	Summary   SimulationSummary `json:"summary"`
}

// Simulate evaluates the population against both snapshots at the same
// instant and diffs the outcomes. Neither snapshot is modified; the call is
// read-only and idempotent. Actor contexts are supplied per actor ID; probes
// whose actor is missing from actors resolve as inherited on both sides.
func (e *Engine) Simulate(baseline, proposed *Snapshot, population []Triple, actors map[string]*ActorContext, now time.Time) *SimulationResult {
	if now.IsZero() {
		now = time.Now()
	}
	res := &SimulationResult{
		Added:     []TripleOutcome{},
		Removed:   []TripleOutcome{},
		Unchanged: []TripleOutcome{},
	}
	for _, t := range population {
		actor := actors[t.Actor]
		before := e.Evaluate(t.Resource, t.Action, actor, baseline, now).Status
		after := e.Evaluate(t.Resource, t.Action, actor, proposed, now).Status
		o := TripleOutcome{Triple: t, Before: before, After: after}
		switch {
		case before != StatusGranted && after == StatusGranted:
			res.Added = append(res.Added, o)
		case before == StatusGranted && after != StatusGranted:
			res.Removed = append(res.Removed, o)
		default:
			res.Unchanged = append(res.Unchanged, o)
		}
	}
	res.Summary = SimulationSummary{
		Added:     len(res.Added),
		Removed:   len(res.Removed),
		Unchanged: len(res.Unchanged),
	}
	return res
}

// AccessDelta names one actor/resource/action whose effective access would
// change under a proposed role edit.
type AccessDelta struct {
	Actor    string `json:"actor"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// RoleChangeReport is the outcome of SimulateRoleChange.
type RoleChangeReport struct {
	Role          string        `json:"role"`
	AffectedCount int           `json:"affected_users_count"`
	GainedAccess  []AccessDelta `json:"gained_access"`
	LostAccess    []AccessDelta `json:"lost_access"`
}

// SimulateRoleChange previews editing one role's matrix row: added and
// removed are permission names. The proposed snapshot is derived via
// WithMatrixChange; the baseline is untouched. AffectedCount counts distinct
// actors appearing in either delta list.
func (e *Engine) SimulateRoleChange(baseline *Snapshot, roleID string, added, removed []string, population []Triple, actors map[string]*ActorContext, now time.Time) *RoleChangeReport {
	proposed := baseline.WithMatrixChange(roleID, added, removed)
	sim := e.Simulate(baseline, proposed, population, actors, now)

	report := &RoleChangeReport{
		Role:         roleID,
		GainedAccess: []AccessDelta{},
		LostAccess:   []AccessDelta{},
	}
	affected := make(map[string]bool)
	for _, o := range sim.Added {
		report.GainedAccess = append(report.GainedAccess, AccessDelta{Actor: o.Actor, Resource: o.Resource, Action: o.Action})
		affected[o.Actor] = true
	}
	for _, o := range sim.Removed {
		report.LostAccess = append(report.LostAccess, AccessDelta{Actor: o.Actor, Resource: o.Resource, Action: o.Action})
		affected[o.Actor] = true
	}
	report.AffectedCount = len(affected)
	return report
}
