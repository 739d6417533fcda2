package rebac

import "sort"

// ============================================================================
// DELEGATION AUTHORITY GRAPH
// ============================================================================

// Capability names a delegation right.
type Capability string

const (
	CapGrant  Capability = "grant"
	CapModify Capability = "modify"
	CapRevoke Capability = "revoke"
)

// DelegationRule is a directed edge: granter may exercise the flagged
// capabilities over grantee. Authority is NOT transitive; A→B and B→C never
// imply A→C.
type DelegationRule struct {
	Granter   string `json:"granter" yaml:"granter"`
	Grantee   string `json:"grantee" yaml:"grantee"`
	CanGrant  bool   `json:"can_grant" yaml:"can_grant"`
	CanModify bool   `json:"can_modify" yaml:"can_modify"`
	CanRevoke bool   `json:"can_revoke" yaml:"can_revoke"`
}

// allows reports whether the rule carries the capability.
func (d *DelegationRule) allows(cap Capability) bool {
	switch cap {
	case CapGrant:
		return d.CanGrant
	case CapModify:
		return d.CanModify
	case CapRevoke:
		return d.CanRevoke
	}
	return false
}

type delegationKey struct {
	granter string
	grantee string
}

// CanDelegate reports whether a direct delegation edge from granter to
// grantee carries the capability. Only the exact edge is consulted; there is
// no closure over intermediate parties.
func (s *Snapshot) CanDelegate(granter, grantee string, cap Capability) bool {
	rule, ok := s.delegations[delegationKey{granter, grantee}]
	if !ok {
		return false
	}
	return rule.allows(cap)
}

// DelegationRules returns all rules sorted by (granter, grantee).
func (s *Snapshot) DelegationRules() []*DelegationRule {
	out := make([]*DelegationRule, len(s.delegationList))
	copy(out, s.delegationList)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Granter != out[j].Granter {
			return out[i].Granter < out[j].Granter
		}
		return out[i].Grantee < out[j].Grantee
	})
	return out
}

// Delegatees returns the parties granter holds the capability over, sorted.
// This is a reporting helper; authorization checks go through CanDelegate.
func (s *Snapshot) Delegatees(granter string, cap Capability) []string {
	var out []string
	for _, d := range s.delegationList {
		if d.Granter == granter && d.allows(cap) {
			out = append(out, d.Grantee)
		}
	}
	sort.Strings(out)
	return out
}

// DelegationClosure computes the set of parties reachable from granter by
// repeatedly following edges that carry the capability. Resolution never
// uses this; it exists for audit tooling that wants to visualize how far a
// chain of explicit re-grants could reach.
func (s *Snapshot) DelegationClosure(granter string, cap Capability) []string {
	seen := map[string]bool{granter: true}
	frontier := []string{granter}
	var out []string
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, d := range s.delegationList {
			if d.Granter != next || !d.allows(cap) || seen[d.Grantee] {
				continue
			}
			seen[d.Grantee] = true
			out = append(out, d.Grantee)
			frontier = append(frontier, d.Grantee)
		}
	}
	sort.Strings(out)
	return out
}
