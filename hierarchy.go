package rebac

import "fmt"

// ============================================================================
// RESOURCE HIERARCHY
// ============================================================================

// DefaultMaxDepth bounds ancestor walks. Real resource trees are shallow;
// anything deeper indicates corrupt data and the walk stops there.
const DefaultMaxDepth = 32

// Hierarchy is a read-only index over the resource forest. Lookups never
// fail: an unknown resource is treated as a root with no ancestors, and a
// dangling parent pointer terminates the walk at the last known node.
type Hierarchy struct {
	parent map[string]string
	class  map[string]string
}

// NewHierarchy indexes the given resources. Nil entries are skipped.
func NewHierarchy(resources []*Resource) *Hierarchy {
	h := &Hierarchy{
		parent: make(map[string]string, len(resources)),
		class:  make(map[string]string, len(resources)),
	}
	for _, r := range resources {
		if r == nil {
			continue
		}
		h.parent[r.ID] = r.Parent
		h.class[r.ID] = r.Class
	}
	return h
}

// Known reports whether the resource was registered.
func (h *Hierarchy) Known(id string) bool {
	_, ok := h.parent[id]
	return ok
}

// Class returns the resource's class, or "" for unknown resources.
func (h *Hierarchy) Class(id string) string { return h.class[id] }

// Parent returns the resource's parent ID and whether one exists. A dangling
// parent (pointing at an unregistered resource) is still returned; callers
// doing walks should use Ancestors, which stops at the dangling edge.
func (h *Hierarchy) Parent(id string) (string, bool) {
	p, ok := h.parent[id]
	if !ok || p == "" {
		return "", false
	}
	return p, true
}

// Ancestors returns the chain of ancestor IDs closest-first, walking at most
// maxDepth steps. The walk stops silently at a dangling parent or at the
// depth bound; it never errors and never loops (Validate catches cycles at
// load time, and the bound caps corrupt data that slipped through).
func (h *Hierarchy) Ancestors(id string, maxDepth int) []string {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var out []string
	cur := id
	for i := 0; i < maxDepth; i++ {
		p, ok := h.parent[cur]
		if !ok || p == "" {
			break
		}
		if _, known := h.parent[p]; !known {
			// dangling parent: treat cur as a root
			break
		}
		out = append(out, p)
		cur = p
	}
	return out
}

// Validate walks every node and rejects parent cycles. Dangling parents are
// permitted (they degrade to roots at evaluation time); cycles are not.
func (h *Hierarchy) Validate() error {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	state := make(map[string]int, len(h.parent))
	for id := range h.parent {
		if state[id] != white {
			continue
		}
		cur := id
		var path []string
		for {
			if state[cur] == black {
				break
			}
			if state[cur] == grey {
				return NewValidationError("hierarchy", fmt.Sprintf("cycle through resource %q", cur))
			}
			state[cur] = grey
			path = append(path, cur)
			p, ok := h.parent[cur]
			if !ok || p == "" {
				break
			}
			if _, known := h.parent[p]; !known {
				break
			}
			cur = p
		}
		for _, n := range path {
			state[n] = black
		}
	}
	return nil
}

// Len returns the number of registered resources.
func (h *Hierarchy) Len() int { return len(h.parent) }
