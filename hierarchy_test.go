package rebac

import (
	"reflect"
	"testing"
)

func TestAncestorsClosestFirst(t *testing.T) {
	h := NewHierarchy([]*Resource{
		{ID: "project-1", Class: "project"},
		{ID: "task-1", Class: "task", Parent: "project-1"},
		{ID: "subtask-1", Class: "subtask", Parent: "task-1"},
	})

	got := h.Ancestors("subtask-1", 0)
	want := []string{"task-1", "project-1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v got %v", want, got)
	}

	if anc := h.Ancestors("project-1", 0); len(anc) != 0 {
		t.Fatalf("root should have no ancestors, got %v", anc)
	}
	if anc := h.Ancestors("unknown", 0); len(anc) != 0 {
		t.Fatalf("unknown resource should have no ancestors, got %v", anc)
	}
}

func TestAncestorsDanglingParentActsAsRoot(t *testing.T) {
	h := NewHierarchy([]*Resource{
		{ID: "task-1", Parent: "ghost-project"},
		{ID: "subtask-1", Parent: "task-1"},
	})

	got := h.Ancestors("subtask-1", 0)
	want := []string{"task-1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("walk should stop at dangling edge: expected %v got %v", want, got)
	}
}

func TestAncestorsDepthBound(t *testing.T) {
	chain := make([]*Resource, 0, 101)
	chain = append(chain, &Resource{ID: "c0"})
	for i := 1; i <= 100; i++ {
		chain = append(chain, &Resource{ID: chainID(i), Parent: chainID(i - 1)})
	}
	h := NewHierarchy(chain)

	if got := len(h.Ancestors(chainID(100), 10)); got != 10 {
		t.Fatalf("expected walk capped at 10, got %d", got)
	}
	if got := len(h.Ancestors(chainID(100), 0)); got != DefaultMaxDepth {
		t.Fatalf("expected default cap %d, got %d", DefaultMaxDepth, got)
	}
}

func chainID(i int) string {
	if i == 0 {
		return "c0"
	}
	return "c" + string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func TestValidateRejectsCycle(t *testing.T) {
	h := NewHierarchy([]*Resource{
		{ID: "a", Parent: "b"},
		{ID: "b", Parent: "c"},
		{ID: "c", Parent: "a"},
	})
	if err := h.Validate(); err == nil {
		t.Fatalf("expected cycle error")
	} else if !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestValidateAcceptsForestWithDanglingParent(t *testing.T) {
	h := NewHierarchy([]*Resource{
		{ID: "a"},
		{ID: "b", Parent: "a"},
		{ID: "c", Parent: "ghost"},
	})
	if err := h.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
