package benchmark

import (
	"fmt"
	"testing"
	"time"

	"github.com/oarkflow/rebac"
)

var benchAt = time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)

func benchSnapshot(depth int) (*rebac.Snapshot, map[string]*rebac.ActorContext) {
	b := rebac.NewConfigBuilder().
		Permission("read", "Read", 1).
		Permission("write", "Write", 2).
		Role("viewer", "Viewer", "read").
		Role("editor", "Editor", "read", "write").
		Actor("alice", rebac.NewAssignmentBuilder("viewer").Build()).
		Actor("bob", rebac.NewAssignmentBuilder("editor").Schedule("* 9-17 * * 1-5").Build())

	parent := ""
	for i := 0; i < depth; i++ {
		id := fmt.Sprintf("node-%d", i)
		b.Resource(id, "node", parent)
		parent = id
	}
	b.Override(rebac.NewOverrideBuilder().
		ID("ov-root").Actor("alice").Resource("node-0").Action("write").Deny().Build())

	cfg := b.Build()
	snap, err := cfg.BuildSnapshot()
	if err != nil {
		panic(err)
	}
	return snap, cfg.ActorContexts()
}

func BenchmarkEvaluateMatrix(b *testing.B) {
	snap, actors := benchSnapshot(4)
	e := rebac.NewEngine(rebac.WithoutTrace())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Evaluate("node-3", "read", actors["alice"], snap, benchAt)
	}
}

func BenchmarkEvaluateDeepHierarchy(b *testing.B) {
	snap, actors := benchSnapshot(32)
	e := rebac.NewEngine(rebac.WithoutTrace())
	leaf := fmt.Sprintf("node-%d", 31)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Evaluate(leaf, "write", actors["alice"], snap, benchAt)
	}
}

func BenchmarkEvaluateScheduled(b *testing.B) {
	snap, actors := benchSnapshot(4)
	e := rebac.NewEngine(rebac.WithoutTrace())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Evaluate("node-3", "write", actors["bob"], snap, benchAt)
	}
}

func BenchmarkEvaluateWithTrace(b *testing.B) {
	snap, actors := benchSnapshot(4)
	e := rebac.NewEngine()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Evaluate("node-3", "read", actors["alice"], snap, benchAt)
	}
}

func BenchmarkEvaluateBatch(b *testing.B) {
	snap, actors := benchSnapshot(8)
	e := rebac.NewEngine(rebac.WithoutTrace())
	reqs := make([]rebac.AccessRequest, 0, 16)
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("node-%d", i)
		reqs = append(reqs,
			rebac.AccessRequest{Resource: id, Action: "read"},
			rebac.AccessRequest{Resource: id, Action: "write"})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.EvaluateBatch(reqs, actors["alice"], snap, benchAt)
	}
}

func BenchmarkEvaluateParallel(b *testing.B) {
	snap, actors := benchSnapshot(8)
	e := rebac.NewEngine(rebac.WithoutTrace())
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			e.Evaluate("node-7", "read", actors["alice"], snap, benchAt)
		}
	})
}

func BenchmarkSimulateRoleChange(b *testing.B) {
	snap, actors := benchSnapshot(8)
	e := rebac.NewEngine(rebac.WithoutTrace())
	population := make([]rebac.Triple, 0, 8)
	for i := 0; i < 8; i++ {
		population = append(population, rebac.Triple{
			Actor: "alice", Resource: fmt.Sprintf("node-%d", i), Action: "write",
		})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.SimulateRoleChange(snap, "viewer", []string{"write"}, nil, population, actors, benchAt)
	}
}

func BenchmarkGlobalPermissions(b *testing.B) {
	snap, actors := benchSnapshot(4)
	e := rebac.NewEngine(rebac.WithoutTrace())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.GlobalPermissions(actors["bob"], snap, benchAt)
	}
}
