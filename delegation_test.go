package rebac

import (
	"reflect"
	"testing"
)

func delegationSnapshot() *Snapshot {
	return NewSnapshot(nil, nil, nil, nil, []*DelegationRule{
		{Granter: "alice", Grantee: "bob", CanGrant: true, CanModify: true},
		{Granter: "bob", Grantee: "carol", CanGrant: true, CanRevoke: true},
		{Granter: "alice", Grantee: "dave", CanRevoke: true},
	})
}

func TestCanDelegateDirectEdge(t *testing.T) {
	snap := delegationSnapshot()

	if !snap.CanDelegate("alice", "bob", CapGrant) {
		t.Fatalf("expected alice can grant over bob")
	}
	if !snap.CanDelegate("alice", "bob", CapModify) {
		t.Fatalf("expected alice can modify over bob")
	}
	if snap.CanDelegate("alice", "bob", CapRevoke) {
		t.Fatalf("expected alice cannot revoke over bob")
	}
	if snap.CanDelegate("bob", "alice", CapGrant) {
		t.Fatalf("delegation is directional")
	}
	if snap.CanDelegate("alice", "nobody", CapGrant) {
		t.Fatalf("missing edge should not delegate")
	}
}

func TestCanDelegateNotTransitive(t *testing.T) {
	snap := delegationSnapshot()

	// alice->bob and bob->carol never imply alice->carol
	if snap.CanDelegate("alice", "carol", CapGrant) {
		t.Fatalf("expected no transitive authority")
	}
}

func TestDelegationClosureIsExplicit(t *testing.T) {
	snap := delegationSnapshot()

	got := snap.DelegationClosure("alice", CapGrant)
	want := []string{"bob", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected closure %v, got %v", want, got)
	}

	// the closure includes carol, the direct lookup still refuses her
	if snap.CanDelegate("alice", "carol", CapGrant) {
		t.Fatalf("closure must not leak into CanDelegate")
	}
}

func TestDelegatees(t *testing.T) {
	snap := delegationSnapshot()

	got := snap.Delegatees("alice", CapRevoke)
	want := []string{"dave"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestUnknownCapability(t *testing.T) {
	snap := delegationSnapshot()
	if snap.CanDelegate("alice", "bob", Capability("escalate")) {
		t.Fatalf("unknown capability must never delegate")
	}
}
