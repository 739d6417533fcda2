package rebac

import (
	"testing"
)

func navFixture() []NavSection {
	return []NavSection{
		{
			ID:    "admin",
			Label: "Administration",
			Items: []NavItem{
				{ID: "admin.home", Label: "Home", Href: "/admin"},
				{ID: "admin.users", Label: "Users", Href: "/admin/users", RequiredPermissions: []string{"ui.view.users"}},
				{ID: "admin.roles", Label: "Roles", Href: "/admin/roles", RequiredPermissions: []string{"ui.view.roles", "ui.manage.roles"}},
			},
		},
		{
			ID:    "reports",
			Label: "Reports",
			Items: []NavItem{
				{ID: "reports.usage", Label: "Usage", Href: "/reports/usage", RequiredPermissions: []string{"ui.view.reports"}},
			},
		},
	}
}

func TestNavigationAnyRequiredPermissionSuffices(t *testing.T) {
	sections := EvaluateNavigationWithPermissions(navFixture(), []string{"ui.manage.roles"})

	roles := sections[0].Items[2]
	if !roles.Visible {
		t.Fatalf("expected one of several required permissions to suffice")
	}
	if len(roles.MissingPermissions) != 1 || roles.MissingPermissions[0] != "ui.view.roles" {
		t.Fatalf("expected the unheld permission reported missing, got %v", roles.MissingPermissions)
	}
}

func TestNavigationEmptyRequirementAlwaysVisible(t *testing.T) {
	sections := EvaluateNavigationWithPermissions(navFixture(), nil)
	if !sections[0].Items[0].Visible {
		t.Fatalf("item without requirements should always be visible")
	}
	if !sections[0].Visible {
		t.Fatalf("section with a visible item should be visible")
	}
	if sections[1].Visible {
		t.Fatalf("section with no visible items should be hidden")
	}
}

func TestNavigationUnknownPermissionNeverMatches(t *testing.T) {
	sections := EvaluateNavigationWithPermissions(navFixture(), []string{"ui.view.something.else"})
	users := sections[0].Items[1]
	if users.Visible {
		t.Fatalf("unheld permission must not grant visibility")
	}
	if len(users.MissingPermissions) != 1 || users.MissingPermissions[0] != "ui.view.users" {
		t.Fatalf("expected missing list, got %v", users.MissingPermissions)
	}
	if len(users.Reasons) != 1 {
		t.Fatalf("expected one reason, got %v", users.Reasons)
	}
}

func TestNavigationWildcardGrantsAll(t *testing.T) {
	sections := EvaluateNavigationWithPermissions(navFixture(), []string{"*"})
	for _, s := range sections {
		if !s.Visible {
			t.Fatalf("wildcard should reveal section %s", s.ID)
		}
		for _, i := range s.Items {
			if !i.Visible {
				t.Fatalf("wildcard should reveal item %s", i.ID)
			}
		}
	}
}

func TestNavigationChildKeepsParentVisible(t *testing.T) {
	sections := []NavSection{{
		ID:    "ops",
		Label: "Operations",
		Items: []NavItem{{
			ID: "ops.parent", Label: "Parent", Href: "/ops",
			RequiredPermissions: []string{"ui.view.parent"},
			Children: []NavItem{
				{ID: "ops.child", Label: "Child", Href: "/ops/child", RequiredPermissions: []string{"ui.view.child"}},
			},
		}},
	}}

	out := EvaluateNavigationWithPermissions(sections, []string{"ui.view.child"})
	parent := out[0].Items[0]
	if !parent.Visible {
		t.Fatalf("parent with visible child must stay visible")
	}
	if !parent.Children[0].Visible {
		t.Fatalf("child should be visible")
	}

	flat := FlattenVisibleItems(out)
	if len(flat) != 2 {
		t.Fatalf("expected parent and child flattened, got %v", flat)
	}
	if flat[1].SectionID != "ops" {
		t.Fatalf("expected section attached to flattened item, got %+v", flat[1])
	}
}

func TestEvaluateNavigationUsesGlobalMatrixOnly(t *testing.T) {
	e := NewEngine()
	matrix := map[string][]string{
		"ui-admin": {"ui.view.users"},
	}
	roles := []*Role{{ID: "ui-admin", Name: "UI Admin"}}
	snap := NewSnapshot(nil, roles, matrix, []*OverrideGrant{
		{ID: "ov-1", Authority: "user-9", Resource: "dashboard", Action: "ui.view.reports", Effect: EffectAllow},
	}, nil)

	actor := &ActorContext{ID: "user-9", Assignments: []RoleAssignment{{Role: "ui-admin"}}}
	sections := e.EvaluateNavigation(navFixture(), actor, snap, evalAt)

	if !sections[0].Items[1].Visible {
		t.Fatalf("matrix permission should reveal users item")
	}
	if sections[1].Items[0].Visible {
		t.Fatalf("override grants must not affect navigation")
	}
}

func TestSimulateNavigationDiff(t *testing.T) {
	sim := SimulateNavigation(navFixture(),
		[]string{"ui.view.users"},
		[]string{"ui.view.users", "ui.view.reports"})

	if sim.Summary.Added != 1 || sim.AddedItems[0].ID != "reports.usage" {
		t.Fatalf("unexpected added items: %+v", sim.AddedItems)
	}
	if sim.Summary.Removed != 0 {
		t.Fatalf("unexpected removed items: %+v", sim.RemovedItems)
	}
	// admin.home (unrestricted) and admin.users stay
	if sim.Summary.Unchanged != 2 {
		t.Fatalf("unexpected unchanged count: %+v", sim.Summary)
	}

	// swapping baseline and proposed mirrors the diff
	rev := SimulateNavigation(navFixture(),
		[]string{"ui.view.users", "ui.view.reports"},
		[]string{"ui.view.users"})
	if rev.Summary.Removed != 1 || rev.RemovedItems[0].ID != "reports.usage" {
		t.Fatalf("unexpected reverse diff: %+v", rev.Summary)
	}
}

func TestDefaultNavigationWellFormed(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range DefaultNavigation() {
		if s.ID == "" || len(s.Items) == 0 {
			t.Fatalf("malformed section %+v", s)
		}
		for _, i := range s.Items {
			if i.ID == "" || i.Href == "" {
				t.Fatalf("malformed item %+v", i)
			}
			if seen[i.ID] {
				t.Fatalf("duplicate item id %s", i.ID)
			}
			seen[i.ID] = true
		}
	}
}
