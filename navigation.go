package rebac

import (
	"fmt"
	"time"
)

// ============================================================================
// NAVIGATION VISIBILITY
// ============================================================================

// NavItem describes one navigation entry. An item is visible when the actor
// holds at least one of RequiredPermissions (an empty list means always
// visible). Items may nest; a parent with visible children stays visible so
// the tree never orphans a reachable leaf.
type NavItem struct {
	ID                  string    `json:"id" yaml:"id"`
	Label               string    `json:"label" yaml:"label"`
	Href                string    `json:"href" yaml:"href"`
	Icon                string    `json:"icon,omitempty" yaml:"icon,omitempty"`
	RequiredPermissions []string  `json:"required_permissions,omitempty" yaml:"required_permissions,omitempty"`
	Children            []NavItem `json:"children,omitempty" yaml:"children,omitempty"`
}

// NavSection groups items; it is visible when any of its items is.
type NavSection struct {
	ID    string    `json:"id" yaml:"id"`
	Label string    `json:"label" yaml:"label"`
	Items []NavItem `json:"items,omitempty" yaml:"items,omitempty"`
}

// NavItemVisibility is the per-item evaluation outcome.
type NavItemVisibility struct {
	ID                 string              `json:"id"`
	Label              string              `json:"label"`
	Href               string              `json:"href"`
	Icon               string              `json:"icon,omitempty"`
	Visible            bool                `json:"visible"`
	MissingPermissions []string            `json:"missing_permissions,omitempty"`
	Reasons            []string            `json:"reasons,omitempty"`
	Children           []NavItemVisibility `json:"children,omitempty"`
}

// NavSectionVisibility is the per-section evaluation outcome.
type NavSectionVisibility struct {
	ID      string              `json:"id"`
	Label   string              `json:"label"`
	Visible bool                `json:"visible"`
	Items   []NavItemVisibility `json:"items"`
}

// NavItemSummary is a flattened visible item with its section attached.
type NavItemSummary struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Href         string `json:"href"`
	SectionID    string `json:"section_id"`
	SectionLabel string `json:"section_label"`
}

// DefaultNavigation returns the built-in admin navigation registry.
func DefaultNavigation() []NavSection {
	return []NavSection{
		{
			ID:    "identity_access",
			Label: "Identity & Access",
			Items: []NavItem{
				{ID: "admin.dashboard", Label: "Dashboard", Href: "/admin", Icon: "LayoutDashboard", RequiredPermissions: []string{"ui.view.dashboard"}},
				{ID: "admin.users", Label: "User Management", Href: "/admin/users", Icon: "Users", RequiredPermissions: []string{"ui.view.users"}},
			},
		},
		{
			ID:    "role_management",
			Label: "Role Management",
			Items: []NavItem{
				{ID: "admin.roles.designer", Label: "Role Designer", Href: "/admin/roles/designer", Icon: "Shield", RequiredPermissions: []string{"ui.view.roles"}},
				{ID: "admin.roles.manager", Label: "Role Manager", Href: "/admin/roles/manager", Icon: "Shield", RequiredPermissions: []string{"ui.view.roles"}},
				{ID: "admin.schedules", Label: "Access Schedules", Href: "/admin/schedules", Icon: "Clock", RequiredPermissions: []string{"ui.view.schedules"}},
				{ID: "admin.roles.delegation", Label: "Delegation Rules", Href: "/admin/roles/delegation", Icon: "Workflow", RequiredPermissions: []string{"ui.view.roles"}},
				{ID: "admin.navigation", Label: "Navigation Simulator", Href: "/admin/navigation", Icon: "Workflow", RequiredPermissions: []string{"ui.view.roles"}},
			},
		},
		{
			ID:    "ontology_engine",
			Label: "Ontology Engine",
			Items: []NavItem{
				{ID: "admin.ontology.designer", Label: "Ontology Designer", Href: "/admin/ontology/designer", Icon: "Database", RequiredPermissions: []string{"ui.view.ontology"}},
				{ID: "admin.ontology.classes", Label: "Class Manager", Href: "/admin/ontology/classes", Icon: "Layers", RequiredPermissions: []string{"ui.view.ontology"}},
			},
		},
		{
			ID:    "system_observability",
			Label: "System & Observability",
			Items: []NavItem{
				{ID: "stats.system", Label: "System Metrics", Href: "/stats/system", Icon: "Activity", RequiredPermissions: []string{"ui.view.metrics"}},
				{ID: "system.logs", Label: "System Logs", Href: "/logs", Icon: "FileText", RequiredPermissions: []string{"ui.view.logs"}},
			},
		},
	}
}

// EvaluateNavigationWithPermissions resolves visibility for every section
// against an explicit permission set. An item is visible when it requires
// nothing, when the set holds the wildcard "*", or when at least one
// required permission is present. Permissions the set lacks are reported in
// MissingPermissions whether or not the item ends up visible.
func EvaluateNavigationWithPermissions(sections []NavSection, permissions []string) []NavSectionVisibility {
	set := make(map[string]bool, len(permissions))
	for _, p := range permissions {
		set[p] = true
	}
	out := make([]NavSectionVisibility, 0, len(sections))
	for _, section := range sections {
		sv := NavSectionVisibility{ID: section.ID, Label: section.Label, Items: make([]NavItemVisibility, 0, len(section.Items))}
		for _, item := range section.Items {
			iv := evaluateNavItem(item, set)
			if iv.Visible {
				sv.Visible = true
			}
			sv.Items = append(sv.Items, iv)
		}
		out = append(out, sv)
	}
	return out
}

// EvaluateNavigation resolves visibility for the actor's global-matrix
// permissions at now. Overrides and scoped assignments never influence
// navigation; links either work everywhere or are hidden.
func (e *Engine) EvaluateNavigation(sections []NavSection, actor *ActorContext, snap *Snapshot, now time.Time) []NavSectionVisibility {
	return EvaluateNavigationWithPermissions(sections, e.GlobalPermissions(actor, snap, now))
}

func evaluateNavItem(item NavItem, permissions map[string]bool) NavItemVisibility {
	iv := NavItemVisibility{ID: item.ID, Label: item.Label, Href: item.Href, Icon: item.Icon}

	if len(item.RequiredPermissions) == 0 {
		iv.Visible = true
	} else {
		for _, p := range item.RequiredPermissions {
			if permissions[p] || permissions["*"] {
				iv.Visible = true
			} else {
				iv.MissingPermissions = append(iv.MissingPermissions, p)
				iv.Reasons = append(iv.Reasons, fmt.Sprintf("Missing permission: %s", p))
			}
		}
	}

	for _, child := range item.Children {
		cv := evaluateNavItem(child, permissions)
		if cv.Visible {
			iv.Visible = true
		}
		iv.Children = append(iv.Children, cv)
	}
	return iv
}

// FlattenVisibleItems collects every visible item (including nested ones)
// with its owning section, preserving registry order.
func FlattenVisibleItems(sections []NavSectionVisibility) []NavItemSummary {
	var out []NavItemSummary
	for _, section := range sections {
		for _, item := range section.Items {
			collectVisible(item, &section, &out)
		}
	}
	return out
}

func collectVisible(item NavItemVisibility, section *NavSectionVisibility, out *[]NavItemSummary) {
	if item.Visible {
		*out = append(*out, NavItemSummary{
			ID:           item.ID,
			Label:        item.Label,
			Href:         item.Href,
			SectionID:    section.ID,
			SectionLabel: section.Label,
		})
	}
	for _, child := range item.Children {
		collectVisible(child, section, out)
	}
}

// NavSimulation diffs the visible item sets of two permission profiles.
type NavSimulation struct {
	AddedItems     []NavItemSummary  `json:"added_items"`
	RemovedItems   []NavItemSummary  `json:"removed_items"`
	UnchangedItems []NavItemSummary  `json:"unchanged_items"`
	Summary        SimulationSummary `json:"summary"`
}

// SimulateNavigation evaluates the registry under baseline and proposed
// permission sets and diffs visible items by ID. Output order follows
// registry order, so the call is deterministic and idempotent.
func SimulateNavigation(sections []NavSection, baselinePerms, proposedPerms []string) *NavSimulation {
	baseline := FlattenVisibleItems(EvaluateNavigationWithPermissions(sections, baselinePerms))
	proposed := FlattenVisibleItems(EvaluateNavigationWithPermissions(sections, proposedPerms))

	baseIDs := make(map[string]bool, len(baseline))
	for _, i := range baseline {
		baseIDs[i.ID] = true
	}
	propIDs := make(map[string]bool, len(proposed))
	for _, i := range proposed {
		propIDs[i.ID] = true
	}

	sim := &NavSimulation{
		AddedItems:     []NavItemSummary{},
		RemovedItems:   []NavItemSummary{},
		UnchangedItems: []NavItemSummary{},
	}
	for _, i := range proposed {
		if baseIDs[i.ID] {
			sim.UnchangedItems = append(sim.UnchangedItems, i)
		} else {
			sim.AddedItems = append(sim.AddedItems, i)
		}
	}
	for _, i := range baseline {
		if !propIDs[i.ID] {
			sim.RemovedItems = append(sim.RemovedItems, i)
		}
	}
	sim.Summary = SimulationSummary{
		Added:     len(sim.AddedItems),
		Removed:   len(sim.RemovedItems),
		Unchanged: len(sim.UnchangedItems),
	}
	return sim
}
