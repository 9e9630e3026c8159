package navigation

import (
	"fmt"
	"sort"
	"strings"
)

// IssueKind classifies a configuration mismatch found by Validate.
type IssueKind string

const (
	IssueUnknownIcon       IssueKind = "unknown_icon"
	IssueMissingComponent  IssueKind = "missing_component"
	IssueOrphanComponent   IssueKind = "orphan_component"
	IssueUnknownSubPage    IssueKind = "unknown_sub_page"
	IssueUnknownBreadcrumb IssueKind = "unknown_breadcrumb"
	IssueUnknownParent     IssueKind = "unknown_parent"
)

// Issue is one mismatch between the route table and its lookup tables.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	Key    string    `json:"key"`
	Detail string    `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Kind, i.Key, i.Detail)
}

// ValidationError wraps the issues found when strict validation is on.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return fmt.Sprintf("navigation config has %d issue(s): %s", len(e.Issues), strings.Join(parts, "; "))
}

// Validate cross-checks the route table against the icon table, the
// component keys and the breadcrumb maps. At runtime every mismatch it
// reports degrades gracefully; Validate makes them visible up front.
func Validate(table *RouteTable, icons IconSet, componentKeys []string, pages PageConfig) []Issue {
	pages.applyDefaults()
	var issues []Issue

	components := make(map[string]bool, len(componentKeys))
	for _, k := range componentKeys {
		components[k] = true
	}

	routeKeys := make(map[string]bool)
	for _, n := range table.Flatten() {
		routeKeys[n.Key] = true

		if n.Icon != "" && !icons.Has(n.Icon) {
			issues = append(issues, Issue{IssueUnknownIcon, n.Key, fmt.Sprintf("icon %q is not in the icon table", n.Icon)})
		}
		if n.Key != pages.HomeKey && n.Path != pages.LoginPath && !components[n.Key] {
			issues = append(issues, Issue{IssueMissingComponent, n.Key, "no page component registered"})
		}
	}

	for _, k := range sortedKeys(components) {
		if !routeKeys[k] {
			issues = append(issues, Issue{IssueOrphanComponent, k, "component has no route"})
		}
	}
	for _, k := range sortedKeys(pages.SubPageMap) {
		if !routeKeys[k] {
			issues = append(issues, Issue{IssueUnknownSubPage, k, "sub page title for unknown route"})
		}
	}
	for _, k := range sortedKeys(pages.BreadcrumbConfig) {
		if !routeKeys[k] {
			issues = append(issues, Issue{IssueUnknownBreadcrumb, k, "breadcrumb config for unknown route"})
		}
		if p := pages.BreadcrumbConfig[k].ParentKey; p != "" && !routeKeys[p] {
			issues = append(issues, Issue{IssueUnknownParent, k, fmt.Sprintf("parent %q is not a route", p)})
		}
	}

	return issues
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
