// Package guard maps the session role to the pages it may open.
package guard

import (
	"diesel-manager-web/internal/model"
)

// Paths of the role-gated pages.
const (
	PathLogin          = "/login"
	PathDashboard      = "/"
	PathReceiving      = "/receiving"
	PathUsage          = "/usage"
	PathReports        = "/reports"
	PathInvoices       = "/invoices"
	PathInvoice        = "/invoice/:id"
	PathAudit          = "/audit"
	PathUserManagement = "/user-management"
)

// Route is a page and the roles allowed to open it. An empty Allowed set
// admits any authenticated role.
type Route struct {
	Path    string
	Title   string
	Allowed []model.Role
	// Nav puts the route in the navigation bar.
	Nav bool
}

var managers = []model.Role{model.RoleDieselManager, model.RoleAdmin}

// Routes is the route table in navigation order.
var Routes = []Route{
	{Path: PathDashboard, Title: "Dashboard", Nav: true},
	{Path: PathReceiving, Title: "Diesel Receiving", Allowed: []model.Role{model.RoleDieselManager, model.RoleAdmin, model.RoleSiteIncharge}, Nav: true},
	{Path: PathUsage, Title: "Diesel Usage", Allowed: model.Roles(), Nav: true},
	{Path: PathReports, Title: "Reports", Allowed: managers, Nav: true},
	{Path: PathInvoices, Title: "Invoices", Allowed: managers, Nav: true},
	{Path: PathInvoice, Title: "Invoice", Allowed: managers},
	{Path: PathAudit, Title: "Audit Trail", Allowed: []model.Role{model.RoleAdmin}, Nav: true},
	{Path: PathUserManagement, Title: "User Management", Allowed: []model.Role{model.RoleAdmin}, Nav: true},
}

// Lookup finds a route by path pattern.
func Lookup(path string) (Route, bool) {
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// Outcome is the result of a guard decision.
type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	RedirectHome
)

// Decision carries the outcome and where to send the browser.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Allowed reports whether the decision permits rendering.
func (d Decision) Allowed() bool { return d.Outcome == Allow }

// Permits reports whether role may open route. Unknown roles only pass
// routes with an empty allowed set.
func Permits(route Route, role model.Role) bool {
	if len(route.Allowed) == 0 {
		return true
	}
	for _, r := range route.Allowed {
		if r == role {
			return true
		}
	}
	return false
}

// Decide applies the guard to a session.
func Decide(authenticated bool, role model.Role, route Route) Decision {
	switch {
	case !authenticated:
		return Decision{Outcome: RedirectLogin, Location: PathLogin}
	case Permits(route, role):
		return Decision{Outcome: Allow}
	default:
		return Decision{Outcome: RedirectHome, Location: PathDashboard}
	}
}

// NavItem is one navigation bar entry.
type NavItem struct {
	Path  string
	Title string
}

// NavItems lists the navigation entries for role. Unknown roles get none.
func NavItems(role model.Role) []NavItem {
	if !role.Valid() {
		return nil
	}
	var items []NavItem
	for _, r := range Routes {
		if r.Nav && Permits(r, role) {
			items = append(items, NavItem{Path: r.Path, Title: r.Title})
		}
	}
	return items
}
