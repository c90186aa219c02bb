package rbac

import (
	"maps"
	"slices"
)

// Route keys of the dashboard pages.
const (
	RouteDashboard        = "/dashboard"
	RouteProposals        = "/proposals"
	RouteProposalsUpload  = "/proposals/upload"
	RouteProposalsEdit    = "/proposals/edit"
	RouteProposalsApprove = "/proposals/approve"
	RouteUsers            = "/users"
	RouteTemplates        = "/templates"
	RouteLogs             = "/logs"
	RouteReports          = "/reports"
)

// routePermissions maps a route key to the permissions that open it.
// A route absent from the table is public.
var routePermissions = map[string][]Permission{
	RouteDashboard:        {PermViewProposals},
	RouteProposals:        {PermViewProposals},
	RouteProposalsUpload:  {PermUploadRFP},
	RouteProposalsEdit:    {PermEditResponses},
	RouteProposalsApprove: {PermApproveDrafts},
	RouteUsers:            {PermManageUsers},
	RouteTemplates:        {PermManageTemplates},
	RouteLogs:             {PermViewAccessLogs},
	RouteReports:          {PermExportDocuments},
}

// CanAccessRoute reports whether role may open the route identified by key.
func CanAccessRoute(role Role, key string) bool {
	required, ok := routePermissions[key]
	if !ok {
		return true
	}
	return HasAny(role, required...)
}

// RouteKeys returns the guarded route keys in lexical order.
func RouteKeys() []string {
	return slices.Sorted(maps.Keys(routePermissions))
}
