package rbac

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidRole is returned when a value is not one of the four known roles.
var ErrInvalidRole = errors.New("invalid role")

// Role is one of the fixed access tiers.
type Role string

// Known roles.
const (
	RoleViewer   Role = "VIEWER"
	RoleEditor   Role = "EDITOR"
	RoleApprover Role = "APPROVER"
	RoleAdmin    Role = "ADMIN"
)

// Permission is a capability token gating one class of operation.
type Permission string

// Known permissions.
const (
	PermViewProposals     Permission = "view_proposals"
	PermDownloadFiles     Permission = "download_files"
	PermUploadRFP         Permission = "upload_rfp"
	PermEditResponses     Permission = "edit_responses"
	PermGenerateProposals Permission = "generate_proposals"
	PermApproveDrafts     Permission = "approve_drafts"
	PermExportDocuments   Permission = "export_documents"
	PermManageUsers       Permission = "manage_users"
	PermManageTemplates   Permission = "manage_templates"
	PermViewAccessLogs    Permission = "view_access_logs"
)

var allRoles = []Role{RoleViewer, RoleEditor, RoleApprover, RoleAdmin}

var allPermissions = []Permission{
	PermViewProposals,
	PermDownloadFiles,
	PermUploadRFP,
	PermEditResponses,
	PermGenerateProposals,
	PermApproveDrafts,
	PermExportDocuments,
	PermManageUsers,
	PermManageTemplates,
	PermViewAccessLogs,
}

// rolePermissions is the single authoritative role table.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermViewProposals,
		PermDownloadFiles,
	},
	RoleEditor: {
		PermViewProposals,
		PermDownloadFiles,
		PermUploadRFP,
		PermEditResponses,
		PermGenerateProposals,
	},
	RoleApprover: {
		PermViewProposals,
		PermDownloadFiles,
		PermApproveDrafts,
		PermExportDocuments,
	},
	RoleAdmin: allPermissions,
}

// AllRoles lists every role, lowest privilege first.
func AllRoles() []Role {
	return slices.Clone(allRoles)
}

// AllPermissions lists every known permission.
func AllPermissions() []Permission {
	return slices.Clone(allPermissions)
}

// ParseRole converts user input into a Role. Matching is case-insensitive.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// PermissionsFor returns the permission set held by role.
func PermissionsFor(role Role) ([]Permission, error) {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, string(role))
	}
	return slices.Clone(perms), nil
}

// HasPermission reports whether role holds perm. Unknown roles hold nothing.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// HasAny reports whether role holds at least one of perms.
func HasAny(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAll reports whether role holds every one of perms.
func HasAll(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}
