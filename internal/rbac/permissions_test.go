package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleTable(t *testing.T) {
	cases := map[Role][]Permission{
		RoleViewer:   {PermViewProposals, PermDownloadFiles},
		RoleEditor:   {PermViewProposals, PermDownloadFiles, PermUploadRFP, PermEditResponses, PermGenerateProposals},
		RoleApprover: {PermViewProposals, PermDownloadFiles, PermApproveDrafts, PermExportDocuments},
		RoleAdmin:    AllPermissions(),
	}
	for role, want := range cases {
		t.Run(role.String(), func(t *testing.T) {
			got, err := PermissionsFor(role)
			require.NoError(t, err)
			assert.ElementsMatch(t, want, got)
		})
	}
}

func TestAdminHoldsEveryPermission(t *testing.T) {
	for _, perm := range AllPermissions() {
		assert.True(t, HasPermission(RoleAdmin, perm), perm)
	}
}

func TestViewerIsSubsetOfEveryRole(t *testing.T) {
	viewer, err := PermissionsFor(RoleViewer)
	require.NoError(t, err)
	for _, role := range AllRoles() {
		assert.True(t, HasAll(role, viewer...), role)
	}
}

func TestOnlyAdminManagesUsers(t *testing.T) {
	for _, role := range AllRoles() {
		assert.Equal(t, role == RoleAdmin, HasPermission(role, PermManageUsers), role)
	}
}

func TestHasAnyAndHasAll(t *testing.T) {
	assert.True(t, HasAny(RoleEditor, PermApproveDrafts, PermUploadRFP))
	assert.False(t, HasAny(RoleViewer, PermApproveDrafts, PermUploadRFP))
	assert.False(t, HasAny(RoleAdmin))
	assert.True(t, HasAll(RoleApprover, PermApproveDrafts, PermExportDocuments))
	assert.False(t, HasAll(RoleApprover, PermApproveDrafts, PermUploadRFP))
	assert.True(t, HasAll(RoleViewer))
}

func TestUnknownRoleHoldsNothing(t *testing.T) {
	ghost := Role("GHOST")
	assert.False(t, ghost.Valid())
	assert.False(t, HasPermission(ghost, PermViewProposals))
	_, err := PermissionsFor(ghost)
	assert.True(t, errors.Is(err, ErrInvalidRole))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" approver ")
	require.NoError(t, err)
	assert.Equal(t, RoleApprover, role)

	for _, raw := range []string{"", "root", "ADMINS"} {
		_, err := ParseRole(raw)
		assert.ErrorIs(t, err, ErrInvalidRole, raw)
	}
}

func TestCanAccessRoute(t *testing.T) {
	cases := []struct {
		role Role
		key  string
		want bool
	}{
		{RoleViewer, RouteDashboard, true},
		{RoleViewer, RouteProposalsUpload, false},
		{RoleEditor, RouteProposalsUpload, true},
		{RoleEditor, RouteProposalsApprove, false},
		{RoleApprover, RouteProposalsApprove, true},
		{RoleApprover, RouteReports, true},
		{RoleApprover, RouteUsers, false},
		{RoleAdmin, RouteUsers, true},
		{RoleAdmin, RouteLogs, true},
		{RoleViewer, "/help", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanAccessRoute(tc.role, tc.key), "%s %s", tc.role, tc.key)
	}
}

func TestRouteKeysSorted(t *testing.T) {
	keys := RouteKeys()
	assert.Len(t, keys, 9)
	assert.IsNonDecreasing(t, keys)
}

func TestPrincipalKindGrantsManageUsers(t *testing.T) {
	p := Principal{ID: "a1", Role: RoleViewer, Kind: KindAdmin}
	assert.True(t, p.Has(PermManageUsers))
	assert.True(t, p.CanAccessRoute(RouteUsers))
	assert.False(t, p.Has(PermUploadRFP))
	assert.ElementsMatch(t, []Permission{PermViewProposals, PermDownloadFiles, PermManageUsers}, p.Permissions())

	user := Principal{ID: "u1", Role: RoleViewer, Kind: KindUser}
	assert.False(t, user.Has(PermManageUsers))
	assert.False(t, user.CanAccessRoute(RouteUsers))

	admin := Principal{ID: "a2", Role: RoleAdmin, Kind: KindAdmin}
	assert.Len(t, admin.Permissions(), len(AllPermissions()))
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("admin")
	require.NoError(t, err)
	assert.Equal(t, KindAdmin, kind)

	_, err = ParseKind("robot")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	_, ok = PrincipalFromContext(ContextWithPrincipal(context.Background(), Principal{Role: RoleAdmin}))
	assert.False(t, ok, "principal without id is anonymous")

	want := Principal{ID: "p1", Role: RoleEditor, Kind: KindUser}
	got, ok := PrincipalFromContext(ContextWithPrincipal(context.Background(), want))
	require.True(t, ok)
	assert.Equal(t, want, got)
}
