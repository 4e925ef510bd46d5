package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"portnavigator/models"
)

func sampleRequests() []models.Request {
	return []models.Request{
		{RequestID: "r1", Type: models.RequestWarehouse, UserID: "u1"},
		{RequestID: "r2", Type: models.RequestTrolley, UserID: "u1"},
		{RequestID: "r3", Type: models.RequestWarehouse, UserID: "u2"},
		{RequestID: "r4", Type: models.RequestTrolley, UserID: "u2"},
	}
}

func TestVisibleRequests_CommunityOwnershipOnly(t *testing.T) {
	got := VisibleRequests(sampleRequests(), models.RoleCommunity, "u1", models.ClassOther)
	for _, r := range got {
		assert.Equal(t, "u1", r.UserID)
	}
	assert.Len(t, got, 2)
}

func TestVisibleRequests_AgencyDropsWarehouse(t *testing.T) {
	reqs := sampleRequests()
	for _, role := range []models.UserRole{models.RoleCommunity, models.RoleStaff, models.RoleAdmin, models.RoleChairman} {
		got := VisibleRequests(reqs, role, "u1", models.ClassMaritimeAgency)
		for _, r := range got {
			assert.NotEqual(t, models.RequestWarehouse, r.Type, "role %s leaked a warehouse request", role)
		}
	}
}

func TestVisibleRequests_ShippingDropsTrolley(t *testing.T) {
	got := VisibleRequests(sampleRequests(), models.RoleStaff, "", models.ClassShippingCompany)
	for _, r := range got {
		assert.NotEqual(t, models.RequestTrolley, r.Type)
	}
	assert.Len(t, got, 2)
}

func TestVisibleRequests_FiltersCompose(t *testing.T) {
	reqs := []models.Request{
		{RequestID: "r1", Type: models.RequestWarehouse, UserID: "u1"},
		{RequestID: "r2", Type: models.RequestTrolley, UserID: "u1"},
	}

	got := VisibleRequests(reqs, models.RoleCommunity, "u1", models.ClassMaritimeAgency)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "r2", got[0].RequestID)
	}

	got = VisibleRequests(reqs, models.RoleCommunity, "u1", models.ClassShippingCompany)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "r1", got[0].RequestID)
	}
}

func TestVisibleRequests_StaffSeesEverything(t *testing.T) {
	reqs := sampleRequests()
	for _, role := range []models.UserRole{models.RoleStaff, models.RoleAdmin} {
		got := VisibleRequests(reqs, role, "ignored", models.ClassOther)
		assert.Len(t, got, len(reqs))
	}
}

func TestVisibleRequests_FailClosed(t *testing.T) {
	// COMMUNITY with no user id sees nothing.
	assert.Empty(t, VisibleRequests(sampleRequests(), models.RoleCommunity, "", models.ClassOther))
	// Unknown role sees nothing.
	assert.Empty(t, VisibleRequests(sampleRequests(), models.UserRole("INTRUDER"), "u1", models.ClassOther))
}

func TestVisibleComplaints_OwnershipByEitherField(t *testing.T) {
	complaints := []models.Complaint{
		{ComplaintID: "c1", UserID: "u1"},
		{ComplaintID: "c2", CreatedBy: "u1"},
		{ComplaintID: "c3", UserID: "u2"},
	}

	got := VisibleComplaints(complaints, models.RoleCommunity, "u1", models.ClassOther)
	assert.Len(t, got, 2)

	got = VisibleComplaints(complaints, models.RoleChairman, "", models.ClassOther)
	assert.Len(t, got, 3)

	assert.Empty(t, VisibleComplaints(complaints, models.RoleCommunity, "", models.ClassOther))
}

func TestPermissionsFor_Chairman(t *testing.T) {
	p := PermissionsFor(models.RoleChairman, models.ClassOther)
	assert.True(t, p.IsReadOnly)
	assert.True(t, p.CanViewRequests)
	assert.True(t, p.CanViewAdmin)
	assert.False(t, p.CanEditStatus)
	assert.False(t, p.CanApproveRequests)
	assert.False(t, p.CanCreateRequests)
}

func TestPermissionsFor_StaffAndAdmin(t *testing.T) {
	staff := PermissionsFor(models.RoleStaff, models.ClassOther)
	assert.True(t, staff.CanEditStatus)
	assert.True(t, staff.CanApproveRequests)
	assert.False(t, staff.CanCreateRequests)
	assert.False(t, staff.CanViewAdmin)

	admin := PermissionsFor(models.RoleAdmin, models.ClassOther)
	assert.True(t, admin.CanViewAdmin)
	assert.False(t, admin.CanCreateRequests)
	assert.False(t, admin.IsReadOnly)
}

func TestPermissionsFor_CommunityProfiles(t *testing.T) {
	agency := PermissionsFor(models.RoleCommunity, models.ClassMaritimeAgency)
	shipping := PermissionsFor(models.RoleCommunity, models.ClassShippingCompany)
	assert.Equal(t, agency, shipping, "agency and shipping share a capability profile")
	assert.True(t, agency.CanCreateRequests)
	assert.False(t, agency.CanEditStatus)
	assert.False(t, agency.CanViewAdmin)
	assert.False(t, agency.CanViewAnalytics)

	// Unrecognized classification falls back to the conservative baseline.
	other := PermissionsFor(models.RoleCommunity, models.ClassOther)
	assert.True(t, other.CanViewMap)
	assert.True(t, other.CanCreateComplaints)
	assert.False(t, other.CanViewRequests)
	assert.False(t, other.CanCreateRequests)
}

func TestPermissionsFor_UnknownRoleIsZero(t *testing.T) {
	assert.Equal(t, models.Permissions{}, PermissionsFor(models.UserRole("GUEST"), models.ClassOther))
}

func TestCanAccessRoute(t *testing.T) {
	assert.True(t, CanAccessRoute("/admin", models.RoleAdmin, models.ClassOther))
	assert.True(t, CanAccessRoute("/admin", models.RoleChairman, models.ClassOther))
	assert.False(t, CanAccessRoute("/admin", models.RoleStaff, models.ClassOther))
	assert.False(t, CanAccessRoute("/admin", models.RoleCommunity, models.ClassMaritimeAgency))

	assert.True(t, CanAccessRoute("/requests", models.RoleCommunity, models.ClassShippingCompany))
	assert.False(t, CanAccessRoute("/requests", models.RoleCommunity, models.ClassOther))

	assert.False(t, CanAccessRoute("/no-such-page", models.RoleAdmin, models.ClassOther))
}

func TestParseClassification(t *testing.T) {
	assert.Equal(t, models.ClassMaritimeAgency, models.ParseClassification("agency"))
	assert.Equal(t, models.ClassShippingCompany, models.ParseClassification("shipping"))
	assert.Equal(t, models.ClassOther, models.ParseClassification(""))
	assert.Equal(t, models.ClassOther, models.ParseClassification("fishing"))
}
