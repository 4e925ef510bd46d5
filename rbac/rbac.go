// Package rbac resolves record visibility and user capabilities from role
// and classification. All functions are pure and total: they never error,
// never trust record-level flags, and return the most restrictive result
// for out-of-domain input.
package rbac

import (
	"portnavigator/models"
)

// VisibleRequests returns the subset of requests the given user may see.
// Two independent filters compose with AND semantics: ownership narrows
// first (COMMUNITY sees only its own records), then classification narrows
// by request type (maritime agencies never see warehouse requests, shipping
// companies never see berthing requests).
func VisibleRequests(requests []models.Request, role models.UserRole, userID string, class models.Classification) []models.Request {
	visible := filterRequestsByOwner(requests, role, userID)

	switch class {
	case models.ClassMaritimeAgency:
		visible = dropRequestType(visible, models.RequestWarehouse)
	case models.ClassShippingCompany:
		visible = dropRequestType(visible, models.RequestTrolley)
	}

	return visible
}

func filterRequestsByOwner(requests []models.Request, role models.UserRole, userID string) []models.Request {
	switch role {
	case models.RoleAdmin, models.RoleStaff, models.RoleChairman:
		out := make([]models.Request, len(requests))
		copy(out, requests)
		return out
	case models.RoleCommunity:
		out := []models.Request{}
		if userID == "" {
			// Fail closed: no identity, no records.
			return out
		}
		for _, r := range requests {
			if r.UserID == userID {
				out = append(out, r)
			}
		}
		return out
	default:
		// Unknown role: deny by default.
		return []models.Request{}
	}
}

func dropRequestType(requests []models.Request, t models.RequestType) []models.Request {
	out := []models.Request{}
	for _, r := range requests {
		if r.Type != t {
			out = append(out, r)
		}
	}
	return out
}

// VisibleComplaints applies the ownership rule only; complaints have no
// type dimension. COMMUNITY ownership matches either UserID or CreatedBy.
func VisibleComplaints(complaints []models.Complaint, role models.UserRole, userID string, _ models.Classification) []models.Complaint {
	switch role {
	case models.RoleAdmin, models.RoleStaff, models.RoleChairman:
		out := make([]models.Complaint, len(complaints))
		copy(out, complaints)
		return out
	case models.RoleCommunity:
		out := []models.Complaint{}
		if userID == "" {
			return out
		}
		for _, c := range complaints {
			if c.UserID == userID || c.CreatedBy == userID {
				out = append(out, c)
			}
		}
		return out
	default:
		return []models.Complaint{}
	}
}

// PermissionsFor computes the fixed capability record for a role and
// classification. Staff and admins act on behalf of others through staff
// workflows, so they do not self-create requests or complaints.
func PermissionsFor(role models.UserRole, class models.Classification) models.Permissions {
	switch role {
	case models.RoleAdmin:
		return models.Permissions{
			CanViewMap:         true,
			CanViewRequests:    true,
			CanViewComplaints:  true,
			CanEditStatus:      true,
			CanApproveRequests: true,
			CanViewAdmin:       true,
			CanViewAnalytics:   true,
		}
	case models.RoleStaff:
		return models.Permissions{
			CanViewMap:         true,
			CanViewRequests:    true,
			CanViewComplaints:  true,
			CanEditStatus:      true,
			CanApproveRequests: true,
			CanViewAnalytics:   true,
		}
	case models.RoleChairman:
		// Read-only superuser: full visibility, zero mutation rights.
		return models.Permissions{
			CanViewMap:        true,
			CanViewRequests:   true,
			CanViewComplaints: true,
			CanViewAdmin:      true,
			CanViewAnalytics:  true,
			IsReadOnly:        true,
		}
	case models.RoleCommunity:
		switch class {
		case models.ClassMaritimeAgency, models.ClassShippingCompany:
			return models.Permissions{
				CanViewMap:          true,
				CanViewRequests:     true,
				CanCreateRequests:   true,
				CanViewComplaints:   true,
				CanCreateComplaints: true,
			}
		default:
			// Conservative baseline for unrecognized classifications.
			return models.Permissions{
				CanViewMap:          true,
				CanViewComplaints:   true,
				CanCreateComplaints: true,
			}
		}
	default:
		return models.Permissions{}
	}
}

// routeCapabilities maps portal routes onto the capability that gates them.
var routeCapabilities = map[string]func(models.Permissions) bool{
	"/":           func(p models.Permissions) bool { return p.CanViewMap },
	"/map":        func(p models.Permissions) bool { return p.CanViewMap },
	"/requests":   func(p models.Permissions) bool { return p.CanViewRequests },
	"/complaints": func(p models.Permissions) bool { return p.CanViewComplaints },
	"/admin":      func(p models.Permissions) bool { return p.CanViewAdmin },
	"/analytics":  func(p models.Permissions) bool { return p.CanViewAnalytics },
}

// CanAccessRoute reports whether the role/classification pair may open a
// portal route. Unknown routes are denied.
func CanAccessRoute(route string, role models.UserRole, class models.Classification) bool {
	gate, ok := routeCapabilities[route]
	if !ok {
		return false
	}
	return gate(PermissionsFor(role, class))
}
