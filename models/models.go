// models.go
// Defines the core data structures shared by the Port Navigator API
// (RBAC resolver, hybrid storage service, HTTP handlers).

package models

import (
	"time"
)

// UserRole defines the access level of a user.
type UserRole string

const (
	RoleStaff     UserRole = "STAFF"
	RoleCommunity UserRole = "COMMUNITY"
	RoleAdmin     UserRole = "ADMIN"
	RoleChairman  UserRole = "CHAIRMAN"
)

// Classification distinguishes COMMUNITY sub-roles. The legacy portal kept
// this as a free-form string with two special values; here it is a closed
// enumeration with an explicit catch-all so the fallback path is exhaustive.
type Classification string

const (
	ClassMaritimeAgency  Classification = "MARITIME_AGENCY"
	ClassShippingCompany Classification = "SHIPPING_COMPANY"
	ClassOther           Classification = "OTHER"
)

// ParseClassification maps the legacy free-form values ("agency",
// "shipping") onto the enumeration. Anything unrecognized is OTHER.
func ParseClassification(s string) Classification {
	switch s {
	case "agency", string(ClassMaritimeAgency):
		return ClassMaritimeAgency
	case "shipping", string(ClassShippingCompany):
		return ClassShippingCompany
	default:
		return ClassOther
	}
}

// User represents a portal user. Persisted in Tier A under the
// port-navigator-user key; immutable for the session once logged in.
type User struct {
	UserID         string         `json:"user_id"`
	Username       string         `json:"username"`
	DisplayName    string         `json:"display_name"`
	Email          string         `json:"email,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Role           UserRole       `json:"role"`
	Classification Classification `json:"classification,omitempty"`
	ReadOnly       bool           `json:"read_only,omitempty"`
	Services       []string       `json:"services,omitempty"`
	LastLogin      time.Time      `json:"last_login"`
}

// RequestType defines the two service request variants.
type RequestType string

const (
	RequestWarehouse RequestType = "warehouse"
	RequestTrolley   RequestType = "trolley" // vessel berthing
)

// RequestStatus defines the lifecycle states of a service request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusInProgress RequestStatus = "in_progress"
	StatusApproved   RequestStatus = "approved"
	StatusRejected   RequestStatus = "rejected"
)

// requestTransitions is the allowed status transition table. The legacy
// portal allowed free transitions; the mutation boundary here rejects
// anything not listed (approved and rejected are terminal).
var requestTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:    {StatusInProgress, StatusApproved, StatusRejected},
	StatusInProgress: {StatusApproved, StatusRejected},
}

// CanTransition reports whether a request status change is legal.
func (s RequestStatus) CanTransition(to RequestStatus) bool {
	for _, next := range requestTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Request is a service request submitted by a community user (warehouse
// rental or vessel berthing). Type is immutable after creation.
type Request struct {
	RequestID string        `json:"request_id"`
	UserID    string        `json:"user_id"`
	Type      RequestType   `json:"type"`
	Title     string        `json:"title"`
	Status    RequestStatus `json:"status"`
	Date      time.Time     `json:"date"`
	Details   string        `json:"details,omitempty"`

	// Berthing-specific fields.
	VesselName    string `json:"vessel_name,omitempty"`
	ShippingAgent string `json:"shipping_agent,omitempty"`
	CargoType     string `json:"cargo_type,omitempty"`
	Quantity      string `json:"quantity,omitempty"`
	DateFrom      string `json:"date_from,omitempty"`
	DateTo        string `json:"date_to,omitempty"`
	Owner         string `json:"owner,omitempty"`
}

// ComplaintStatus defines the lifecycle states of a maintenance complaint.
type ComplaintStatus string

const (
	ComplaintPending    ComplaintStatus = "pending"
	ComplaintInProgress ComplaintStatus = "in_progress"
	ComplaintResolved   ComplaintStatus = "resolved"
)

var complaintTransitions = map[ComplaintStatus][]ComplaintStatus{
	ComplaintPending:    {ComplaintInProgress, ComplaintResolved},
	ComplaintInProgress: {ComplaintResolved},
}

// CanTransition reports whether a complaint status change is legal.
func (s ComplaintStatus) CanTransition(to ComplaintStatus) bool {
	for _, next := range complaintTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority drives sort order and emphasis in the dashboards.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Complaint is a maintenance report filed against port infrastructure.
type Complaint struct {
	ComplaintID string          `json:"complaint_id"`
	UserID      string          `json:"user_id"`
	CreatedBy   string          `json:"created_by,omitempty"`
	Title       string          `json:"title"`
	FaultType   string          `json:"fault_type"`
	Priority    Priority        `json:"priority"`
	Status      ComplaintStatus `json:"status"`
	Location    string          `json:"location,omitempty"`
	FacilityID  string          `json:"facility_id,omitempty"`
	MapPath     string          `json:"map_path,omitempty"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description,omitempty"`
}

// Warehouse is a denormalized warehouse listing kept in Tier A for the
// rental request form.
type Warehouse struct {
	WarehouseID string  `json:"warehouse_id"`
	Name        string  `json:"name"`
	AreaSqm     float64 `json:"area_sqm,omitempty"`
	Available   bool    `json:"available"`
}

// Settings holds user-adjustable portal settings, persisted in Tier A.
type Settings struct {
	Language      string `json:"language,omitempty"`
	Theme         string `json:"theme,omitempty"`
	Notifications bool   `json:"notifications"`
}

// Permissions is the derived capability record for a (role, classification)
// pair. Recomputed on every authorization check, never persisted.
type Permissions struct {
	CanViewMap          bool `json:"can_view_map"`
	CanViewRequests     bool `json:"can_view_requests"`
	CanCreateRequests   bool `json:"can_create_requests"`
	CanViewComplaints   bool `json:"can_view_complaints"`
	CanCreateComplaints bool `json:"can_create_complaints"`
	CanEditStatus       bool `json:"can_edit_status"`
	CanApproveRequests  bool `json:"can_approve_requests"`
	CanViewAdmin        bool `json:"can_view_admin"`
	CanViewAnalytics    bool `json:"can_view_analytics"`
	IsReadOnly          bool `json:"is_read_only"`
}

// TierStats describes one storage tier inside StorageStats.
type TierStats struct {
	UsedBytes   int64   `json:"used_bytes"`
	LimitBytes  int64   `json:"limit_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// StorageStats is a runtime-computed snapshot of both tiers. Sizes are
// JSON-serialized lengths, a documented approximation of on-disk size.
type StorageStats struct {
	TierA            TierStats      `json:"tier_a"`
	TierB            TierStats      `json:"tier_b"`
	Counts           map[string]int `json:"counts"`
	LastSync         time.Time      `json:"last_sync"`
	CompressionRatio float64        `json:"compression_ratio"`
}

// ExportVersion is the current export document schema version.
const ExportVersion = 1

// ExportPayload is the data body of an export document.
type ExportPayload struct {
	CurrentUser *User       `json:"currentUser"`
	Requests    []Request   `json:"requests"`
	Complaints  []Complaint `json:"complaints"`
	Warehouses  []Warehouse `json:"warehouses"`
	Settings    *Settings   `json:"settings"`
}

// ExportDocument is the versioned full-fidelity export envelope.
type ExportDocument struct {
	Version   int           `json:"version"`
	Timestamp string        `json:"timestamp"`
	Data      ExportPayload `json:"data"`
}

// AuditLog records a mutating action, ring-capped in Tier A under the
// port-navigator-import-logs key.
type AuditLog struct {
	LogID     string `json:"log_id"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
	Details   string `json:"details"`
}

// AuthRequest is the login payload.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse returns the tokens and user details.
type AuthResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}
