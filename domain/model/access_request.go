package model

import (
	"time"
)

// AccessRequestStatus represents the status of an access request
type AccessRequestStatus string

const (
	// AccessRequestPending indicates the request is awaiting review
	AccessRequestPending AccessRequestStatus = "Pending"

	// AccessRequestApproved indicates the request has been approved
	AccessRequestApproved AccessRequestStatus = "Approved"

	// AccessRequestRejected indicates the request has been rejected
	AccessRequestRejected AccessRequestStatus = "Rejected"
)

// Module identifies a functional area of the back office
type Module string

const (
	ModuleScheduler    Module = "Scheduler"
	ModuleTrips        Module = "Trips"
	ModuleTripDetails  Module = "TripDetails"
	ModuleTripExpenses Module = "TripExpenses"
)

// RequestType is the elevated capability requested within a module
type RequestType string

const (
	RequestTypeEdit           RequestType = "Edit"
	RequestTypeDelete         RequestType = "Delete"
	RequestTypeUnlockAllDates RequestType = "Unlock All Dates"
)

// AccessRequest represents a request for elevated permission on a module
type AccessRequest struct {
	RequestID    string              `json:"RequestID"`                       // Client-generated identifier
	Module       Module              `json:"Module" validate:"required"`      // Functional area
	RequestType  RequestType         `json:"RequestType" validate:"required"` // Capability requested
	Remarks      string              `json:"Remarks"`                         // Free text from the requester
	Username     string              `json:"Username" validate:"required"`    // Requester, denormalized
	UserRole     UserRole            `json:"UserRole"`                        // Requester role at submission
	Status       AccessRequestStatus `json:"Status"`                          // Current status
	ExpiresAt    *time.Time          `json:"ExpiresAt,omitempty"`             // Grant expiry (nil never expires)
	CreatedAt    time.Time           `json:"CreatedAt"`                       // Set by the store
	ReviewedAt   *time.Time          `json:"ReviewedAt,omitempty"`            // Review timestamp
	ReviewedBy   string              `json:"ReviewedBy,omitempty"`            // Approver username
	RejectReason string              `json:"RejectReason,omitempty"`          // Set on rejection
}

// GrantKey identifies what a grant unlocks
type GrantKey struct {
	Module      Module      `json:"module"`
	RequestType RequestType `json:"requestType"`
}

func (k GrantKey) String() string {
	return string(k.Module) + "/" + string(k.RequestType)
}

// IsPending returns true while the request awaits review
func (ar *AccessRequest) IsPending() bool {
	return ar.Status == AccessRequestPending
}

// IsApproved returns true if the request has been approved, regardless of expiry
func (ar *AccessRequest) IsApproved() bool {
	return ar.Status == AccessRequestApproved
}

// CanBeReviewed returns true if the request can be reviewed
func (ar *AccessRequest) CanBeReviewed() bool {
	return ar.Status == AccessRequestPending
}

// Key returns the grant key the request targets
func (ar *AccessRequest) Key() GrantKey {
	return GrantKey{Module: ar.Module, RequestType: ar.RequestType}
}

// ActiveAt reports whether the request is an approved grant that has not expired at now.
// Expiry is a read-time decision: nothing rewrites Status when ExpiresAt passes.
func (ar *AccessRequest) ActiveAt(now time.Time) bool {
	if !ar.IsApproved() {
		return false
	}
	return ar.ExpiresAt == nil || ar.ExpiresAt.After(now)
}

// GrantsFor reports whether the request is the active grant of key for username at now
func (ar *AccessRequest) GrantsFor(key GrantKey, username string, now time.Time) bool {
	return ar.Module == key.Module &&
		ar.RequestType == key.RequestType &&
		ar.Username == username &&
		ar.ActiveAt(now)
}

// Clone returns a deep copy so callers cannot mutate shared state
func (ar *AccessRequest) Clone() *AccessRequest {
	if ar == nil {
		return nil
	}
	cp := *ar
	if ar.ExpiresAt != nil {
		t := *ar.ExpiresAt
		cp.ExpiresAt = &t
	}
	if ar.ReviewedAt != nil {
		t := *ar.ReviewedAt
		cp.ReviewedAt = &t
	}
	return &cp
}
