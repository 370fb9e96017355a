package model

import "time"

// GateState is the per-key position in the request/approval lifecycle
type GateState string

const (
	GateNoRequest       GateState = "NoRequest"
	GatePending         GateState = "Pending"
	GateApprovedActive  GateState = "ApprovedActive"
	GateApprovedExpired GateState = "ApprovedExpired"
)

// AccessGrantView is the derived, in-memory decision for one module/request type
type AccessGrantView struct {
	Module           Module      `json:"module"`
	RequestType      RequestType `json:"requestType"`
	IsApproved       bool        `json:"isApproved"`
	ExpiresAt        *time.Time  `json:"expiresAt"`
	RemainingDisplay *string     `json:"remainingDisplay"`
	State            GateState   `json:"state"`
	PendingType      RequestType `json:"pendingType,omitempty"` // type of the user's pending request on the module
}

// Key returns the grant key of the view
func (v AccessGrantView) Key() GrantKey {
	return GrantKey{Module: v.Module, RequestType: v.RequestType}
}

// CachedGrant is an approval remembered across restarts
type CachedGrant struct {
	Request  *AccessRequest `json:"request"`
	CachedAt time.Time      `json:"cachedAt"`
}

// FreshAt reports whether the entry is younger than freshness and still grants access at now
func (c *CachedGrant) FreshAt(now time.Time, freshness time.Duration) bool {
	if c == nil || c.Request == nil {
		return false
	}
	if freshness > 0 && now.Sub(c.CachedAt) > freshness {
		return false
	}
	return c.Request.ActiveAt(now)
}
