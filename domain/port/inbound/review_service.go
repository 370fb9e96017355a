package inbound

import (
	"context"
	"time"

	"github.com/ajkula/GoAccessGate/domain/model"
)

// ReviewAccessRequestOptions contains options for reviewing an access request
type ReviewAccessRequestOptions struct {
	Approve      bool           `json:"approve"`
	ExpiresAt    *time.Time     `json:"expiresAt,omitempty"` // absolute expiry, wins over ExpiresIn
	ExpiresIn    *time.Duration `json:"expiresIn,omitempty"` // relative expiry from review time
	RejectReason string         `json:"rejectReason,omitempty"`
	ReviewedBy   string         `json:"reviewedBy" validate:"required"`
}

// ReviewService is the server side of the access request store
type ReviewService interface {
	// CreateAccessRequest validates and stores a new pending request
	CreateAccessRequest(ctx context.Context, request *model.AccessRequest) (*model.AccessRequest, error)

	// GetAccessRequest retrieves an access request by ID
	GetAccessRequest(ctx context.Context, requestID string) (*model.AccessRequest, error)

	// ListAccessRequests lists all access requests with optional status filter
	ListAccessRequests(ctx context.Context, status *model.AccessRequestStatus) ([]*model.AccessRequest, error)

	// ReviewAccessRequest approves (optionally with an expiry) or rejects a pending request
	ReviewAccessRequest(ctx context.Context, requestID string, options *ReviewAccessRequestOptions) (*model.AccessRequest, error)

	// DeleteAccessRequest removes an access request
	DeleteAccessRequest(ctx context.Context, requestID string) error
}
