package outbound

import (
	"context"

	"github.com/ajkula/GoAccessGate/domain/model"
)

// AccessRequestStore is the remote request store the gateway talks to.
// Filtering by module, user and status is done by the caller.
type AccessRequestStore interface {
	// returns every request visible to the bearer of token
	ListRequests(ctx context.Context, token string) ([]*model.AccessRequest, error)

	// creates a request; fails when Module, RequestType or Username is missing
	CreateRequest(ctx context.Context, token string, request *model.AccessRequest) (*model.AccessRequest, error)
}

// defines storage operations for the reference access request store
type AccessRequestRepository interface {
	// saves or replaces a single access request
	Store(ctx context.Context, request *model.AccessRequest) error

	// retrieves an access request by ID
	GetByID(ctx context.Context, requestID string) (*model.AccessRequest, error)

	// retrieves all access requests with optional status filter
	List(ctx context.Context, status *model.AccessRequestStatus) ([]*model.AccessRequest, error)

	// removes an access request by ID
	Delete(ctx context.Context, requestID string) error
}
