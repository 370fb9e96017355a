package storeclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// Embedded serves the gateway from an in-process review service. Tokens are checked
// the same way the REST store checks them and failures carry the same status codes.
type Embedded struct {
	reviews inbound.ReviewService
	auth    inbound.AuthService
	logger  outbound.Logger
}

func NewEmbedded(reviews inbound.ReviewService, auth inbound.AuthService, logger outbound.Logger) *Embedded {
	return &Embedded{
		reviews: reviews,
		auth:    auth,
		logger:  logger,
	}
}

var _ outbound.AccessRequestStore = (*Embedded)(nil)

func (e *Embedded) ListRequests(ctx context.Context, token string) ([]*model.AccessRequest, error) {
	if _, err := e.identify(token); err != nil {
		return nil, err
	}

	requests, err := e.reviews.ListAccessRequests(ctx, nil)
	if err != nil {
		return nil, storeError(err)
	}
	return requests, nil
}

func (e *Embedded) CreateRequest(ctx context.Context, token string, request *model.AccessRequest) (*model.AccessRequest, error) {
	identity, err := e.identify(token)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, &model.StoreError{StatusCode: http.StatusBadRequest, Message: "Invalid request body"}
	}

	req := request.Clone()
	if req.Username == "" {
		req.Username = identity.Username
	}
	if req.Username != identity.Username {
		return nil, &model.StoreError{StatusCode: http.StatusForbidden, Message: "Username does not match the token"}
	}
	if req.UserRole == "" {
		req.UserRole = identity.Role
	}

	created, err := e.reviews.CreateAccessRequest(ctx, req)
	if err != nil {
		e.logger.Debug("Embedded store refused request", "requestID", req.RequestID, "error", err)
		return nil, storeError(err)
	}
	return created, nil
}

func (e *Embedded) identify(token string) (*model.Identity, error) {
	if token == "" {
		return nil, &model.StoreError{StatusCode: http.StatusUnauthorized, Message: "missing token"}
	}
	identity, err := e.auth.ValidateToken(token)
	if err != nil {
		return nil, &model.StoreError{StatusCode: http.StatusUnauthorized, Message: err.Error()}
	}
	return identity, nil
}

// storeError gives review service errors the shape a remote store answer would have
func storeError(err error) error {
	var dup *model.DuplicatePendingError

	switch {
	case errors.As(err, &dup):
		return &model.StoreError{StatusCode: http.StatusConflict, Message: dup.Error()}
	case errors.Is(err, model.ErrInvalidAccessRequest):
		return &model.StoreError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, model.ErrAccessRequestNotFound):
		return &model.StoreError{StatusCode: http.StatusNotFound, Message: "Access request not found"}
	default:
		return err
	}
}
