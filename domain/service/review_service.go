package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

type reviewService struct {
	repo     outbound.AccessRequestRepository
	clock    outbound.Clock
	logger   outbound.Logger
	validate *validator.Validate

	// serializes the pending check with the write so the store itself never holds two
	// pending requests for the same user and module
	mu sync.Mutex
}

func NewReviewService(
	repo outbound.AccessRequestRepository,
	clock outbound.Clock,
	logger outbound.Logger,
) inbound.ReviewService {
	return &reviewService{
		repo:     repo,
		clock:    clock,
		logger:   logger,
		validate: validator.New(),
	}
}

func (s *reviewService) CreateAccessRequest(ctx context.Context, request *model.AccessRequest) (*model.AccessRequest, error) {
	if request == nil {
		return nil, model.ErrInvalidAccessRequest
	}

	s.logger.Info("Creating access request", "module", request.Module, "requestType", request.RequestType, "username", request.Username)

	if err := s.validate.Struct(request); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: %s is required", model.ErrInvalidAccessRequest, verrs[0].Field())
		}
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidAccessRequest, err)
	}

	stored := request.Clone()
	if stored.RequestID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		stored.RequestID = id.String()
	}
	stored.Status = model.AccessRequestPending
	stored.ExpiresAt = nil
	stored.ReviewedAt = nil
	stored.ReviewedBy = ""
	stored.RejectReason = ""
	stored.CreatedAt = s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	status := model.AccessRequestPending
	pending, err := s.repo.List(ctx, &status)
	if err != nil {
		return nil, err
	}
	for _, existing := range pending {
		if existing.Username == stored.Username && existing.Module == stored.Module {
			return nil, &model.DuplicatePendingError{
				Module:       existing.Module,
				ExistingType: existing.RequestType,
				RequestID:    existing.RequestID,
			}
		}
	}

	if _, err := s.repo.GetByID(ctx, stored.RequestID); err == nil {
		return nil, fmt.Errorf("%w: duplicate request ID", model.ErrInvalidAccessRequest)
	} else if !errors.Is(err, model.ErrAccessRequestNotFound) {
		return nil, err
	}

	if err := s.repo.Store(ctx, stored); err != nil {
		s.logger.Error("Failed to store access request", "error", err)
		return nil, err
	}

	s.logger.Info("Access request created successfully", "requestID", stored.RequestID, "username", stored.Username)
	return stored.Clone(), nil
}

func (s *reviewService) GetAccessRequest(ctx context.Context, requestID string) (*model.AccessRequest, error) {
	return s.repo.GetByID(ctx, requestID)
}

func (s *reviewService) ListAccessRequests(ctx context.Context, status *model.AccessRequestStatus) ([]*model.AccessRequest, error) {
	return s.repo.List(ctx, status)
}

func (s *reviewService) ReviewAccessRequest(ctx context.Context, requestID string, options *inbound.ReviewAccessRequestOptions) (*model.AccessRequest, error) {
	if options == nil {
		return nil, model.ErrInvalidAccessRequest
	}
	if err := s.validate.Struct(options); err != nil {
		return nil, fmt.Errorf("%w: reviewer is required", model.ErrInvalidAccessRequest)
	}

	s.logger.Info("Reviewing access request", "requestID", requestID, "approve", options.Approve, "reviewedBy", options.ReviewedBy)

	s.mu.Lock()
	defer s.mu.Unlock()

	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if !request.CanBeReviewed() {
		return nil, model.ErrAccessRequestAlreadyReviewed
	}

	now := s.clock.Now()
	request.ReviewedAt = &now
	request.ReviewedBy = options.ReviewedBy

	if options.Approve {
		request.Status = model.AccessRequestApproved
		switch {
		case options.ExpiresAt != nil:
			expiresAt := *options.ExpiresAt
			request.ExpiresAt = &expiresAt
		case options.ExpiresIn != nil && *options.ExpiresIn > 0:
			expiresAt := now.Add(*options.ExpiresIn)
			request.ExpiresAt = &expiresAt
		}
		s.logger.Info("Access request approved", "requestID", requestID, "username", request.Username, "expiresAt", request.ExpiresAt)
	} else {
		request.Status = model.AccessRequestRejected
		request.RejectReason = options.RejectReason
		s.logger.Info("Access request rejected", "requestID", requestID, "reason", options.RejectReason)
	}

	if err := s.repo.Store(ctx, request); err != nil {
		return nil, err
	}

	return request.Clone(), nil
}

func (s *reviewService) DeleteAccessRequest(ctx context.Context, requestID string) error {
	s.logger.Info("Deleting access request", "requestID", requestID)
	return s.repo.Delete(ctx, requestID)
}
