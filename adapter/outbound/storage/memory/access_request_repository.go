package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

type AccessRequestRepository struct {
	requests map[string]*model.AccessRequest
	mutex    sync.RWMutex
}

func NewAccessRequestRepository() outbound.AccessRequestRepository {
	return &AccessRequestRepository{
		requests: make(map[string]*model.AccessRequest),
	}
}

func (r *AccessRequestRepository) Store(ctx context.Context, request *model.AccessRequest) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.requests[request.RequestID] = request.Clone()
	return nil
}

func (r *AccessRequestRepository) GetByID(ctx context.Context, requestID string) (*model.AccessRequest, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	request, exists := r.requests[requestID]
	if !exists {
		return nil, model.ErrAccessRequestNotFound
	}
	return request.Clone(), nil
}

func (r *AccessRequestRepository) List(ctx context.Context, status *model.AccessRequestStatus) ([]*model.AccessRequest, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*model.AccessRequest, 0, len(r.requests))
	for _, request := range r.requests {
		if status != nil && request.Status != *status {
			continue
		}
		result = append(result, request.Clone())
	}

	// Oldest first, ties broken by ID
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].RequestID < result[j].RequestID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *AccessRequestRepository) Delete(ctx context.Context, requestID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.requests[requestID]; !exists {
		return model.ErrAccessRequestNotFound
	}
	delete(r.requests, requestID)
	return nil
}
