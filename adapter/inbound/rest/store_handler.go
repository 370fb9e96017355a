package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// StoreHandler serves the access request store API consumed by the gateway and accessctl
type StoreHandler struct {
	reviewService inbound.ReviewService
	auth          *AuthMiddleware
	logger        outbound.Logger
}

type ReviewAccessRequestRequest struct {
	Approve      bool       `json:"approve"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	ExpiresIn    string     `json:"expiresIn,omitempty"`
	RejectReason string     `json:"rejectReason,omitempty"`
}

func NewStoreHandler(reviewService inbound.ReviewService, auth *AuthMiddleware, logger outbound.Logger) *StoreHandler {
	return &StoreHandler{
		reviewService: reviewService,
		auth:          auth,
		logger:        logger,
	}
}

func (h *StoreHandler) SetupRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/access-requests").Subrouter()
	api.Use(h.auth.Middleware)

	api.HandleFunc("", h.listAccessRequests).Methods("GET")
	api.HandleFunc("", h.createAccessRequest).Methods("POST")
	api.HandleFunc("/{id}", h.getAccessRequest).Methods("GET")
	api.Handle("/{id}/review", h.auth.RequireReviewer(http.HandlerFunc(h.reviewAccessRequest))).Methods("POST")
	api.Handle("/{id}", h.auth.RequireReviewer(http.HandlerFunc(h.deleteAccessRequest))).Methods("DELETE")
}

func (h *StoreHandler) listAccessRequests(w http.ResponseWriter, r *http.Request) {
	var statusFilter *model.AccessRequestStatus
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status := model.AccessRequestStatus(statusParam)
		if status != model.AccessRequestPending &&
			status != model.AccessRequestApproved &&
			status != model.AccessRequestRejected {
			writeError(w, http.StatusBadRequest, "bad_request", "Invalid status filter")
			return
		}
		statusFilter = &status
	}

	requests, err := h.reviewService.ListAccessRequests(r.Context(), statusFilter)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if requests == nil {
		requests = []*model.AccessRequest{}
	}

	writeJSON(w, http.StatusOK, requests)
}

func (h *StoreHandler) createAccessRequest(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	var req model.AccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode access request", "error", err)
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	// the requester is whoever holds the token
	if req.Username == "" {
		req.Username = identity.Username
	}
	if req.Username != identity.Username {
		writeError(w, http.StatusForbidden, "forbidden", "Username does not match the token")
		return
	}
	if req.UserRole == "" {
		req.UserRole = identity.Role
	}

	created, err := h.reviewService.CreateAccessRequest(r.Context(), &req)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *StoreHandler) getAccessRequest(w http.ResponseWriter, r *http.Request) {
	request, err := h.reviewService.GetAccessRequest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *StoreHandler) reviewAccessRequest(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	var req ReviewAccessRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	options := &inbound.ReviewAccessRequestOptions{
		Approve:      req.Approve,
		ExpiresAt:    req.ExpiresAt,
		RejectReason: req.RejectReason,
		ReviewedBy:   identity.Username,
	}
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "Invalid expiresIn duration")
			return
		}
		options.ExpiresIn = &d
	}

	reviewed, err := h.reviewService.ReviewAccessRequest(r.Context(), mux.Vars(r)["id"], options)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reviewed)
}

func (h *StoreHandler) deleteAccessRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.reviewService.DeleteAccessRequest(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StoreHandler) writeStoreError(w http.ResponseWriter, err error) {
	var dup *model.DuplicatePendingError

	switch {
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:        "duplicate_pending",
			Message:      dup.Error(),
			ExistingType: string(dup.ExistingType),
		})
	case errors.Is(err, model.ErrAccessRequestNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Access request not found")
	case errors.Is(err, model.ErrAccessRequestAlreadyReviewed):
		writeError(w, http.StatusConflict, "already_reviewed", "Access request has already been reviewed")
	case errors.Is(err, model.ErrInvalidAccessRequest):
		writeError(w, http.StatusBadRequest, "invalid", err.Error())
	default:
		h.logger.Error("Access request store error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "Failed to process access request")
	}
}
