package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// AccessHandler exposes the gates of the current user to the back-office UI
type AccessHandler struct {
	access inbound.AccessService
	logger outbound.Logger
}

type AccessViewResponse struct {
	model.AccessGrantView
	Permitted bool `json:"permitted"`
}

type AccessListResponse struct {
	User  *model.Identity      `json:"user,omitempty"`
	Views []AccessViewResponse `json:"views"`
}

type SubmitAccessRequest struct {
	Remarks string `json:"remarks"`
}

type SubmitAccessResponse struct {
	Request *model.AccessRequest `json:"request"`
	Message string               `json:"message,omitempty"`
}

func NewAccessHandler(access inbound.AccessService, logger outbound.Logger) *AccessHandler {
	return &AccessHandler{
		access: access,
		logger: logger,
	}
}

func (h *AccessHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/access", h.listViews).Methods("GET")
	router.HandleFunc("/api/access/refresh", h.refresh).Methods("POST")
	router.HandleFunc("/api/access/{module}/{requestType}", h.getView).Methods("GET")
	router.HandleFunc("/api/access/{module}/{requestType}/dialog", h.openDialog).Methods("POST")
	router.HandleFunc("/api/access/{module}/{requestType}/requests", h.requestAccess).Methods("POST")
}

func toViewResponse(view model.AccessGrantView) AccessViewResponse {
	return AccessViewResponse{
		AccessGrantView: view,
		Permitted:       view.IsApproved && view.State == model.GateApprovedActive,
	}
}

func keyFromRequest(r *http.Request) (model.Module, model.RequestType) {
	vars := mux.Vars(r)
	return model.Module(vars["module"]), model.RequestType(vars["requestType"])
}

func (h *AccessHandler) listViews(w http.ResponseWriter, r *http.Request) {
	views := h.access.Views()
	response := AccessListResponse{
		User:  h.access.CurrentUser(),
		Views: make([]AccessViewResponse, len(views)),
	}
	for i, view := range views {
		response.Views[i] = toViewResponse(view)
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *AccessHandler) getView(w http.ResponseWriter, r *http.Request) {
	module, requestType := keyFromRequest(r)

	view, err := h.access.View(module, requestType)
	if err != nil {
		h.writeAccessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(view))
}

func (h *AccessHandler) openDialog(w http.ResponseWriter, r *http.Request) {
	module, requestType := keyFromRequest(r)

	dialog, err := h.access.OpenRequestDialog(r.Context(), module, requestType)
	if err != nil {
		h.writeAccessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dialog)
}

func (h *AccessHandler) requestAccess(w http.ResponseWriter, r *http.Request) {
	module, requestType := keyFromRequest(r)

	var req SubmitAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	created, err := h.access.RequestAccess(r.Context(), module, requestType, req.Remarks)
	if err != nil {
		h.writeAccessError(w, err)
		return
	}

	h.logger.Info("Access request submitted", "requestID", created.RequestID, "module", module, "requestType", requestType)
	writeJSON(w, http.StatusCreated, SubmitAccessResponse{
		Request: created,
		Message: "Access request submitted successfully.",
	})
}

func (h *AccessHandler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.access.Refresh(r.Context()); err != nil {
		h.writeAccessError(w, err)
		return
	}
	h.listViews(w, r)
}

func (h *AccessHandler) writeAccessError(w http.ResponseWriter, err error) {
	var dup *model.DuplicatePendingError

	switch {
	case errors.Is(err, model.ErrUnknownModule), errors.Is(err, model.ErrUnknownRequestType):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, model.ErrAuth):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:        "duplicate_pending",
			Message:      dup.Error(),
			ExistingType: string(dup.ExistingType),
		})
	case errors.Is(err, model.ErrSubmitInFlight):
		writeError(w, http.StatusConflict, "in_flight", err.Error())
	case errors.Is(err, model.ErrLookup):
		writeError(w, http.StatusServiceUnavailable, "lookup_failed", err.Error())
	case errors.Is(err, model.ErrSubmission):
		writeError(w, http.StatusBadGateway, "submission_failed", err.Error())
	case errors.Is(err, model.ErrPoll):
		writeError(w, http.StatusBadGateway, "poll_failed", err.Error())
	case errors.Is(err, model.ErrPollerStopped):
		writeError(w, http.StatusServiceUnavailable, "stopped", err.Error())
	default:
		h.logger.Error("Unexpected access error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error")
	}
}
