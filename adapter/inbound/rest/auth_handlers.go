package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// AuthHandler issues tokens without a password check; it is only mounted in development mode
type AuthHandler struct {
	authService inbound.AuthService
	clock       outbound.Clock
	logger      outbound.Logger
}

type TokenRequest struct {
	Username string         `json:"username"`
	Role     model.UserRole `json:"role"`
}

type TokenResponse struct {
	User  model.Identity `json:"user"`
	Token string         `json:"token"`
}

func NewAuthHandler(authService inbound.AuthService, clock outbound.Clock, logger outbound.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		clock:       clock,
		logger:      logger,
	}
}

func (h *AuthHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/token", h.IssueToken).Methods("POST")
}

func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode token request", "error", err)
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Username required")
		return
	}

	switch req.Role {
	case "":
		req.Role = model.RoleUser
	case model.RoleAdmin, model.RoleApprover, model.RoleDispatcher, model.RoleUser:
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid role")
		return
	}

	identity := model.Identity{Username: req.Username, Role: req.Role}
	token, err := h.authService.IssueToken(identity, h.clock.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "Failed to issue token")
		return
	}

	h.logger.Info("Development token issued", "username", identity.Username, "role", identity.Role)
	writeJSON(w, http.StatusOK, TokenResponse{User: identity, Token: token})
}
