package rest

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ajkula/GoAccessGate/config"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

type SettingsResponse struct {
	Config   *config.PublicConfig `json:"config"`
	FilePath string               `json:"filePath,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
	inbound.HealthStatus
}

// SettingsHandler serves the read-only configuration view and the health probe
type SettingsHandler struct {
	cfg        *config.Config
	configPath string
	access     inbound.AccessService
	logger     outbound.Logger
}

func NewSettingsHandler(cfg *config.Config, configPath string, access inbound.AccessService, logger outbound.Logger) *SettingsHandler {
	return &SettingsHandler{
		cfg:        cfg,
		configPath: configPath,
		access:     access,
		logger:     logger,
	}
}

func (h *SettingsHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/settings", h.getSettings).Methods("GET")
	router.HandleFunc("/api/health", h.healthCheck).Methods("GET")
}

func (h *SettingsHandler) getSettings(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Getting current settings")
	writeJSON(w, http.StatusOK, SettingsResponse{
		Config:   h.cfg.Public(),
		FilePath: h.configPath,
	})
}

// healthCheck answers 503 while the last approval check failed
func (h *SettingsHandler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if h.access == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	health := h.access.Health()
	if !health.Serving {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", HealthStatus: health})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", HealthStatus: health})
}
