package rest

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx answer; the store client reads Message
type ErrorResponse struct {
	Error        string `json:"error"`
	Message      string `json:"message,omitempty"`
	ExistingType string `json:"existingType,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
