package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "zapgate/pkg/domain-errors"
)

// ErrorResponse is the uniform JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteError translates a domain error into the HTTP error envelope.
// Uncoded errors map to 500 without leaking their message.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	status := http.StatusInternalServerError
	body := ErrorResponse{Error: string(dErrors.CodeInternal)}
	if errors.As(err, &de) {
		status = dErrors.ToHTTPStatus(de.Code)
		body = ErrorResponse{Error: string(de.Code), Message: de.Message}
	}
	WriteJSON(w, status, body)
}

// WriteJSON writes the payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
