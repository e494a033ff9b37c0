// Package handler contains the backend's HTTP handlers.
//
// Handlers parse the request, call one service method and write the result. Every
// JSON body carries a "success" flag; failures add a human-readable "error" and a
// machine-readable "code":
//
//	{"success": true, "user": {...}}
//	{"success": false, "error": "Invalid email or password", "code": "rejected"}
//
// The client SDK depends on this envelope, so every handler goes through writeOK
// and writeError.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/auth"
)

// maxBodyBytes caps request bodies. The largest legitimate body is a saved activity.
const maxBodyBytes = 1 << 20

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"` // shown to the user
	Code    string `json:"code"`  // e.g. "validation_error"
}

// writeJSON sends data with the given status. Headers must be set before the body is
// written, so the order here matters.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all that is left is to log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeOK sends {"success": true} merged with fields.
func writeOK(w http.ResponseWriter, status int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, status, body)
}

// writeError maps err onto a status code and the failure envelope. Errors outside
// the apperror taxonomy become a generic 500 so SQL or file paths never leak.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "An unexpected error occurred. Please try again later.",
			Code:  "internal_error",
		})
		return
	}

	status, code := statusOf(err)
	writeJSON(w, status, ErrorResponse{Error: appErr.Message, Code: code})
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not_authenticated"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrRejected):
		// The server's own refusals come from an upstream service it could not use.
		return http.StatusBadGateway, "rejected"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a JSON body into dst. A malformed body is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("", "Invalid JSON body")
	}
	return nil
}

// userID returns the id RequireAuth put in the context. Routes behind RequireAuth
// always have one; the 401 branch is for misrouted handlers.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.NotAuthenticated(auth.NotLoggedIn))
	}
	return id, ok
}
