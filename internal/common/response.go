package common

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorBody represents a consistent error payload returned by the API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteError renders err using the canonical error shape. Errors that are not
// an AppError are reported as a generic internal failure; blank fields of an
// AppError fall back to the same generic values.
func WriteError(w http.ResponseWriter, err error) {
	body := ErrorBody{Code: "INTERNAL", Message: "internal error"}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		JSON(w, http.StatusInternalServerError, map[string]any{"error": body})
		return
	}
	if appErr.Code != "" {
		body.Code = appErr.Code
	}
	if appErr.Message != "" {
		body.Message = appErr.Message
	}
	body.Details = appErr.Details
	var syntaxErr *json.SyntaxError
	if errors.As(appErr.Err, &syntaxErr) {
		body.Details = map[string]any{"offset": syntaxErr.Offset}
	}
	JSON(w, StatusOf(appErr), map[string]any{"error": body})
}
