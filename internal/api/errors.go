package api

import (
	"encoding/json"
	"errors"
	"net/http"

	ferrors "github.com/boutdepapier/dynamicfilters/pkg/errors"
)

// httpStatusFromError maps filter errors to HTTP status codes.
func httpStatusFromError(err error) int {
	var notFound *ferrors.NotFoundError
	var validation *ferrors.ValidationError
	var unknownField *ferrors.UnknownFieldError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &unknownField):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message})
}
