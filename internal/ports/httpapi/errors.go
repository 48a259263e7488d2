package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ito/internal/domain"

	"github.com/rs/zerolog/hlog"
)

var kindStatus = map[error]int{
	domain.ErrUnauthenticated:    http.StatusUnauthorized,
	domain.ErrInvalidArgument:    http.StatusBadRequest,
	domain.ErrFailedPrecondition: http.StatusPreconditionFailed,
	domain.ErrPermissionDenied:   http.StatusForbidden,
	domain.ErrNotFound:           http.StatusNotFound,
	domain.ErrResourceExhausted:  http.StatusTooManyRequests,
	domain.ErrAlreadyExists:      http.StatusConflict,
	domain.ErrDeadlineExceeded:   http.StatusGone,
}

type errorBody struct {
	Error string `json:"error"`
}

func errUnauthenticated(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrUnauthenticated, msg)
}

func errBadRequest(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, msg)
}

func statusOf(err error) int {
	if status, ok := kindStatus[domain.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeError maps an engine error to its HTTP status. Internal failures are
// logged and reported without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
