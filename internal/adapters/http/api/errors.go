package api

import (
	"errors"
	"net/http"

	"github.com/okian/allot/internal/domain/fault"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, fault.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, fault.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fault.ErrInsufficientCapacity),
		errors.Is(err, fault.ErrDuplicateAllocation),
		errors.Is(err, fault.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, fault.ErrSkillMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fault.ErrBackpressure):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {kind, message}. Internal errors do not leak their text.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	kind := fault.KindName(err)
	if errors.Is(err, ErrBadRequest) {
		kind = "bad_request"
	}
	msg := http.StatusText(status)
	if status != http.StatusInternalServerError {
		msg = err.Error()
		var fe *fault.Error
		if errors.As(err, &fe) {
			msg = fe.Message()
		}
	}
	writeJSON(w, status, errorResponse{Kind: kind, Message: msg})
}
