// Package handlers implements the REST surface of the Splitton backend.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mkotov/splitton/internal/auth"
	"github.com/mkotov/splitton/internal/settlement"
	"github.com/mkotov/splitton/internal/ton"
)

type errorResponse struct {
	Error string `json:"error"`
}

// badRequestError marks malformed-input failures from request decoding
// and validation.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses. The taxonomy matters
// to clients: 404s are final, 409s resolve once the open intent settles,
// and the missing-wallet 422 means the bill creator (not the payer) has
// to act.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	var badReq *badRequestError
	switch {
	case errors.Is(err, settlement.ErrBillNotFound),
		errors.Is(err, settlement.ErrParticipantNotFound),
		errors.Is(err, settlement.ErrPaymentNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, settlement.ErrAlreadyPaid),
		errors.Is(err, settlement.ErrPaymentInProgress):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, settlement.ErrWalletNotConfigured):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, settlement.ErrForbidden):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, ton.ErrInvalidAddress),
		errors.Is(err, settlement.ErrUnknownStatus):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidInitData), errors.Is(err, auth.ErrStaleInitData):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.As(err, &badReq):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		slog.Error("request failed", "error", err)
	}

	writeJSON(w, status, errorResponse{Error: msg})
}
