package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hanpos/hanpos/internal/domain/catalog"
	"github.com/hanpos/hanpos/internal/domain/order"
	"github.com/hanpos/hanpos/internal/domain/payment"
)

type errorBody struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	CurrentVersion *int   `json:"currentVersion,omitempty"`
}

type errorEnvelope struct {
	Success   bool      `json:"success"`
	Error     errorBody `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{
		Error:     errorBody{Code: code, Message: message},
		Timestamp: time.Now().UTC(),
	})
}

// writeDomainError maps a domain error to the wire envelope. Unknown
// errors are logged and returned as an opaque 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		versionErr *order.VersionConflictError
		lineErr    *order.InvalidLineError
		argErr     *order.InvalidArgumentError
		amountErr  *payment.InvalidAmountError
		methodErr  *payment.InvalidMethodError
	)
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &versionErr):
		current := versionErr.Current
		writeJSON(w, http.StatusConflict, errorEnvelope{
			Error: errorBody{
				Code:           "VERSION_CONFLICT",
				Message:        err.Error(),
				CurrentVersion: &current,
			},
			Timestamp: time.Now().UTC(),
		})
	case errors.Is(err, payment.ErrOrderNotOpen),
		errors.Is(err, payment.ErrNotApproved):
		writeError(w, http.StatusConflict, "INVALID_STATE", err.Error())
	case errors.Is(err, order.ErrNumberTaken):
		// Surfaces only when the creation retry loop is exhausted under
		// heavy concurrent creation; the client can simply resubmit.
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.As(err, &amountErr):
		writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, payment.ErrNonPositiveAmount),
		errors.Is(err, payment.ErrNegativeInstallments),
		errors.As(err, &lineErr),
		errors.As(err, &argErr),
		errors.As(err, &methodErr):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func writeForbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "FORBIDDEN", "store not accessible with this session")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body: "+err.Error())
		return false
	}
	return true
}
