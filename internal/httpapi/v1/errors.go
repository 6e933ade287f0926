package v1

import (
	"errors"
	"net/http"

	"github.com/mintarch/ledger/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeDomainErr maps the error taxonomy onto HTTP statuses. Retryable
// conflicts carry a flag so clients know to back off and retry.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		toJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation_error"})
	case errors.Is(err, errs.ErrInvariant):
		toJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "invariant_violation"})
	case errors.Is(err, errs.ErrNotFound):
		toJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, errs.ErrConflict):
		retryable := errs.IsRetryable(err)
		if retryable {
			lockConflictsTotal.Inc()
		}
		toJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "conflict", Retryable: retryable})
	default:
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
	}
}
