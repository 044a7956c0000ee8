package api

import (
	"errors"
	"net/http"

	"github.com/agentworkbench/workbench/internal/core"
)

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, true
	default:
		return http.StatusInternalServerError, true
	}
}

// respondStoreError maps a store error to an HTTP status, defaulting to
// 500 for non-domain errors.
func respondStoreError(w http.ResponseWriter, err error) {
	if status, ok := httpStatusForDomainError(err); ok {
		respondError(w, status, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
