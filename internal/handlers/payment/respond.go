package payment

import (
	"encoding/json"
	"net/http"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
)

func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// respondDomainError maps a domain error to the HTTP status a storefront
// client can act on.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsDomainError(err, domain.ErrorCodeOrderNotFound),
		domain.IsDomainError(err, domain.ErrorCodeCardNotFound),
		domain.IsDomainError(err, domain.ErrorCodeSubNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case domain.IsDomainError(err, domain.ErrorCodeAuthzDenied),
		domain.IsDomainError(err, domain.ErrorCodeCardNotOwned):
		respondError(w, http.StatusForbidden, err.Error())
	case domain.IsConfigError(err):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case domain.GetErrorCode(err) == domain.ErrorCodeValidationFailed,
		domain.GetErrorCode(err) == domain.ErrorCodeValidationAmountInvalid,
		domain.GetErrorCode(err) == domain.ErrorCodeValidationMissingField,
		domain.GetErrorCode(err) == domain.ErrorCodeOrderZeroTotal,
		domain.GetErrorCode(err) == domain.ErrorCodeOrderInvalidState:
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
