package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Configuration Errors (CONFIG_*) - fatal to the flow that needs them;
	// the payment option must not be offered
	ErrorCodeConfigMissingCredentials ErrorCode = "CONFIG_MISSING_CREDENTIALS"
	ErrorCodeConfigMissingSecret      ErrorCode = "CONFIG_MISSING_SECRET"
	ErrorCodeConfigFeatureDisabled    ErrorCode = "CONFIG_FEATURE_DISABLED"

	// Order Errors (ORDER_*)
	ErrorCodeOrderNotFound       ErrorCode = "ORDER_NOT_FOUND"
	ErrorCodeOrderInvalidState   ErrorCode = "ORDER_INVALID_STATE"
	ErrorCodeOrderAlreadySettled ErrorCode = "ORDER_ALREADY_SETTLED"
	ErrorCodeOrderZeroTotal      ErrorCode = "ORDER_ZERO_TOTAL"

	// Saved Card Errors (CARD_*)
	ErrorCodeCardNotFound     ErrorCode = "CARD_NOT_FOUND"
	ErrorCodeCardGuestVault   ErrorCode = "CARD_GUEST_VAULT"
	ErrorCodeCardNotOwned     ErrorCode = "CARD_NOT_OWNED"

	// Validation / Decline Errors (VALIDATION_*, DECLINE_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrorCodeDeclined                ErrorCode = "DECLINE_GATEWAY"

	// Gateway Transport Errors (GATEWAY_*)
	ErrorCodeGatewayError        ErrorCode = "GATEWAY_ERROR"
	ErrorCodeGatewayUnauthorized ErrorCode = "GATEWAY_UNAUTHORIZED"

	// Notification Integrity Errors (NOTIFY_*) - discarded, never fatal
	ErrorCodeNotifyDisabled       ErrorCode = "NOTIFY_DISABLED"
	ErrorCodeNotifyBadSignature   ErrorCode = "NOTIFY_BAD_SIGNATURE"
	ErrorCodeNotifyDisallowedIP   ErrorCode = "NOTIFY_DISALLOWED_IP"
	ErrorCodeNotifyUnknownOrder   ErrorCode = "NOTIFY_UNKNOWN_ORDER"

	// Authorization Errors (AUTHZ_*)
	ErrorCodeAuthzDenied ErrorCode = "AUTHZ_DENIED"

	// Subscription Errors (SUB_*)
	ErrorCodeSubNotFound        ErrorCode = "SUB_NOT_FOUND"
	ErrorCodeSubCounterConflict ErrorCode = "SUB_COUNTER_CONFLICT"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail returns a copy of the error carrying the extra detail field.
// The receiver is never mutated: the package-level error instances are
// shared across concurrent requests.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value

	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: details,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsConfigError checks if an error means the payment option must not be offered
func IsConfigError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeConfigMissingCredentials ||
		code == ErrorCodeConfigMissingSecret ||
		code == ErrorCodeConfigFeatureDisabled
}

// IsDecline checks if an error is a shopper-recoverable gateway decline
func IsDecline(err error) bool {
	return GetErrorCode(err) == ErrorCodeDeclined
}

// IsIntegrityError checks if an error is a notification authentication
// failure. These are discarded and logged, never surfaced to the shopper.
func IsIntegrityError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeNotifyDisabled ||
		code == ErrorCodeNotifyBadSignature ||
		code == ErrorCodeNotifyDisallowedIP ||
		code == ErrorCodeNotifyUnknownOrder
}

// Structured error instances
var (
	ErrMissingCredentials = NewDomainError(ErrorCodeConfigMissingCredentials, "gateway credentials are not configured")
	ErrMissingSecret      = NewDomainError(ErrorCodeConfigMissingSecret, "shared secret is not configured")
	ErrFeatureDisabled    = NewDomainError(ErrorCodeConfigFeatureDisabled, "feature is administratively disabled")

	ErrOrderNotFound       = NewDomainError(ErrorCodeOrderNotFound, "order not found")
	ErrOrderInvalidState   = NewDomainError(ErrorCodeOrderInvalidState, "order is in invalid state for this operation")
	ErrOrderAlreadySettled = NewDomainError(ErrorCodeOrderAlreadySettled, "order already settled")
	ErrOrderZeroTotal      = NewDomainError(ErrorCodeOrderZeroTotal, "order total is zero or invalid")

	ErrCardNotFound   = NewDomainError(ErrorCodeCardNotFound, "saved card not found")
	ErrCardGuestVault = NewDomainError(ErrorCodeCardGuestVault, "guest checkout cannot vault cards")
	ErrCardNotOwned   = NewDomainError(ErrorCodeCardNotOwned, "saved card belongs to a different customer")

	ErrValidationFailed        = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")
	ErrValidationMissingField  = NewDomainError(ErrorCodeValidationMissingField, "required field missing")

	ErrGatewayError        = NewDomainError(ErrorCodeGatewayError, "payment gateway error")
	ErrGatewayUnauthorized = NewDomainError(ErrorCodeGatewayUnauthorized, "payment gateway rejected the webservice credentials")

	ErrAuthzDenied = NewDomainError(ErrorCodeAuthzDenied, "not authorized for this operation")

	ErrSubNotFound        = NewDomainError(ErrorCodeSubNotFound, "subscription state not found")
	ErrSubCounterConflict = NewDomainError(ErrorCodeSubCounterConflict, "subscription counter moved concurrently")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
