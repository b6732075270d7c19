package errors

import "fmt"

// Messages rendered on error pages. Clients match on these strings.
const (
	MsgUnexpectedEndOfForm = "Unexpected end of form"
	MsgIllegalFileType     = "Illegal file type"
	MsgFileTooLarge        = "File too large"
	MsgUnsupportedType     = "Profile image upload does not accept this file type"
)

// APIError represents a standardized API error response
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Status  int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAPIError(code ErrorCode, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Status:  code.StatusCode(),
	}
}

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *APIError {
	return newAPIError(ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// Unauthorized creates an UNAUTHORIZED error
func Unauthorized(message string) *APIError {
	return newAPIError(ErrUnauthorized, message)
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *APIError {
	return newAPIError(ErrBadRequest, message)
}

// InternalError creates an INTERNAL_ERROR
func InternalError(message string) *APIError {
	return newAPIError(ErrInternalError, message)
}

// RateLimited creates a RATE_LIMITED error
func RateLimited(message string) *APIError {
	if message == "" {
		message = "rate limit exceeded"
	}
	return newAPIError(ErrRateLimited, message)
}

// ServiceUnavailable creates a SERVICE_UNAVAILABLE error
func ServiceUnavailable(service string) *APIError {
	return newAPIError(ErrServiceUnavail, fmt.Sprintf("%s is temporarily unavailable", service))
}

// BlockedIllegalActivity is the obscured error returned to anonymous callers
// of mutating endpoints.
func BlockedIllegalActivity(remoteAddr string) *APIError {
	return newAPIError(ErrBlockedIllegalActivity, "Blocked illegal activity by "+remoteAddr)
}

// BlockedIllegalAccess is the obscured error returned to anonymous callers
// of pages that require a session.
func BlockedIllegalAccess(remoteAddr string) *APIError {
	return newAPIError(ErrBlockedIllegalActivity, "Blocked illegal access by "+remoteAddr)
}

// UnsupportedMediaType rejects an upload whose sniffed type is not allow-listed.
func UnsupportedMediaType(mimeType string) *APIError {
	msg := MsgUnsupportedType + "."
	if mimeType != "" {
		msg = MsgUnsupportedType + ": " + mimeType
	}
	return newAPIError(ErrUnsupportedMediaType, msg)
}

// MalformedBody reports a multipart body that ended before its closing boundary.
func MalformedBody() *APIError {
	return newAPIError(ErrMalformedBody, MsgUnexpectedEndOfForm)
}

// IllegalFileType reports a form without a usable file part.
func IllegalFileType() *APIError {
	return newAPIError(ErrIllegalFileType, MsgIllegalFileType)
}

// PayloadTooLarge reports an upload over the configured size limit.
func PayloadTooLarge() *APIError {
	return newAPIError(ErrPayloadTooLarge, MsgFileTooLarge)
}

// WithDetails adds additional details to an error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

var _ error = (*APIError)(nil)
