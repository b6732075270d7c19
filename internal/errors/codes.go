package errors

import "net/http"

// ErrorCode represents the type of error
type ErrorCode string

const (
	ErrNotFound               ErrorCode = "NOT_FOUND"
	ErrUnauthorized           ErrorCode = "UNAUTHORIZED"
	ErrBadRequest             ErrorCode = "BAD_REQUEST"
	ErrInternalError          ErrorCode = "INTERNAL_ERROR"
	ErrRateLimited            ErrorCode = "RATE_LIMITED"
	ErrServiceUnavail         ErrorCode = "SERVICE_UNAVAILABLE"
	ErrBlockedIllegalActivity ErrorCode = "BLOCKED_ILLEGAL_ACTIVITY"
	ErrUnsupportedMediaType   ErrorCode = "UNSUPPORTED_MEDIA_TYPE"
	ErrMalformedBody          ErrorCode = "MALFORMED_BODY"
	ErrIllegalFileType        ErrorCode = "ILLEGAL_FILE_TYPE"
	ErrPayloadTooLarge        ErrorCode = "PAYLOAD_TOO_LARGE"
)

// StatusCodeMap maps ErrorCode to HTTP status code.
// Access-control failures deliberately map to 500 so the response does not
// reveal that an authorization check exists.
var StatusCodeMap = map[ErrorCode]int{
	ErrNotFound:               http.StatusNotFound,
	ErrUnauthorized:           http.StatusUnauthorized,
	ErrBadRequest:             http.StatusBadRequest,
	ErrInternalError:          http.StatusInternalServerError,
	ErrRateLimited:            http.StatusTooManyRequests,
	ErrServiceUnavail:         http.StatusServiceUnavailable,
	ErrBlockedIllegalActivity: http.StatusInternalServerError,
	ErrUnsupportedMediaType:   http.StatusUnsupportedMediaType,
	ErrMalformedBody:          http.StatusInternalServerError,
	ErrIllegalFileType:        http.StatusInternalServerError,
	ErrPayloadTooLarge:        http.StatusRequestEntityTooLarge,
}

// StatusCode returns the HTTP status code for this error code
func (e ErrorCode) StatusCode() int {
	if code, ok := StatusCodeMap[e]; ok {
		return code
	}
	return http.StatusInternalServerError
}
