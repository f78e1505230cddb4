package dto

import "net/http"

// Error codes returned in ErrorInfo.Code. Format: ERR_<CATEGORY>[_<DESCRIPTION>]
const (
	ErrCodeInternal     = "ERR_INTERNAL"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeListNotBound = "ERR_LIST_NOT_BOUND"

	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"

	// Sync engine and scheduler
	ErrCodeSyncUnavailable   = "ERR_SYNC_UNAVAILABLE"
	ErrCodeSyncQueueFull     = "ERR_SYNC_QUEUE_FULL"
	ErrCodeConnectionDown    = "ERR_CONNECTION_DOWN"
	ErrCodeMalformedSnapshot = "ERR_MALFORMED_SNAPSHOT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeListNotBound: http.StatusNotFound,

	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,

	ErrCodeSyncUnavailable:   http.StatusServiceUnavailable,
	ErrCodeSyncQueueFull:     http.StatusTooManyRequests,
	ErrCodeConnectionDown:    http.StatusBadGateway,
	ErrCodeMalformedSnapshot: http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 for unknown codes
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
