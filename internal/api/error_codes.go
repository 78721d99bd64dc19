// internal/api/error_codes.go
package api

// API error codes.
const (
	// General
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorRateLimited   = "RATE_LIMITED"

	// Sessions
	ErrorSessionNotFound = "SESSION_NOT_FOUND"
	ErrorSessionLimit    = "SESSION_LIMIT_REACHED"

	// Navigation
	ErrorChoiceInvalid = "CHOICE_INVALID"

	// WebSocket
	ErrorUnknownAction = "UNKNOWN_ACTION"
	ErrorMessageFormat = "MESSAGE_FORMAT_INVALID"
)
