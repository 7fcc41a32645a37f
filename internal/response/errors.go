package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrAttemptClosed     ErrCode = "ATTEMPT_CLOSED"
	ErrAttemptOpen       ErrCode = "ATTEMPT_OPEN"
	ErrAttemptInProgress ErrCode = "ATTEMPT_IN_PROGRESS"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrStoreUnavailable ErrCode = "STORE_UNAVAILABLE"
	ErrInternal         ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "An access token is required."
	case ErrTokenInvalid:
		return "The access token is invalid or has expired."

	case ErrValidation:
		return "Some fields are invalid."
	case ErrInvalidID:
		return "The identifier is not a valid UUID."
	case ErrInvalidPayload:
		return "The request body could not be read."

	case ErrNotFound:
		return "The requested resource was not found."

	case ErrAttemptClosed:
		return "This attempt has already been submitted."
	case ErrAttemptOpen:
		return "This attempt has not been submitted yet."
	case ErrAttemptInProgress:
		return "You already have an attempt in progress for this test."

	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."

	case ErrStoreUnavailable:
		return "The service is temporarily unavailable. Please retry."
	case ErrInternal:
		return "An internal error occurred."
	default:
		return "An unknown error occurred."
	}
}
