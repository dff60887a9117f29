package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrUsernameTaken      ErrCode = "USERNAME_TAKEN"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrLoginSuperseded    ErrCode = "LOGIN_SUPERSEDED"

	// Authorization
	ErrForbidden ErrCode = "FORBIDDEN"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"

	// Test-session specific
	ErrNoQuestionsAvailable ErrCode = "NO_QUESTIONS_AVAILABLE"
	ErrSessionClosed        ErrCode = "SESSION_CLOSED"
	ErrResultsNotReady      ErrCode = "RESULTS_NOT_READY"
	ErrQuestionNotInSession ErrCode = "QUESTION_NOT_IN_SESSION"
	ErrInvalidOption        ErrCode = "INVALID_OPTION"

	// Rate limiting
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// Server
	ErrStoreUnavailable ErrCode = "STORE_UNAVAILABLE"
	ErrInternal         ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Invalid username or password."
	case ErrUsernameTaken:
		return "Username already exists."
	case ErrTokenRequired:
		return "Authentication token required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrLoginSuperseded:
		return "Your login has been superseded by a newer one. Please log in again."
	case ErrForbidden:
		return "You do not have access to this resource."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrNotFound:
		return "Resource not found."
	case ErrNoQuestionsAvailable:
		return "No questions available for the requested subject."
	case ErrSessionClosed:
		return "This test session has already been submitted."
	case ErrResultsNotReady:
		return "Results are not ready. Submit the test first."
	case ErrQuestionNotInSession:
		return "This question is not part of your test session."
	case ErrInvalidOption:
		return "The selected option does not exist for this question."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."
	case ErrStoreUnavailable:
		return "Storage is temporarily unavailable. Please retry."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
