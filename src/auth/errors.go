package auth

import "net/http"

// Error is the single error type returned by the auth core. Code is a
// stable machine-readable value the storefront UI can branch on without
// string matching.
type Error struct {
	Code    string
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches by code so wrapped copies compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Wrap returns a copy of the sentinel carrying the underlying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Code: e.Code, Status: e.Status, Message: e.Message, cause: cause}
}

var (
	ErrConfiguration = &Error{
		Code:    "SERVICE_CONFIGURATION_ERROR",
		Status:  http.StatusInternalServerError,
		Message: "authentication provider is not configured",
	}
	ErrInvalidState = &Error{
		Code:    "AUTH_INVALID_STATE",
		Status:  http.StatusBadRequest,
		Message: "oauth state mismatch",
	}
	ErrOAuth = &Error{
		Code:    "AUTH_OAUTH_ERROR",
		Status:  http.StatusBadRequest,
		Message: "oauth provider returned an error",
	}
	ErrTokenExchangeFailed = &Error{
		Code:    "TOKEN_EXCHANGE_FAILED",
		Status:  http.StatusBadGateway,
		Message: "failed to exchange authorization code",
	}
	ErrUserInfoFailed = &Error{
		Code:    "USERINFO_FAILED",
		Status:  http.StatusBadGateway,
		Message: "failed to fetch user info from provider",
	}
	ErrEmailNotVerified = &Error{
		Code:    "AUTH_EMAIL_NOT_VERIFIED",
		Status:  http.StatusForbidden,
		Message: "provider email is not verified",
	}
	ErrInsufficientPermissions = &Error{
		Code:    "INSUFFICIENT_PERMISSIONS",
		Status:  http.StatusForbidden,
		Message: "admin access required",
	}
	ErrDatabase = &Error{
		Code:    "DATABASE_ERROR",
		Status:  http.StatusInternalServerError,
		Message: "storage operation failed",
	}
)
