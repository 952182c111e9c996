package auth

import (
	"errors"
	"net/http"

	"github.com/FACorreiaa/go-complaint-auth/internal/api/geography"
	"github.com/FACorreiaa/go-complaint-auth/internal/tokens"
)

// Flow errors. Their messages are safe to return to callers.
var (
	ErrDuplicatePhone        = errors.New("phone number is already registered")
	ErrDuplicateEmail        = errors.New("email is already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountSuspended      = errors.New("account is suspended")
	ErrVerificationRequired  = errors.New("account verification required")
	ErrInvalidOrExpiredCode  = errors.New("invalid or expired verification code")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrIncorrectPassword     = errors.New("current password is incorrect")
	ErrPortalForbidden       = errors.New("this account cannot sign in to the admin portal")
	ErrIdentifierRequired    = errors.New("email or phone is required")
	ErrTokenExpired          = tokens.ErrTokenExpired
	ErrTokenInvalid          = tokens.ErrTokenInvalid
	ErrInvalidGeography      = geography.ErrInvalidGeography
	errInternal              = errors.New("internal server error")
)

// StatusFor maps a flow error to its HTTP status and the single message shown
// to the caller. Unknown errors become a generic 500.
func StatusFor(err error) (int, string) {
	var geoErr *geography.Error
	switch {
	case errors.Is(err, ErrDuplicatePhone):
		return http.StatusConflict, ErrDuplicatePhone.Error()
	case errors.Is(err, ErrDuplicateEmail):
		return http.StatusConflict, ErrDuplicateEmail.Error()
	case errors.As(err, &geoErr):
		return http.StatusBadRequest, geoErr.Reason
	case errors.Is(err, ErrInvalidGeography):
		return http.StatusBadRequest, ErrInvalidGeography.Error()
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrInvalidCredentials.Error()
	case errors.Is(err, ErrAccountSuspended):
		return http.StatusForbidden, ErrAccountSuspended.Error()
	case errors.Is(err, ErrVerificationRequired):
		return http.StatusForbidden, ErrVerificationRequired.Error()
	case errors.Is(err, ErrPortalForbidden):
		return http.StatusForbidden, ErrPortalForbidden.Error()
	case errors.Is(err, ErrInvalidOrExpiredCode):
		return http.StatusBadRequest, ErrInvalidOrExpiredCode.Error()
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return http.StatusBadRequest, ErrInvalidOrExpiredToken.Error()
	case errors.Is(err, ErrIncorrectPassword):
		return http.StatusBadRequest, ErrIncorrectPassword.Error()
	case errors.Is(err, ErrIdentifierRequired):
		return http.StatusBadRequest, ErrIdentifierRequired.Error()
	case errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, ErrTokenInvalid):
		return http.StatusUnauthorized, "token invalid"
	}
	return http.StatusInternalServerError, errInternal.Error()
}
