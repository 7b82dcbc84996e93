package posauth

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidCredentials is returned for a failed login. It never reveals
	// whether the identifier or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotFound is returned when a flow references a user record
	// that does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountPending blocks accounts that have not completed verification.
	ErrAccountPending = errors.New("account pending verification")
	// ErrAccountInactive blocks administratively deactivated accounts.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountBanned blocks banned accounts.
	ErrAccountBanned = errors.New("account banned")
	// ErrDuplicateEmail rejects registration with an email already in use.
	ErrDuplicateEmail = errors.New("email already in use")
	// ErrDuplicateUsername rejects registration with a username already in use.
	ErrDuplicateUsername = errors.New("username already in use")
	// ErrTokenInvalid covers bad signature, expiry, and revocation alike, so
	// the error is never an oracle for which check failed.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSessionInvalid reports a missing, consumed, or wrong-purpose OTP
	// session.
	ErrSessionInvalid = errors.New("otp session invalid")
	// ErrOTPExpired reports that the code timed out while the session is
	// still live; a resend recovers the flow.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPInvalid reports a wrong code.
	ErrOTPInvalid = errors.New("otp invalid")
	// ErrRateLimited reports an exhausted resend budget or a resend attempted
	// inside the cooldown.
	ErrRateLimited = errors.New("rate limited")
	// ErrPasswordReuse rejects a password change to the current password.
	ErrPasswordReuse = errors.New("new password must be different from current password")
)

// StatusCode maps a Service error to the HTTP status the transport layer
// should answer with. Errors outside the taxonomy, such as store and
// repository connectivity failures, map to 500; those flows have already
// failed closed.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountPending),
		errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrAccountBanned):
		return http.StatusForbidden
	case errors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrDuplicateUsername):
		return http.StatusConflict
	case errors.Is(err, ErrSessionInvalid),
		errors.Is(err, ErrOTPExpired),
		errors.Is(err, ErrOTPInvalid),
		errors.Is(err, ErrPasswordReuse):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
