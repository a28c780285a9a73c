package authsession

import "errors"

var (
	// ErrEmailRequired is returned by Login for an empty or blank email.
	ErrEmailRequired = errors.New("email required")
	// ErrPasswordRequired is returned by Login for an empty password.
	ErrPasswordRequired = errors.New("password required")
	// ErrInvalidTOTPCode is returned when a 2FA code is not exactly six digits.
	ErrInvalidTOTPCode = errors.New("invalid 2fa code format")
	// ErrInvalidBackupCode is returned when a backup code is empty or contains
	// characters outside A-Z, 0-9 and '-'.
	ErrInvalidBackupCode = errors.New("invalid backup code format")
	// ErrNoPendingChallenge is returned by 2FA verification without a pending challenge.
	ErrNoPendingChallenge = errors.New("no pending 2fa challenge")
	// ErrCredentialsRejected wraps an explicit rejection reported by the backend.
	ErrCredentialsRejected = errors.New("credentials rejected")
	// ErrBackendUnavailable wraps transport failures and malformed backend replies.
	ErrBackendUnavailable = errors.New("auth backend unavailable")
	// ErrRefreshRejected is recorded when the backend refuses a refresh token.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrNoRefreshToken is recorded when a refresh is attempted without a refresh token.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrStorageCorrupt is recorded when the persisted record cannot be decoded.
	ErrStorageCorrupt = errors.New("stored session corrupt")
	// ErrBackendRequired is returned by Build when no Backend was supplied.
	ErrBackendRequired = errors.New("backend required")
	// ErrBuilderUsed is returned by a second call to Build.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrManagerClosed is returned by operations attempted after Close.
	ErrManagerClosed = errors.New("manager closed")
)

const (
	msgLoginFailed       = "Login failed"
	msgVerifyFailed      = "Verification failed"
	msgBackupCodeFailed  = "Invalid backup code"
	msgBackendError      = "Authentication service unavailable"
	msgMissingUserInAuth = "Authentication response missing user"
)
