package authsession

import "time"

// User is the identity returned by the backend on every successful auth event.
//
// User values are replaced wholesale; the Manager never edits one in place.
type User struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	FamilyID   int64  `json:"family_id"`
	MemberType string `json:"member_type"`
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// TwoFactorChallenge marks a login that is waiting for a second factor.
type TwoFactorChallenge struct {
	UserID      int64  `json:"user_id"`
	ChallengeID string `json:"challenge_id"`
	Email       string `json:"email,omitempty"`
}

func cloneChallenge(c *TwoFactorChallenge) *TwoFactorChallenge {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// State is a read-only snapshot of the session.
//
// The refresh token is deliberately absent: it never leaves the Manager.
type State struct {
	User             *User
	AccessToken      string
	ExpiresAt        time.Time
	IsAuthenticated  bool
	IsLoading        bool
	Error            string
	TwoFactorPending *TwoFactorChallenge
	// SessionID is a local correlation ID, regenerated for every new session.
	SessionID string
}

// LoginStatus is the outcome class of a login or 2FA verification.
type LoginStatus int

const (
	// LoginFailed covers validation failures, backend rejections and transport errors.
	LoginFailed LoginStatus = iota
	// LoginAuthenticated means tokens were issued and the session is live.
	LoginAuthenticated
	// LoginTwoFactorRequired means a second factor must be supplied next.
	LoginTwoFactorRequired
)

// String returns the status name.
func (s LoginStatus) String() string {
	switch s {
	case LoginAuthenticated:
		return "authenticated"
	case LoginTwoFactorRequired:
		return "two_factor_required"
	default:
		return "failed"
	}
}

// LoginResult is returned by Login, Verify2FA and VerifyBackupCode.
type LoginResult struct {
	Status LoginStatus
	// Challenge is set when Status is LoginTwoFactorRequired.
	Challenge *TwoFactorChallenge
	// Reason is the user-facing message for a failure.
	Reason string
	// Err is errors.Is-comparable with the package sentinels.
	Err error
}

// OK reports whether the session is authenticated after the call.
func (r LoginResult) OK() bool {
	return r.Status == LoginAuthenticated
}
