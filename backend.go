package authsession

import "context"

// Backend is the remote authentication service the Manager talks to.
//
// Implementations report explicit rejections through AuthResponse.Success=false
// and reserve the error return for transport or decoding failures. The
// httpbackend package provides the HTTP/JSON implementation.
type Backend interface {
	Login(ctx context.Context, email, password string) (*AuthResponse, error)
	Verify2FA(ctx context.Context, code, challengeID string) (*AuthResponse, error)
	VerifyBackupCode(ctx context.Context, code, challengeID string) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	VerifyToken(ctx context.Context, accessToken string) (*VerifyResponse, error)
	Logout(ctx context.Context, refreshToken string, revokeAll bool) error
}

// AuthResponse is the payload of login, 2FA and refresh calls.
type AuthResponse struct {
	Success      bool                `json:"success"`
	Error        string              `json:"error,omitempty"`
	AccessToken  string              `json:"access_token,omitempty"`
	RefreshToken string              `json:"refresh_token,omitempty"`
	ExpiresIn    int64               `json:"expires_in,omitempty"`
	User         *User               `json:"user,omitempty"`
	Requires2FA  bool                `json:"requires_2fa,omitempty"`
	Challenge    *TwoFactorChallenge `json:"challenge,omitempty"`
}

// VerifyResponse is the payload of an access-token verification.
type VerifyResponse struct {
	Valid bool  `json:"valid"`
	User  *User `json:"user,omitempty"`
}
