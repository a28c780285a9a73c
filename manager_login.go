package authsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

type authKind int

const (
	authPassword authKind = iota
	authTOTP
	authBackupCode
)

func (k authKind) fallbackMessage() string {
	switch k {
	case authTOTP:
		return msgVerifyFailed
	case authBackupCode:
		return msgBackupCodeFailed
	default:
		return msgLoginFailed
	}
}

// Login exchanges credentials for a session.
//
// Empty input is rejected locally without touching state. A backend rejection
// or transport failure sets State.Error and leaves any existing session alone.
// When the backend asks for a second factor the current session is discarded
// and the challenge is held until Verify2FA, VerifyBackupCode or Cancel2FA.
func (m *Manager) Login(ctx context.Context, email, password string) LoginResult {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return m.rejectLocally(ctx, AuditLoginFailure, MetricLoginValidationFailure, ErrEmailRequired)
	case password == "":
		return m.rejectLocally(ctx, AuditLoginFailure, MetricLoginValidationFailure, ErrPasswordRequired)
	}

	if !m.beginAuth() {
		return LoginResult{Status: LoginFailed, Err: ErrManagerClosed, Reason: ErrManagerClosed.Error()}
	}
	resp, err := callBackend(m, ctx, func(c context.Context) (*AuthResponse, error) {
		return m.backend.Login(c, email, password)
	})
	return m.completeAuth(ctx, authPassword, resp, err)
}

// Verify2FA completes a pending login with a six-digit TOTP code. Whitespace
// inside the code is ignored.
func (m *Manager) Verify2FA(ctx context.Context, code string) LoginResult {
	code = stripSpace(code)
	if !isTOTPCode(code) {
		return m.rejectLocally(ctx, AuditMFAFailure, MetricMFAFailure, ErrInvalidTOTPCode)
	}
	return m.verifySecondFactor(ctx, authTOTP, code)
}

// VerifyBackupCode completes a pending login with a one-time backup code. The
// code is upper-cased and whitespace is ignored.
func (m *Manager) VerifyBackupCode(ctx context.Context, code string) LoginResult {
	code = strings.ToUpper(stripSpace(code))
	if !isBackupCode(code) {
		return m.rejectLocally(ctx, AuditBackupCodeFailed, MetricBackupCodeFailed, ErrInvalidBackupCode)
	}
	return m.verifySecondFactor(ctx, authBackupCode, code)
}

// Cancel2FA abandons a pending challenge without contacting the backend.
func (m *Manager) Cancel2FA() {
	m.mu.Lock()
	if m.pending == nil {
		m.mu.Unlock()
		return
	}
	uid := m.pending.UserID
	m.pending = nil
	m.err = ""
	m.unlockAndNotify()

	m.metricInc(MetricMFACancelled)
	m.emitAudit(context.Background(), AuditMFACancelled, true, uid, "", nil, nil)
}

func (m *Manager) verifySecondFactor(ctx context.Context, kind authKind, code string) LoginResult {
	m.mu.Lock()
	if m.pending == nil {
		m.mu.Unlock()
		failEvent, failMetric := AuditMFAFailure, MetricMFAFailure
		if kind == authBackupCode {
			failEvent, failMetric = AuditBackupCodeFailed, MetricBackupCodeFailed
		}
		return m.rejectLocally(ctx, failEvent, failMetric, ErrNoPendingChallenge)
	}
	challengeID := m.pending.ChallengeID
	m.mu.Unlock()

	if !m.beginAuth() {
		return LoginResult{Status: LoginFailed, Err: ErrManagerClosed, Reason: ErrManagerClosed.Error()}
	}
	resp, err := callBackend(m, ctx, func(c context.Context) (*AuthResponse, error) {
		if kind == authBackupCode {
			return m.backend.VerifyBackupCode(c, code, challengeID)
		}
		return m.backend.Verify2FA(c, code, challengeID)
	})
	return m.completeAuth(ctx, kind, resp, err)
}

func (m *Manager) rejectLocally(ctx context.Context, event AuditKind, metric MetricID, err error) LoginResult {
	m.metricInc(metric)
	m.emitAudit(ctx, event, false, 0, "", err, nil)
	return LoginResult{Status: LoginFailed, Reason: err.Error(), Err: err}
}

// beginAuth marks an operation in flight and clears the previous error.
func (m *Manager) beginAuth() bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.inflight++
	m.err = ""
	m.unlockAndNotify()
	return true
}

// completeAuth applies the outcome of a login or 2FA call. The in-flight count
// is released in every branch.
func (m *Manager) completeAuth(ctx context.Context, kind authKind, resp *AuthResponse, callErr error) LoginResult {
	m.mu.Lock()
	m.inflight--
	now := m.clock.Now()

	var (
		result    LoginResult
		event     AuditKind
		metric    MetricID
		success   bool
		userID    int64
		sessionID string
	)

	switch {
	case callErr != nil || resp == nil:
		if callErr == nil {
			callErr = errors.New("empty response")
		}
		m.err = callErr.Error()
		result = LoginResult{
			Status: LoginFailed,
			Reason: m.err,
			Err:    fmt.Errorf("%w: %w", ErrBackendUnavailable, callErr),
		}
		event, metric = failureSignals(kind)
		if m.pending != nil {
			userID = m.pending.UserID
		}

	case kind == authPassword && resp.Requires2FA:
		if resp.Challenge == nil || strings.TrimSpace(resp.Challenge.ChallengeID) == "" {
			m.err = msgBackendError
			result = LoginResult{
				Status: LoginFailed,
				Reason: m.err,
				Err:    fmt.Errorf("%w: 2fa required without challenge", ErrBackendUnavailable),
			}
			event, metric = failureSignals(kind)
			break
		}
		m.resetLocked(ctx)
		m.pending = cloneChallenge(resp.Challenge)
		result = LoginResult{Status: LoginTwoFactorRequired, Challenge: cloneChallenge(resp.Challenge)}
		event, metric, success = AuditMFARequired, MetricMFARequired, true
		userID = resp.Challenge.UserID

	case resp.Success:
		if resp.AccessToken == "" || resp.User == nil {
			m.err = msgBackendError
			reason := "missing access token"
			if resp.User == nil {
				reason = msgMissingUserInAuth
			}
			result = LoginResult{
				Status: LoginFailed,
				Reason: m.err,
				Err:    fmt.Errorf("%w: %s", ErrBackendUnavailable, reason),
			}
			event, metric = failureSignals(kind)
			break
		}
		m.establishLocked(ctx, resp, now)
		result = LoginResult{Status: LoginAuthenticated}
		event, metric, success = successSignals(kind)
		userID, sessionID = resp.User.ID, m.sessionID

	default:
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = kind.fallbackMessage()
		}
		m.err = msg
		result = LoginResult{
			Status: LoginFailed,
			Reason: msg,
			Err:    fmt.Errorf("%w: %s", ErrCredentialsRejected, msg),
		}
		event, metric = failureSignals(kind)
		if m.pending != nil {
			userID = m.pending.UserID
		}
	}
	m.unlockAndNotify()

	m.metricInc(metric)
	m.emitAudit(ctx, event, success, userID, sessionID, result.Err, func() map[string]string {
		if result.Challenge == nil {
			return nil
		}
		return map[string]string{"challenge_id": result.Challenge.ChallengeID}
	})
	return result
}

func successSignals(kind authKind) (AuditKind, MetricID, bool) {
	switch kind {
	case authTOTP:
		return AuditMFASuccess, MetricMFASuccess, true
	case authBackupCode:
		return AuditBackupCodeUsed, MetricBackupCodeUsed, true
	default:
		return AuditLoginSuccess, MetricLoginSuccess, true
	}
}

func failureSignals(kind authKind) (AuditKind, MetricID) {
	switch kind {
	case authTOTP:
		return AuditMFAFailure, MetricMFAFailure
	case authBackupCode:
		return AuditBackupCodeFailed, MetricBackupCodeFailed
	default:
		return AuditLoginFailure, MetricLoginFailure
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func isTOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func isBackupCode(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}
