package authsession

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/MrEthical07/authsession/jwt"
	"github.com/MrEthical07/authsession/storage"
	"github.com/google/uuid"
)

// RefreshAccessToken exchanges the refresh token for a new access token.
//
// It returns false immediately, without a backend call, when no refresh token
// is held. A rejected or failed refresh logs the session out locally; that is
// the expected end of a session and is not reported through State.Error.
// Concurrent calls for the same refresh token share one backend call.
func (m *Manager) RefreshAccessToken(ctx context.Context) bool {
	m.mu.Lock()
	if m.closed || m.refreshToken == "" {
		m.mu.Unlock()
		return false
	}
	token := m.refreshToken
	m.mu.Unlock()

	v, _, shared := m.refreshGroup.Do(token, func() (interface{}, error) {
		return m.refresh(ctx, token), nil
	})
	if shared {
		m.metricInc(MetricRefreshCoalesced)
	}
	ok, _ := v.(bool)
	return ok
}

func (m *Manager) refresh(ctx context.Context, token string) bool {
	m.mu.Lock()
	if m.closed || m.refreshToken != token {
		// Rotated by a refresh that finished before this one started.
		ok := m.authenticated
		m.mu.Unlock()
		return ok
	}
	epoch := m.epoch
	startAccess := m.accessToken
	m.inflight++
	m.unlockAndNotify()

	resp, callErr := callBackend(m, ctx, func(c context.Context) (*AuthResponse, error) {
		return m.backend.RefreshToken(c, token)
	})

	m.mu.Lock()
	m.inflight--

	if m.epoch != epoch || m.refreshToken != token || m.accessToken != startAccess {
		ok := m.authenticated
		m.unlockAndNotify()
		m.metricInc(MetricRefreshDiscarded)
		return ok
	}

	if callErr != nil && callerGone(ctx) {
		// The caller gave up; the session itself is not at fault.
		m.unlockAndNotify()
		return false
	}

	failure := refreshFailure(resp, callErr, m.user != nil)
	if failure != nil {
		uid, sid := userIDOf(m.user), m.sessionID
		m.resetLocked(ctx)
		m.unlockAndNotify()

		m.metricInc(MetricRefreshFailure)
		m.metricInc(MetricSessionExpired)
		m.emitAudit(ctx, AuditSessionExpired, false, uid, sid, failure, nil)
		return false
	}

	now := m.clock.Now()
	expiresAt := m.expiryFor(now, resp.AccessToken, resp.ExpiresIn)
	if resp.AccessToken == startAccess && expiresAt.Before(m.expiresAt) {
		// Same token handed back; its lifetime cannot have shrunk.
		expiresAt = m.expiresAt
	}
	m.accessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		m.refreshToken = resp.RefreshToken
	}
	if resp.User != nil {
		m.user = cloneUser(resp.User)
	}
	m.expiresAt = expiresAt
	m.authenticated = true
	m.err = ""
	m.pending = nil
	if m.sessionID == "" {
		m.sessionID = uuid.NewString()
	}
	m.persistLocked(ctx)
	m.armLocked(now)
	uid, sid := userIDOf(m.user), m.sessionID
	m.unlockAndNotify()

	m.metricInc(MetricRefreshSuccess)
	m.emitAudit(ctx, AuditRefreshSuccess, true, uid, sid, nil, func() map[string]string {
		return map[string]string{"rotated": boolString(resp.RefreshToken != "" && resp.RefreshToken != token)}
	})
	return true
}

// refreshFailure classifies a refresh outcome; nil means it can be applied.
func refreshFailure(resp *AuthResponse, callErr error, haveUser bool) error {
	switch {
	case callErr != nil:
		return errors.Join(ErrBackendUnavailable, callErr)
	case resp == nil:
		return errors.Join(ErrBackendUnavailable, errors.New("empty response"))
	case !resp.Success:
		if resp.Error != "" {
			return errors.Join(ErrRefreshRejected, errors.New(resp.Error))
		}
		return ErrRefreshRejected
	case resp.AccessToken == "":
		return errors.Join(ErrBackendUnavailable, errors.New("missing access token"))
	case resp.User == nil && !haveUser:
		return errors.Join(ErrBackendUnavailable, errors.New(msgMissingUserInAuth))
	default:
		return nil
	}
}

// CheckAuth settles whether the held session is still usable.
//
// Without tokens the session is reset. With only a refresh token, or an
// access token inside the refresh threshold, it refreshes. Otherwise the
// access token is verified with the backend and, if that fails, a refresh is
// attempted as a fallback.
func (m *Manager) CheckAuth(ctx context.Context) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if m.accessToken == "" && m.refreshToken == "" {
		if m.pending != nil {
			// A login waiting on its second factor is not a stale session.
			m.mu.Unlock()
			return false
		}
		m.resetLocked(ctx)
		m.unlockAndNotify()
		return false
	}

	now := m.clock.Now()
	if m.accessToken == "" || m.expiringLocked(now) {
		if m.refreshToken == "" {
			m.expireUnrenewableLocked(ctx)
			return false
		}
		m.mu.Unlock()
		return m.RefreshAccessToken(ctx)
	}

	token := m.accessToken
	epoch := m.epoch
	m.inflight++
	m.unlockAndNotify()

	resp, callErr := callBackend(m, ctx, func(c context.Context) (*VerifyResponse, error) {
		return m.backend.VerifyToken(c, token)
	})

	m.mu.Lock()
	m.inflight--

	if m.epoch != epoch || m.accessToken != token {
		ok := m.authenticated
		m.unlockAndNotify()
		return ok
	}
	if callErr != nil && callerGone(ctx) {
		m.unlockAndNotify()
		return false
	}

	if callErr != nil || resp == nil || !resp.Valid || (resp.User == nil && m.user == nil) {
		m.metricInc(MetricTokenVerifyFailure)
		if m.refreshToken == "" {
			m.expireUnrenewableLocked(ctx)
			return false
		}
		m.unlockAndNotify()
		return m.RefreshAccessToken(ctx)
	}

	now = m.clock.Now()
	if resp.User != nil {
		m.user = cloneUser(resp.User)
	}
	if m.expiresAt.IsZero() {
		m.expiresAt = now.Add(m.config.Refresh.FallbackTokenTTL)
	}
	m.authenticated = true
	if m.sessionID == "" {
		m.sessionID = uuid.NewString()
	}
	m.persistLocked(ctx)
	m.armLocked(now)
	uid, sid := userIDOf(m.user), m.sessionID
	m.unlockAndNotify()

	m.metricInc(MetricTokenVerified)
	m.emitAudit(ctx, AuditTokenVerified, true, uid, sid, nil, nil)
	return true
}

// expireUnrenewableLocked ends a session whose access token is unusable and
// which holds no refresh token. It releases mu.
func (m *Manager) expireUnrenewableLocked(ctx context.Context) {
	uid, sid := userIDOf(m.user), m.sessionID
	m.resetLocked(ctx)
	m.unlockAndNotify()

	m.metricInc(MetricSessionExpired)
	m.emitAudit(ctx, AuditSessionExpired, false, uid, sid, ErrNoRefreshToken, nil)
}

// Initialize resumes a persisted session, if any, and re-validates it with
// CheckAuth. A corrupt record is removed and treated as absent.
func (m *Manager) Initialize(ctx context.Context) bool {
	m.hydrate(ctx)
	return m.CheckAuth(ctx)
}

func (m *Manager) hydrate(ctx context.Context) {
	if m.config.Storage.Disabled {
		return
	}

	m.mu.Lock()
	seq := m.writeSeq
	m.mu.Unlock()

	sctx, cancel := m.storageContext(ctx)
	data, err := m.store.Get(sctx, m.config.Storage.Key)
	cancel()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("authsession: session record read failed: %v", err)
		}
		return
	}

	restored, err := decodeRecord(data)

	m.mu.Lock()
	if m.writeSeq != seq || m.accessToken != "" || m.refreshToken != "" || m.pending != nil {
		// The session changed while the record was read; keep the live one.
		m.mu.Unlock()
		return
	}

	if err != nil {
		m.removeRecordLocked(ctx)
		m.unlockAndNotify()

		m.metricInc(MetricSessionCorrupt)
		m.emitAudit(ctx, AuditSessionCorrupt, false, 0, "", err, nil)
		return
	}

	m.user = restored.user
	m.accessToken = restored.accessToken
	m.refreshToken = restored.refreshToken
	m.expiresAt = restored.expiresAt
	if m.expiresAt.IsZero() && m.accessToken != "" {
		if exp, ok := jwt.ExpiresAt(m.accessToken); ok {
			m.expiresAt = exp
		}
	}
	m.authenticated = false
	m.sessionID = uuid.NewString()
	m.epoch++
	uid, sid := userIDOf(m.user), m.sessionID
	m.unlockAndNotify()

	m.metricInc(MetricSessionRestored)
	m.emitAudit(ctx, AuditSessionRestored, true, uid, sid, nil, func() map[string]string {
		return map[string]string{"expires_at": restoredExpiry(restored.expiresAt)}
	})
}

func restoredExpiry(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
