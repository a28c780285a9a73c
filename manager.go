package authsession

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/MrEthical07/authsession/clock"
	"github.com/MrEthical07/authsession/jwt"
	"github.com/MrEthical07/authsession/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Manager owns one client-side authentication session.
//
// All session fields live behind mu. Backend calls run without the lock held;
// their results are applied under it in a single step. The refresh token is
// never exposed outside the Manager.
//
// Manager methods are safe for concurrent use.
type Manager struct {
	config    Config
	backend   Backend
	store     storage.Storage
	clock     clock.Clock
	scheduler *refreshScheduler
	audit     *auditDispatcher
	metrics   *Metrics

	refreshGroup singleflight.Group

	mu            sync.Mutex
	user          *User
	accessToken   string
	refreshToken  string
	expiresAt     time.Time
	authenticated bool
	inflight      int
	err           string
	pending       *TwoFactorChallenge
	sessionID     string
	// epoch changes whenever the session is replaced or torn down; in-flight
	// refresh and verify results from an older epoch are dropped.
	epoch  uint64
	closed bool

	// staged is the storage change made by the current lock holder. It is
	// written after mu is released; seq orders writes from racing holders.
	staged   *recordWrite
	writeSeq uint64

	storeMu    sync.Mutex
	flushedSeq uint64

	listeners    []listener
	nextListener uint64
}

// recordWrite is a persisted-record change captured under mu. A nil data
// removes the record.
type recordWrite struct {
	seq  uint64
	ctx  context.Context
	data []byte
}

type listener struct {
	id uint64
	fn func(State)
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	return State{
		User:             cloneUser(m.user),
		AccessToken:      m.accessToken,
		ExpiresAt:        m.expiresAt,
		IsAuthenticated:  m.authenticated,
		IsLoading:        m.inflight > 0,
		Error:            m.err,
		TwoFactorPending: cloneChallenge(m.pending),
		SessionID:        m.sessionID,
	}
}

// Subscribe registers fn to receive a State after every change. fn runs on
// the goroutine that made the change, without any Manager lock held. The
// returned func removes the subscription.
func (m *Manager) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	m.nextListener++
	id := m.nextListener
	m.listeners = append(m.listeners, listener{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// unlockAndNotify releases mu, writes any staged record change and then
// delivers the state as it was at unlock time to every subscriber.
func (m *Manager) unlockAndNotify() {
	w := m.staged
	m.staged = nil
	if len(m.listeners) == 0 {
		m.mu.Unlock()
		m.flush(w)
		return
	}
	st := m.snapshotLocked()
	fns := make([]func(State), len(m.listeners))
	for i, l := range m.listeners {
		fns[i] = l.fn
	}
	m.mu.Unlock()
	m.flush(w)

	for _, fn := range fns {
		fn(st)
	}
}

// ClearError drops the last user-facing error message.
func (m *Manager) ClearError() {
	m.mu.Lock()
	if m.err == "" {
		m.mu.Unlock()
		return
	}
	m.err = ""
	m.unlockAndNotify()
}

// AccessToken returns a bearer token for an outgoing request, refreshing first
// when the current one is inside the refresh threshold.
func (m *Manager) AccessToken(ctx context.Context) (string, bool) {
	m.mu.Lock()
	if !m.authenticated || m.accessToken == "" {
		m.mu.Unlock()
		return "", false
	}
	if !m.expiringLocked(m.clock.Now()) {
		token := m.accessToken
		m.mu.Unlock()
		return token, true
	}
	m.mu.Unlock()

	if !m.RefreshAccessToken(ctx) {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authenticated || m.accessToken == "" {
		return "", false
	}
	return m.accessToken, true
}

// Close cancels the refresh timer and flushes the audit dispatcher. The
// persisted record is left in place so a later process can resume it.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.closed = true
	m.scheduler.Cancel()
	m.mu.Unlock()

	if m.audit != nil {
		m.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped on a full buffer.
func (m *Manager) AuditDropped() uint64 {
	if m == nil || m.audit == nil {
		return 0
	}
	return m.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

// NextRefresh returns when the proactive refresh is scheduled to fire.
func (m *Manager) NextRefresh() (time.Time, bool) {
	return m.scheduler.Pending()
}

// expiringLocked reports whether the held access token is within the refresh
// threshold of its expiry. An unknown expiry is not expiring.
func (m *Manager) expiringLocked(now time.Time) bool {
	if m.expiresAt.IsZero() {
		return false
	}
	return m.expiresAt.Sub(now) <= m.config.Refresh.Threshold
}

// expiryFor picks the expiry of a newly issued access token: expires_in when
// the backend sent one, else the token's own exp claim, else the fallback TTL.
func (m *Manager) expiryFor(now time.Time, accessToken string, expiresIn int64) time.Time {
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}
	if exp, ok := jwt.ExpiresAt(accessToken); ok {
		return exp
	}
	return now.Add(m.config.Refresh.FallbackTokenTTL)
}

// armLocked schedules the next proactive refresh for the held expiry.
//
// Tokens living longer than the threshold refresh at expiresAt-threshold.
// Shorter-lived tokens refresh at half their remaining lifetime, never sooner
// than MinInterval, so a backend issuing short tokens cannot cause a tight
// refresh loop.
func (m *Manager) armLocked(now time.Time) {
	if m.closed || m.refreshToken == "" || m.expiresAt.IsZero() {
		m.scheduler.Cancel()
		return
	}

	lifetime := m.expiresAt.Sub(now)
	fireAt := m.expiresAt.Add(-m.config.Refresh.Threshold)
	if lifetime <= m.config.Refresh.Threshold {
		d := lifetime / 2
		if d < m.config.Refresh.MinInterval {
			d = m.config.Refresh.MinInterval
		}
		fireAt = now.Add(d)
	}

	m.scheduler.Arm(fireAt)
	m.metricInc(MetricRefreshScheduled)
}

func (m *Manager) onRefreshTimer() {
	m.RefreshAccessToken(context.Background())
}

// resetLocked returns the session to the logged-out state: timer cancelled,
// every field cleared and the persisted record removed.
func (m *Manager) resetLocked(ctx context.Context) {
	m.scheduler.Cancel()
	m.user = nil
	m.accessToken = ""
	m.refreshToken = ""
	m.expiresAt = time.Time{}
	m.authenticated = false
	m.err = ""
	m.pending = nil
	m.sessionID = ""
	m.epoch++
	m.removeRecordLocked(ctx)
}

// establishLocked installs a freshly issued session.
func (m *Manager) establishLocked(ctx context.Context, resp *AuthResponse, now time.Time) {
	m.user = cloneUser(resp.User)
	m.accessToken = resp.AccessToken
	m.refreshToken = resp.RefreshToken
	m.expiresAt = m.expiryFor(now, resp.AccessToken, resp.ExpiresIn)
	m.authenticated = true
	m.err = ""
	m.pending = nil
	m.sessionID = uuid.NewString()
	m.epoch++
	m.persistLocked(ctx)
	m.armLocked(now)
}

func (m *Manager) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	// Teardown must reach storage even when the caller's context is done.
	return context.WithTimeout(context.WithoutCancel(ctx), m.config.Backend.Timeout)
}

// persistLocked stages the current session for storage. The write happens
// in unlockAndNotify.
func (m *Manager) persistLocked(ctx context.Context) {
	if m.config.Storage.Disabled {
		return
	}
	if m.accessToken == "" && m.refreshToken == "" {
		m.removeRecordLocked(ctx)
		return
	}

	data, err := encodeRecord(m.user, m.accessToken, m.refreshToken, m.expiresAt)
	if err != nil {
		m.metricInc(MetricPersistFailure)
		log.Print("authsession: session record encoding failed")
		return
	}
	m.stageLocked(ctx, data)
}

// removeRecordLocked stages removal of the persisted record.
func (m *Manager) removeRecordLocked(ctx context.Context) {
	if m.config.Storage.Disabled {
		return
	}
	m.stageLocked(ctx, nil)
}

func (m *Manager) stageLocked(ctx context.Context, data []byte) {
	m.writeSeq++
	m.staged = &recordWrite{seq: m.writeSeq, ctx: ctx, data: data}
}

// flush applies w unless a later change has already reached storage, so a
// slow write from an older session can never overwrite a newer one.
func (m *Manager) flush(w *recordWrite) {
	if w == nil {
		return
	}
	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	if w.seq <= m.flushedSeq {
		return
	}
	m.flushedSeq = w.seq

	sctx, cancel := m.storageContext(w.ctx)
	defer cancel()
	if w.data == nil {
		if err := m.store.Remove(sctx, m.config.Storage.Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			m.metricInc(MetricPersistFailure)
			log.Printf("authsession: session record removal failed: %v", err)
		}
		return
	}
	if err := m.store.Set(sctx, m.config.Storage.Key, w.data); err != nil {
		m.metricInc(MetricPersistFailure)
		log.Printf("authsession: session persist failed: %v", err)
	}
}

// callBackend bounds fn by the configured backend timeout and records its
// latency.
func callBackend[T any](m *Manager, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cctx, cancel := context.WithTimeout(ctx, m.config.Backend.Timeout)
	defer cancel()

	start := time.Now()
	v, err := fn(cctx)
	m.metrics.Observe(MetricBackendLatency, time.Since(start))
	return v, err
}

// callerGone reports whether ctx was cancelled by the caller, as opposed to
// the backend timeout expiring.
func callerGone(ctx context.Context) bool {
	return ctx != nil && ctx.Err() != nil
}

func userIDOf(u *User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}
