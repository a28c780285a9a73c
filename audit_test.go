package authsession

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authsession/clock"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func buildAuditTestManager(t *testing.T, cfg Config, sink AuditSink, backend Backend) *Manager {
	t.Helper()

	m, err := New().
		WithConfig(cfg).
		WithBackend(backend).
		WithClock(clock.NewFake(testStart)).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return m
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	m := buildAuditTestManager(t, cfg, sink, newFakeBackend())

	m.Login(context.Background(), "a@b.com", "pw")
	m.Logout(context.Background(), false)
	m.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditEnabledSinkReceivesEventWithFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16

	fb := newFakeBackend()
	fb.loginFn = func(context.Context, string, string) (*AuthResponse, error) {
		return &AuthResponse{Success: false, Error: "Invalid credentials"}, nil
	}
	sink := NewChannelSink(16)
	m := buildAuditTestManager(t, cfg, sink, fb)
	defer m.Close()

	m.Login(context.Background(), "a@b.com", "wrong")

	select {
	case ev := <-sink.Events():
		if ev.Kind != AuditLoginFailure {
			t.Fatalf("expected %s, got %s", AuditLoginFailure, ev.Kind)
		}
		if ev.OK {
			t.Fatal("expected failure event")
		}
		if ev.Reason != AuditReasonRejected {
			t.Fatalf("expected reason %q, got %q", AuditReasonRejected, ev.Reason)
		}
		if ev.Phase != PhaseSignedOut {
			t.Fatalf("expected signed-out phase, got %q", ev.Phase)
		}
		if !ev.Time.Equal(testStart.UTC()) {
			t.Fatalf("expected clock time, got %v", ev.Time)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an audit event")
	}
}

func TestAuditRevokeFailureIsRecorded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	fb := newFakeBackend()
	fb.logoutFn = func(context.Context, string, bool) error { return context.DeadlineExceeded }
	sink := NewChannelSink(16)
	m := buildAuditTestManager(t, cfg, sink, fb)

	m.Login(context.Background(), "a@b.com", "pw")
	m.Logout(context.Background(), false)
	m.Close()

	var last AuditEvent
	for len(sink.Events()) > 0 {
		last = <-sink.Events()
	}
	if last.Kind != AuditLogoutRevokeFailed || last.Reason != AuditReasonDeadlineExceeded {
		t.Fatalf("unexpected final event: %+v", last)
	}
	if last.Attrs["revoke_all"] != "false" {
		t.Fatalf("expected revoke_all attribute, got %+v", last.Attrs)
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{Kind: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{Kind: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{Kind: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{Kind: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{Kind: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{Kind: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Time:      time.Now().UTC(),
		Kind:      AuditLoginSuccess,
		OK:        true,
		UserID:    7,
		SessionID: "s-1",
		Phase:     PhaseSignedIn,
	})

	if !buf.Contains(`"kind":"login_success"`) {
		t.Fatal("expected JSON log line to contain the kind")
	}
	if !buf.Contains(`"user_id":7`) {
		t.Fatal("expected JSON log line to contain user id")
	}
	if !buf.Contains(`"phase":"signed_in"`) {
		t.Fatal("expected JSON log line to contain the phase")
	}
	if !strings.HasSuffix(buf.String(), "}\n") {
		t.Fatal("expected newline-terminated JSON line")
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	dispatcher.Emit(context.Background(), AuditEvent{Kind: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{Kind: "e2"})
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32
	cfg.Audit.DropIfFull = false

	fb := newFakeBackend()
	fb.loginFn = func(context.Context, string, string) (*AuthResponse, error) {
		return &AuthResponse{Success: true, AccessToken: "access-secret", RefreshToken: "refresh-secret", ExpiresIn: 900, User: testUser()}, nil
	}
	fb.refreshFn = func(context.Context, string) (*AuthResponse, error) {
		return &AuthResponse{Success: true, AccessToken: "access-secret-2", RefreshToken: "refresh-secret-2", ExpiresIn: 900}, nil
	}

	var buf syncBuffer
	m := buildAuditTestManager(t, cfg, NewJSONWriterSink(&buf), fb)

	m.Login(context.Background(), "a@b.com", "password-secret")
	m.RefreshAccessToken(context.Background())
	m.CheckAuth(context.Background())
	m.Logout(context.Background(), true)
	m.Close()

	for _, secret := range []string{"access-secret", "refresh-secret", "password-secret"} {
		if buf.Contains(secret) {
			t.Fatalf("audit output leaked %q", secret)
		}
	}
	for _, kind := range []AuditKind{AuditLoginSuccess, AuditRefreshSuccess, AuditTokenVerified, AuditLogoutAll} {
		if !buf.Contains(string(kind)) {
			t.Fatalf("expected %s in audit output", kind)
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(string(b.buf), v)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func TestAuditSinkFuncReceivesTwoFactorPhase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	fb := newFakeBackend()
	fb.loginFn = func(context.Context, string, string) (*AuthResponse, error) {
		return &AuthResponse{Requires2FA: true, Challenge: &TwoFactorChallenge{UserID: 7, ChallengeID: "ch-1"}}, nil
	}

	var (
		mu     sync.Mutex
		events []AuditEvent
	)
	sink := AuditSinkFunc(func(_ context.Context, ev AuditEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	m := buildAuditTestManager(t, cfg, sink, fb)

	m.Login(context.Background(), "a@b.com", "pw")
	m.Cancel2FA()
	m.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected two events, got %+v", events)
	}
	if events[0].Kind != AuditMFARequired || events[0].Phase != PhaseAwaitingFactor {
		t.Fatalf("unexpected challenge event: %+v", events[0])
	}
	if events[0].Attrs["challenge_id"] != "ch-1" {
		t.Fatalf("expected challenge id attribute, got %+v", events[0].Attrs)
	}
	if events[1].Kind != AuditMFACancelled || events[1].Phase != PhaseSignedOut {
		t.Fatalf("unexpected cancel event: %+v", events[1])
	}
}

func TestAuditBlockingEmitCountsAbandonedWait(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{Kind: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{Kind: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	dispatcher.Emit(ctx, AuditEvent{Kind: "e3"})

	if dispatcher.Dropped() != 1 {
		t.Fatalf("expected the abandoned event to be counted, got %d", dispatcher.Dropped())
	}
}
