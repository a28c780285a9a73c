package authsession

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditKind names a session lifecycle transition.
type AuditKind string

const (
	AuditLoginSuccess       AuditKind = "login_success"
	AuditLoginFailure       AuditKind = "login_failure"
	AuditMFARequired        AuditKind = "mfa_required"
	AuditMFASuccess         AuditKind = "mfa_success"
	AuditMFAFailure         AuditKind = "mfa_failure"
	AuditBackupCodeUsed     AuditKind = "backup_code_used"
	AuditBackupCodeFailed   AuditKind = "backup_code_failed"
	AuditMFACancelled       AuditKind = "mfa_cancelled"
	AuditRefreshSuccess     AuditKind = "refresh_success"
	AuditSessionExpired     AuditKind = "session_expired"
	AuditTokenVerified      AuditKind = "token_verified"
	AuditSessionRestored    AuditKind = "session_restored"
	AuditSessionCorrupt     AuditKind = "session_corrupt"
	AuditLogout             AuditKind = "logout"
	AuditLogoutAll          AuditKind = "logout_all"
	AuditLogoutRevokeFailed AuditKind = "logout_revoke_failed"
)

// SessionPhase is which of the three settled session shapes held when an
// event was recorded.
type SessionPhase string

const (
	PhaseSignedOut      SessionPhase = "signed_out"
	PhaseAwaitingFactor SessionPhase = "awaiting_second_factor"
	PhaseSignedIn       SessionPhase = "signed_in"
)

// AuditEvent records one transition of the client session. It never carries
// an access token, a refresh token, a password or a code.
type AuditEvent struct {
	Time      time.Time      `json:"time"`
	Kind      AuditKind      `json:"kind"`
	OK        bool           `json:"ok"`
	UserID    int64          `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Reason    AuditErrorCode `json:"reason,omitempty"`
	// Phase is the session phase observed right after the transition.
	Phase SessionPhase      `json:"phase"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// AuditSink receives events on the Manager's dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// AuditSinkFunc adapts a plain function to AuditSink.
type AuditSinkFunc func(ctx context.Context, event AuditEvent)

// Emit calls f.
func (f AuditSinkFunc) Emit(ctx context.Context, event AuditEvent) {
	f(ctx, event)
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit does nothing.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink hands events to an in-process consumer. Emit waits for room
// unless ctx ends first.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink returns a ChannelSink with the given buffer (minimum 1).
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan AuditEvent, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events is the receive side of the sink.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes each event as one line of JSON.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriterSink returns a sink writing to w. A nil w discards events.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}
