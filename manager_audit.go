package authsession

import (
	"context"
	"errors"

	"github.com/MrEthical07/authsession/storage"
)

// AuditErrorCode is the stable failure classification carried in
// AuditEvent.Reason.
type AuditErrorCode string

const (
	AuditReasonValidation       AuditErrorCode = "validation"
	AuditReasonNoChallenge      AuditErrorCode = "no_pending_challenge"
	AuditReasonRejected         AuditErrorCode = "credentials_rejected"
	AuditReasonRefreshRejected  AuditErrorCode = "refresh_rejected"
	AuditReasonNoRefreshToken   AuditErrorCode = "no_refresh_token"
	AuditReasonStorageCorrupt   AuditErrorCode = "storage_corrupt"
	AuditReasonStorageFailure   AuditErrorCode = "storage_failure"
	AuditReasonUnavailable      AuditErrorCode = "backend_unavailable"
	AuditReasonDeadlineExceeded AuditErrorCode = "deadline_exceeded"
	AuditReasonInternal         AuditErrorCode = "internal_error"
)

// emitAudit hands an event to the dispatcher. It must be called without mu
// held; the phase is read after the transition has been applied.
func (m *Manager) emitAudit(
	ctx context.Context,
	kind AuditKind,
	ok bool,
	userID int64,
	sessionID string,
	err error,
	attrs func() map[string]string,
) {
	if m == nil || m.audit == nil {
		return
	}

	event := AuditEvent{
		Time:      m.clock.Now().UTC(),
		Kind:      kind,
		OK:        ok,
		UserID:    userID,
		SessionID: sessionID,
		Reason:    auditErrorCode(err),
		Phase:     m.phase(),
	}
	if attrs != nil {
		event.Attrs = attrs()
	}
	m.audit.Emit(ctx, event)
}

func (m *Manager) phase() SessionPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.authenticated:
		return PhaseSignedIn
	case m.pending != nil:
		return PhaseAwaitingFactor
	default:
		return PhaseSignedOut
	}
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrEmailRequired),
		errors.Is(err, ErrPasswordRequired),
		errors.Is(err, ErrInvalidTOTPCode),
		errors.Is(err, ErrInvalidBackupCode):
		return AuditReasonValidation
	case errors.Is(err, ErrNoPendingChallenge):
		return AuditReasonNoChallenge
	case errors.Is(err, ErrCredentialsRejected):
		return AuditReasonRejected
	case errors.Is(err, ErrRefreshRejected):
		return AuditReasonRefreshRejected
	case errors.Is(err, ErrNoRefreshToken):
		return AuditReasonNoRefreshToken
	case errors.Is(err, ErrStorageCorrupt):
		return AuditReasonStorageCorrupt
	case errors.Is(err, context.DeadlineExceeded):
		return AuditReasonDeadlineExceeded
	case errors.Is(err, ErrBackendUnavailable):
		return AuditReasonUnavailable
	case errors.Is(err, storage.ErrInvalidKey),
		errors.Is(err, storage.ErrRedisUnavailable):
		return AuditReasonStorageFailure
	default:
		return AuditReasonInternal
	}
}
