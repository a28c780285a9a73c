package authsession

import (
	"context"
	"errors"
	"log"
)

// Logout ends the session locally, then asks the backend to revoke the refresh
// token (and, with revokeAll, every session of the user).
//
// Local teardown happens first and unconditionally. A failed revoke is logged
// and audited but never reverses or blocks the logout.
func (m *Manager) Logout(ctx context.Context, revokeAll bool) {
	m.mu.Lock()
	token := m.refreshToken
	uid, sid := userIDOf(m.user), m.sessionID
	m.resetLocked(ctx)
	m.unlockAndNotify()

	event, metric := AuditLogout, MetricLogout
	if revokeAll {
		event, metric = AuditLogoutAll, MetricLogoutAll
	}
	m.metricInc(metric)
	m.emitAudit(ctx, event, true, uid, sid, nil, nil)

	if token == "" {
		return
	}

	_, err := callBackend(m, ctx, func(c context.Context) (struct{}, error) {
		return struct{}{}, m.backend.Logout(c, token, revokeAll)
	})
	if err != nil {
		log.Printf("authsession: refresh token revoke failed: %v", err)
		m.metricInc(MetricLogoutRevokeFailed)
		m.emitAudit(ctx, AuditLogoutRevokeFailed, false, uid, sid, errors.Join(ErrBackendUnavailable, err), func() map[string]string {
			return map[string]string{"revoke_all": boolString(revokeAll)}
		})
	}
}
