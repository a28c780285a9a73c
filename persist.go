package authsession

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const persistedRecordVersion = 1

// persistedRecord is the on-storage form of a session. Only the fields needed
// to resume are kept; loading, error and 2FA state are never persisted.
type persistedRecord struct {
	Version      int    `json:"v"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         *User  `json:"user,omitempty"`
}

type restoredSession struct {
	user         *User
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func encodeRecord(user *User, accessToken, refreshToken string, expiresAt time.Time) ([]byte, error) {
	rec := persistedRecord{
		Version:      persistedRecordVersion,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}
	if !expiresAt.IsZero() {
		rec.ExpiresAt = expiresAt.UnixMilli()
	}
	return json.Marshal(rec)
}

// decodeRecord parses a stored record. Any structural problem is reported as
// ErrStorageCorrupt so the caller can discard the record.
func decodeRecord(data []byte) (restoredSession, error) {
	var rec persistedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return restoredSession{}, fmt.Errorf("%w: %v", ErrStorageCorrupt, err)
	}
	if rec.Version != persistedRecordVersion {
		return restoredSession{}, fmt.Errorf("%w: unsupported version %d", ErrStorageCorrupt, rec.Version)
	}
	if rec.ExpiresAt < 0 {
		return restoredSession{}, fmt.Errorf("%w: negative expiry", ErrStorageCorrupt)
	}

	out := restoredSession{
		user:         rec.User,
		accessToken:  strings.TrimSpace(rec.AccessToken),
		refreshToken: strings.TrimSpace(rec.RefreshToken),
	}
	if rec.ExpiresAt > 0 {
		out.expiresAt = time.UnixMilli(rec.ExpiresAt)
	}
	if out.accessToken == "" && out.refreshToken == "" {
		return restoredSession{}, fmt.Errorf("%w: no tokens", ErrStorageCorrupt)
	}
	return out, nil
}
