package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

// SessionID identifies one server-side refresh session.
type SessionID [16]byte

const (
	refreshSecretSize   = 32
	refreshTokenRawSize = len(SessionID{}) + refreshSecretSize

	backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	backupCodeGroup    = 4
)

var (
	ErrRefreshTokenMalformed = errors.New("malformed refresh token")
	ErrSessionIDMalformed    = errors.New("malformed session id")
)

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil || len(raw) != len(sid) {
		return sid, ErrSessionIDMalformed
	}

	copy(sid[:], raw)
	return sid, nil
}

// RefreshSecret is the rotating half of a refresh token. Only its hash is
// stored server side.
type RefreshSecret [refreshSecretSize]byte

func NewRefreshSecret() (RefreshSecret, error) {
	var secret RefreshSecret
	_, err := rand.Read(secret[:])
	return secret, err
}

// Hash returns the value stored in place of the secret.
func (s RefreshSecret) Hash() [32]byte {
	return sha256.Sum256(s[:])
}

// EncodeRefreshToken packs a session ID and secret into an opaque base64url
// token.
func EncodeRefreshToken(sid SessionID, secret RefreshSecret) string {
	var raw [refreshTokenRawSize]byte
	copy(raw[:len(sid)], sid[:])
	copy(raw[len(sid):], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

// DecodeRefreshToken splits a token produced by EncodeRefreshToken.
func DecodeRefreshToken(token string) (SessionID, RefreshSecret, error) {
	var (
		sid    SessionID
		secret RefreshSecret
	)

	if len(token) != base64.RawURLEncoding.EncodedLen(refreshTokenRawSize) {
		return sid, secret, ErrRefreshTokenMalformed
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != refreshTokenRawSize {
		return sid, secret, ErrRefreshTokenMalformed
	}

	copy(sid[:], raw[:len(sid)])
	copy(secret[:], raw[len(sid):])
	return sid, secret, nil
}

// NewBackupCode returns a one-time code shaped XXXX-XXXX from an alphabet
// without easily confused characters.
func NewBackupCode() (string, error) {
	var b strings.Builder
	b.Grow(2*backupCodeGroup + 1)

	max := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := 0; i < 2*backupCodeGroup; i++ {
		if i == backupCodeGroup {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(backupCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// HashBackupCode normalises and hashes a backup code for storage.
func HashBackupCode(code string) [32]byte {
	return sha256.Sum256([]byte(strings.ToUpper(strings.TrimSpace(code))))
}
