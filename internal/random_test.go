package internal

import (
	"errors"
	"strings"
	"testing"
)

func TestRefreshTokenRoundTrip(t *testing.T) {
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID failed: %v", err)
	}
	secret, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret failed: %v", err)
	}

	token := EncodeRefreshToken(sid, secret)
	gotSID, gotSecret, err := DecodeRefreshToken(token)
	if err != nil {
		t.Fatalf("DecodeRefreshToken failed: %v", err)
	}
	if gotSID != sid || gotSecret != secret {
		t.Fatal("decoded token does not match input")
	}
	if gotSecret.Hash() == ([32]byte{}) {
		t.Fatal("expected non-zero hash")
	}

	parsed, err := ParseSessionID(sid.String())
	if err != nil || parsed != sid {
		t.Fatalf("session id round trip failed: %v", err)
	}
}

func TestDecodeRefreshTokenRejectsWrongSize(t *testing.T) {
	if _, _, err := DecodeRefreshToken("dG9vLXNob3J0"); !errors.Is(err, ErrRefreshTokenMalformed) {
		t.Fatalf("expected ErrRefreshTokenMalformed, got %v", err)
	}
	if _, err := ParseSessionID("short"); !errors.Is(err, ErrSessionIDMalformed) {
		t.Fatalf("expected ErrSessionIDMalformed, got %v", err)
	}
}

func TestNewBackupCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := NewBackupCode()
		if err != nil {
			t.Fatalf("NewBackupCode failed: %v", err)
		}
		if len(code) != 9 || code[4] != '-' {
			t.Fatalf("unexpected shape %q", code)
		}
		for _, c := range strings.ReplaceAll(code, "-", "") {
			if !strings.ContainsRune(backupCodeAlphabet, c) {
				t.Fatalf("unexpected character %q in %q", c, code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Fatalf("backup codes repeat too often: %d unique of 50", len(seen))
	}
}

func TestHashBackupCodeNormalises(t *testing.T) {
	if HashBackupCode(" abcd-2345 ") != HashBackupCode("ABCD-2345") {
		t.Fatal("expected case and whitespace to be ignored")
	}
}
