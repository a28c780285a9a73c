package jwt

import (
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func TestInspectReadsExpiryWithoutKey(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: gjwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString([]byte("some-key-the-client-never-sees-0"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	claims, err := Inspect(signed)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if claims.Subject != "42" {
		t.Fatalf("expected subject 42, got %q", claims.Subject)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("expected exp %v, got %v", exp, claims.ExpiresAt)
	}

	got, ok := ExpiresAt(signed)
	if !ok || !got.Equal(exp) {
		t.Fatalf("ExpiresAt mismatch: %v %v", got, ok)
	}
}

func TestInspectExpiredTokenStillDecodes(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(exp)})
	signed, _ := tok.SignedString([]byte("0123456789abcdef0123456789abcdef"))

	got, ok := ExpiresAt(signed)
	if !ok || !got.Equal(exp) {
		t.Fatalf("expected past expiry to be reported, got %v %v", got, ok)
	}
}

func TestInspectWithoutExp(t *testing.T) {
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.RegisteredClaims{Subject: "1"})
	signed, _ := tok.SignedString([]byte("0123456789abcdef0123456789abcdef"))

	if _, ok := ExpiresAt(signed); ok {
		t.Fatal("expected no expiry")
	}
}

func TestInspectRejectsOpaqueTokens(t *testing.T) {
	for _, in := range []string{"", "opaque-token", "a.b", "not.a.jwt", "a.b.c.d"} {
		if _, err := Inspect(in); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Inspect(%q): expected ErrMalformed, got %v", in, err)
		}
	}
}
