package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "CUSTOMER", 15, time.Now())
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	claims, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.UserID != 42 || claims.Role != "CUSTOMER" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	good, _ := NewAccessToken("s3cret", 42, "CUSTOMER", 15, time.Now())
	expired, _ := NewAccessToken("s3cret", 42, "CUSTOMER", 15, time.Now().Add(-time.Hour))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "42"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "ADMIN"}).SignedString([]byte("s3cret"))

	cases := map[string]struct{ secret, raw string }{
		"wrong secret": {"other", good.Token},
		"expired":      {"s3cret", expired.Token},
		"alg none":     {"s3cret", none},
		"no subject":   {"s3cret", noSub},
		"garbage":      {"s3cret", "not.a.jwt"},
	}
	for name, tc := range cases {
		if _, err := ParseAccessToken(tc.secret, tc.raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: error = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestRefreshToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	a, err := NewRefreshToken(7, now)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	b, _ := NewRefreshToken(7, now)
	if len(a.Raw) != 96 || a.Raw == b.Raw {
		t.Fatalf("raw tokens %q %q", a.Raw, b.Raw)
	}
	if !a.Exp.Equal(now.AddDate(0, 0, 7)) {
		t.Fatalf("exp = %v", a.Exp)
	}
	if HashRefreshRaw(a.Raw) == HashRefreshRaw(b.Raw) || len(HashRefreshRaw(a.Raw)) != 64 {
		t.Fatal("hash not distinct or not sha256 hex")
	}
}

func TestPasswords(t *testing.T) {
	if _, err := HashPassword("12345", bcrypt.MinCost); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("short password error = %v", err)
	}
	h, err := HashPassword("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(h, "correct horse") || VerifyPassword(h, "wrong") {
		t.Fatal("VerifyPassword mismatch")
	}
}
