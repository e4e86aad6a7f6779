package auth

import (
	"os"
	"strings"
	"testing"
	"time"
)

// TestMain sets JWT_SECRET before any test runs; GenerateJWT panics without it.
func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret-key-32-chars-min!!!") //nolint:errcheck
	os.Exit(m.Run())
}

func TestHashPassword_RoundTrip(t *testing.T) {
	t.Parallel()

	password := "correct horse battery staple"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "" || hash == password {
		t.Fatalf("unexpected hash: %q", hash)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash is not bcrypt format: %q", hash)
	}

	if !VerifyPassword(hash, password) {
		t.Error("VerifyPassword rejected the correct password")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Error("VerifyPassword accepted a wrong password")
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	t.Parallel()

	if VerifyPassword("not-a-bcrypt-hash", "anything") {
		t.Error("VerifyPassword accepted a malformed hash")
	}
}

func TestGenerateAndParseJWT(t *testing.T) {
	t.Parallel()

	token, err := GenerateJWT("user-1", "ws-1")
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", claims.UserID)
	}
	if claims.WorkspaceID != "ws-1" {
		t.Errorf("expected ws-1, got %q", claims.WorkspaceID)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) <= 0 {
		t.Error("token already expired at issue time")
	}
}

func TestParseJWT_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "tampered", token: mustToken(t) + "x"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseJWT(tc.token); err == nil {
				t.Errorf("expected error for %s token", tc.name)
			}
		})
	}
}

func TestParseJWTExpiry(t *testing.T) {
	t.Parallel()

	if got := parseJWTExpiry(""); got != DefaultJWTExpiry*time.Hour {
		t.Errorf("empty expiry: got %v", got)
	}
	if got := parseJWTExpiry("nonsense"); got != DefaultJWTExpiry*time.Hour {
		t.Errorf("invalid expiry: got %v", got)
	}
	if got := parseJWTExpiry("48"); got != 48*time.Hour {
		t.Errorf("explicit expiry: got %v", got)
	}
}

func mustToken(t *testing.T) string {
	t.Helper()
	token, err := GenerateJWT("u", "w")
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}
	return token
}
