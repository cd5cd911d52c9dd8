package auth

import (
	"testing"
	"time"
)

func testConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "chat-server",
		Audience: "chat-clients",
		TTL:      time.Hour,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateToken(cfg, 42, "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.MemberID != 42 || claims.Name != "alice" {
		t.Fatalf("claims = %+v, want member 42 alice", claims)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateToken(cfg, 42, "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	bad := testConfig()
	bad.Secret = []byte("other-secret")
	if _, err := ValidateToken(bad, token); err == nil {
		t.Fatal("token validated with wrong secret")
	}
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateToken(cfg, 42, "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	other := testConfig()
	other.Issuer = "someone-else"
	if _, err := ValidateToken(other, token); err == nil {
		t.Fatal("token validated with wrong issuer")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = -time.Minute

	token, err := GenerateToken(cfg, 42, "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatal("expired token validated")
	}
}
