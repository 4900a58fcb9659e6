package auth

import (
	"strings"
	"testing"
	"time"

	"codeverse/internal/entity"
	"codeverse/internal/quota"
)

func TestNewManagerAndTokenLifecycle(t *testing.T) {
	mgr, err := NewManager("test-secret", "issuer", time.Minute*30)
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}

	email := "user@example.com"
	user := &entity.DbUser{ID: 42, Email: &email, Role: entity.UserRoleAdmin, Tier: quota.TierPro}
	token, expiresAt, err := mgr.GenerateToken(user)
	if err != nil {
		t.Fatalf("unexpected error generating token: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if expiresAt.Before(time.Now()) {
		t.Fatal("expected future expiry time")
	}

	claims, err := mgr.ParseToken(token)
	if err != nil {
		t.Fatalf("unexpected error parsing token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id %d, got %d", user.ID, claims.UserID)
	}
	if !strings.EqualFold(claims.Email, email) {
		t.Fatalf("expected email %s, got %s", email, claims.Email)
	}
	if claims.Role != user.Role {
		t.Fatalf("expected role %s, got %s", user.Role, claims.Role)
	}
	if claims.Tier != user.Tier {
		t.Fatalf("expected tier %s, got %s", user.Tier, claims.Tier)
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("   ", "", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	mgr, err := NewManager("test-secret", "issuer", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}
	other, err := NewManager("another-secret", "issuer", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}

	user := &entity.DbUser{ID: 1, Tier: quota.TierFree, Role: entity.UserRoleUser}
	token, _, err := other.GenerateToken(user)
	if err != nil {
		t.Fatalf("unexpected error generating token: %v", err)
	}

	if _, err := mgr.ParseToken(token); err == nil {
		t.Fatal("expected token signed with a different secret to be rejected")
	}
}
