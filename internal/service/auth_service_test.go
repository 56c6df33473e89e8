package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/reimbursement-service/internal/auth"
	"github.com/spec-kit/reimbursement-service/internal/config"
	"github.com/spec-kit/reimbursement-service/internal/domain"
	"github.com/spec-kit/reimbursement-service/internal/repository"
	apperrors "github.com/spec-kit/reimbursement-service/pkg/util"
)

func newCredentialService() (*CredentialService, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	// Minimum bcrypt cost keeps the tests fast.
	svc := NewCredentialService(config.AuthConfig{BcryptCost: 4}, store, zap.NewNop())
	return svc, store
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newCredentialService()
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
		wantCode string
	}{
		{"username too short", "ab", "pass1", apperrors.CodeValidationFailed},
		{"username too long", "abcdefghijklmnopq", "pass1", apperrors.CodeValidationFailed},
		{"password too short", "alice", "p1", apperrors.CodeValidationFailed},
		{"password without digit", "alice", "password", apperrors.CodeValidationFailed},
		{"password with symbol", "alice", "pass1!", apperrors.CodeValidationFailed},
		{"valid", "alice", "pass1", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, Credentials{Username: tc.username, Password: tc.password})
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if got := apperrors.CodeOf(err); got != tc.wantCode {
				t.Fatalf("expected code %s, got %s (err=%v)", tc.wantCode, got, err)
			}
		})
	}
}

func TestRegisterSetsIdentityAndRole(t *testing.T) {
	svc, store := newCredentialService()
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Username: "bob", Password: "abc123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected generated user id")
	}
	if user.Role != domain.RoleEmployee {
		t.Fatalf("expected employee role, got %q", user.Role)
	}
	if user.PasswordHash == "abc123" {
		t.Fatal("password stored in plaintext")
	}
	if err := auth.ComparePassword(user.PasswordHash, "abc123"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}

	stored, err := store.GetUserByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.ID != user.ID {
		t.Fatalf("stored id %s != returned id %s", stored.ID, user.ID)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newCredentialService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Username: "carol", Password: "abc123"}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	_, err := svc.Register(ctx, Credentials{Username: "carol", Password: "xyz789"})
	if got := apperrors.CodeOf(err); got != apperrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %s (err=%v)", got, err)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newCredentialService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Username: "dave", Password: "secret1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	t.Run("success", func(t *testing.T) {
		user, err := svc.Login(ctx, Credentials{Username: "dave", Password: "secret1"})
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if user.Username != "dave" {
			t.Fatalf("unexpected profile: %+v", user)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, Credentials{Username: "dave", Password: "wrong1"})
		if got := apperrors.CodeOf(err); got != apperrors.CodeAuthenticationFailed {
			t.Fatalf("expected AUTHENTICATION_FAILED, got %s", got)
		}
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := svc.Login(ctx, Credentials{Username: "nobody", Password: "secret1"})
		if got := apperrors.CodeOf(err); got != apperrors.CodeNotFound {
			t.Fatalf("expected NOT_FOUND, got %s", got)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Login(ctx, Credentials{Username: "dave"})
		if got := apperrors.CodeOf(err); got != apperrors.CodeValidationFailed {
			t.Fatalf("expected VALIDATION_FAILED, got %s", got)
		}
	})
}
