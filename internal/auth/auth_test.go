package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/aescanero/reelgen/internal/domain"
)

func TestIssueAndParse(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, expiresAt, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty token")
	}
	if remaining := time.Until(expiresAt); remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("Issue() expiry %v from now, want about 1h", remaining)
	}

	userID, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if userID != "user-1" {
		t.Errorf("Parse() user = %q, want %q", userID, "user-1")
	}
}

func TestIssueRequiresUserID(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	if _, _, err := svc.Issue(""); err == nil {
		t.Fatal("Issue(\"\") expected error, got nil")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := NewService("secret-a", time.Hour)
	verifier := NewService("secret-b", time.Hour)

	token, _, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := verifier.Parse(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Parse() error = %v, want ErrUnauthorized", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)

	token, _, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := svc.Parse(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Parse() error = %v, want ErrUnauthorized", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := svc.Parse(tok); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("Parse(%q) error = %v, want ErrUnauthorized", tok, err)
		}
	}
}
