package cli

import (
	"errors"
	"testing"

	"github.com/stratamem/stratamem/internal/auth"
	"github.com/stratamem/stratamem/internal/config"
)

func TestAuthorizeOpenWithoutRegistry(t *testing.T) {
	cfg := &config.Config{}
	if err := authorize(cfg, ""); err != nil {
		t.Fatalf("empty registry should leave reads open: %v", err)
	}
}

func TestAuthorizeChecksTokenAndRole(t *testing.T) {
	cfg := &config.Config{
		Auth: config.AuthConfig{
			Tokens: map[string]config.TokenClaims{
				"reader-token": {Sub: "alice", Roles: []string{"memory.read"}},
				"other-token":  {Sub: "bob", Roles: []string{"memory.write"}},
			},
		},
	}

	if err := authorize(cfg, "reader-token"); err != nil {
		t.Errorf("registered reader rejected: %v", err)
	}
	if err := authorize(cfg, "Bearer reader-token"); err != nil {
		t.Errorf("bearer prefix not accepted: %v", err)
	}
	if err := authorize(cfg, "unknown"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	if err := authorize(cfg, "other-token"); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("expected ErrForbidden for missing role, got %v", err)
	}
	if err := authorize(cfg, ""); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for empty token, got %v", err)
	}
}
