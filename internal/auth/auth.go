// Package auth defines the authentication and authorization collaborators.
// The ingestion core never calls these directly; request-driven entry
// points verify claims upstream before reaching the core.
package auth

import (
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrInvalidToken is returned for unknown or malformed bearer tokens.
	ErrInvalidToken = goerr.New("invalid token")
	// ErrForbidden is returned when claims lack a required permission.
	ErrForbidden = goerr.New("forbidden")
)

// Claims are the verified identity attributes of a caller.
type Claims struct {
	Sub   string
	Email string
	Roles []string
}

// HasRole reports whether the claims carry the given role.
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenVerifier resolves a bearer token into claims.
type TokenVerifier interface {
	VerifyToken(bearer string) (Claims, error)
}

// PermissionChecker decides whether claims grant a permission.
type PermissionChecker interface {
	CheckPermission(claims Claims, permission string) error
}

// StaticVerifier is a map-backed TokenVerifier for development and tests.
// Role names double as permissions in this reference implementation.
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]Claims
}

// NewStaticVerifier creates an empty verifier.
func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{tokens: make(map[string]Claims)}
}

// Register associates a token with claims.
func (v *StaticVerifier) Register(token string, claims Claims) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = claims
}

func (v *StaticVerifier) VerifyToken(bearer string) (Claims, error) {
	token := strings.TrimSpace(strings.TrimPrefix(bearer, "Bearer "))
	if token == "" {
		return Claims{}, goerr.Wrap(ErrInvalidToken, "empty token")
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	claims, ok := v.tokens[token]
	if !ok {
		return Claims{}, goerr.Wrap(ErrInvalidToken, "unknown token")
	}
	return claims, nil
}

func (v *StaticVerifier) CheckPermission(claims Claims, permission string) error {
	if claims.HasRole(permission) {
		return nil
	}
	return goerr.Wrap(ErrForbidden, "missing permission",
		goerr.Value("sub", claims.Sub), goerr.Value("permission", permission))
}
