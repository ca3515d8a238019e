package websocket

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no authentication token is provided.
	ErrMissingToken = errors.New("missing authentication token")
	// ErrInvalidToken is returned when the token is invalid or expired.
	ErrInvalidToken = errors.New("invalid authentication token")
)

// Authenticator defines the interface for authenticating WebSocket
// connections. Authenticate returns nil on success.
type Authenticator interface {
	Authenticate(r *http.Request) error
}

// JWTAuth implements Authenticator using the same signing key as the REST
// control surface's bearer tokens (internal/infrastructure/api/rest/auth.go),
// so a single login issues a token good for both the control endpoints and
// the strand subscription feed.
type JWTAuth struct {
	signingKey []byte
}

// NewJWTAuth creates a new JWTAuth instance.
func NewJWTAuth(signingKey []byte) *JWTAuth {
	return &JWTAuth{signingKey: signingKey}
}

// Authenticate extracts and validates a bearer token from the request. It
// tries, in order: the Authorization header, the "token" query parameter (for
// browser clients that can't set custom headers on a WebSocket handshake),
// and the Sec-WebSocket-Protocol header ("auth-<token>").
func (a *JWTAuth) Authenticate(r *http.Request) error {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return a.validateToken(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return a.validateToken(token)
	}
	if protocols := r.Header.Get("Sec-WebSocket-Protocol"); protocols != "" {
		for _, p := range strings.Split(protocols, ",") {
			p = strings.TrimSpace(p)
			if strings.HasPrefix(p, "auth-") {
				return a.validateToken(strings.TrimPrefix(p, "auth-"))
			}
		}
	}
	return ErrMissingToken
}

func (a *JWTAuth) validateToken(tokenString string) error {
	if tokenString == "" {
		return ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
			return a.signingKey, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// NoAuth is an Authenticator that allows all connections without
// authentication, for local development against the in-memory fixture.
type NoAuth struct{}

// NewNoAuth creates a new NoAuth instance.
func NewNoAuth() *NoAuth { return &NoAuth{} }

// Authenticate always succeeds.
func (a *NoAuth) Authenticate(r *http.Request) error { return nil }
