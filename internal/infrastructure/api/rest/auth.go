package rest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// controlAuth issues and validates the short-lived bearer tokens gating the
// control endpoints, pairing golang-jwt (session tokens) with bcrypt (the
// admin password hash, never the plaintext password itself).
type controlAuth struct {
	signingKey []byte
	adminPasswordHash string
}

func newControlAuth(signingKey []byte, adminPasswordHash string) *controlAuth {
	return &controlAuth{signingKey: signingKey, adminPasswordHash: adminPasswordHash}
}

type controlClaims struct {
	jwt.RegisteredClaims
}

// checkPassword reports whether password matches the configured admin hash.
// An empty configured hash means the control endpoint is unconfigured and
// always rejects login, rather than silently accepting any password.
func (a *controlAuth) checkPassword(password string) bool {
	if a.adminPasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.adminPasswordHash), []byte(password)) == nil
}

// issue mints a bearer token valid for ttl.
func (a *controlAuth) issue(ttl time.Duration, now time.Time) (string, error) {
	claims := controlClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "cil-admin",
			IssuedAt: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.signingKey)
}

// validate reports whether token is a well-formed, unexpired token signed
// with this server's key.
func (a *controlAuth) validate(token string) bool {
	parsed, err := jwt.ParseWithClaims(token, &controlClaims{}, func(t *jwt.Token) (any, error) {
			return a.signingKey, nil
	})
	return err == nil && parsed.Valid
}
