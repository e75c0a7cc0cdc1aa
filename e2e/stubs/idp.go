package stubs

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The gateway under test must be started with the matching
// --idtoken-issuer and --idtoken-hmac-secret.
const (
	defaultIDTokenIssuer = "https://idp.e2e.local"
	defaultIDTokenSecret = "e2e-idtoken-secret"
	idTokenAudience      = "healthbff"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// IDToken signs the ID token the identity provider would return for subject.
func IDToken(subject string) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    envOr("BFF_IDTOKEN_ISSUER", defaultIDTokenIssuer),
		Audience:  jwt.ClaimStrings{idTokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}).SignedString([]byte(envOr("BFF_IDTOKEN_SECRET", defaultIDTokenSecret)))
}
