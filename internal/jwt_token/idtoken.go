// Package jwttoken verifies the ID tokens the identity provider hands the
// browser after an external login. The gateway only trusts a subject it can
// read out of a token whose signature, issuer, audience and expiry check out.
package jwttoken

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/requestcontext"
)

const (
	ReasonTokenInvalid = "TOKEN_INVALID"
	ReasonTokenExpired = "TOKEN_EXPIRED"
)

// Claims are the ID token claims the login flow reads.
type Claims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks ID tokens against one issuer, audience and key.
type Verifier struct {
	key      any
	methods  []string
	issuer   string
	audience string
	leeway   time.Duration
}

type Option func(*Verifier)

// WithLeeway tolerates clock skew on exp, nbf and iat.
func WithLeeway(d time.Duration) Option {
	return func(v *Verifier) { v.leeway = d }
}

// NewHMACVerifier verifies tokens signed with a shared secret.
func NewHMACVerifier(secret, issuer, audience string, opts ...Option) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("id token secret is required")
	}
	return newVerifier([]byte(secret), []string{"HS256", "HS384", "HS512"}, issuer, audience, opts)
}

// NewPublicKeyVerifier verifies tokens signed by the IdP's RSA or ECDSA key,
// given as a PEM encoded public key or certificate.
func NewPublicKeyVerifier(pemBytes []byte, issuer, audience string, opts ...Option) (*Verifier, error) {
	if rsaKey, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes); err == nil {
		return newVerifier(rsaKey, []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}, issuer, audience, opts)
	}
	if ecKey, err := jwt.ParseECPublicKeyFromPEM(pemBytes); err == nil {
		return newVerifier(ecKey, []string{"ES256", "ES384", "ES512"}, issuer, audience, opts)
	}
	return nil, errors.New("id token public key is neither RSA nor ECDSA PEM")
}

func newVerifier(key any, methods []string, issuer, audience string, opts []Option) (*Verifier, error) {
	if issuer == "" || audience == "" {
		return nil, errors.New("id token issuer and audience are required")
	}
	v := &Verifier{
		key:      key,
		methods:  methods,
		issuer:   issuer,
		audience: audience,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify parses raw and returns its claims. Time checks use the request
// clock carried by ctx. Every failure is an unauthorized domain error.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(v.methods),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "id token has expired").WithReason(ReasonTokenExpired)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid id token").WithReason(ReasonTokenInvalid)
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid id token").WithReason(ReasonTokenInvalid)
	}
	claims.Subject = strings.TrimSpace(claims.Subject)
	if claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "id token has no subject").WithReason(ReasonTokenInvalid)
	}
	return claims, nil
}

// Signer mints ID tokens the way the IdP does. The gateway never signs; it is
// used by stand-in identity providers in tests and local runs.
type Signer struct {
	method   jwt.SigningMethod
	key      crypto.PrivateKey
	issuer   string
	audience string
}

func NewHMACSigner(secret, issuer, audience string) *Signer {
	return &Signer{method: jwt.SigningMethodHS256, key: []byte(secret), issuer: issuer, audience: audience}
}

// NewSigner signs with an arbitrary method and key, for example RS256 with
// an *rsa.PrivateKey.
func NewSigner(method jwt.SigningMethod, key crypto.PrivateKey, issuer, audience string) *Signer {
	return &Signer{method: method, key: key, issuer: issuer, audience: audience}
}

// Sign issues a token for subject valid from now for ttl.
func (s *Signer) Sign(subject, email string, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(s.method, Claims{
		Email:         email,
		EmailVerified: email != "",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign id token: %w", err)
	}
	return signed, nil
}
