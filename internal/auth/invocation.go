package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// InvocationSigner issues and validates HS256 tokens that carry an
// invocation record. The internal HTTP entrypoint accepts nothing else.
type InvocationSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewInvocationSigner creates a signer.
// secret must be at least 32 characters for HS256 security.
func NewInvocationSigner(secret, issuer string, ttl time.Duration) *InvocationSigner {
	return &InvocationSigner{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

type invocationClaims struct {
	jwt.RegisteredClaims
	Invocation domain.Invocation `json:"inv"`
}

// Sign returns a token embedding inv.
func (s *InvocationSigner) Sign(inv domain.Invocation) (string, error) {
	if err := inv.Validate(); err != nil {
		return "", err
	}
	now := s.now()
	claims := invocationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(inv.Kind),
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Invocation: inv,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign invocation: %w", err)
	}
	return signed, nil
}

// Parse validates the token and returns the embedded invocation.
// Errors wrap domain.ErrUnauthorized, or domain.ErrValidation when the
// signature is fine but the record is not.
func (s *InvocationSigner) Parse(token string) (domain.Invocation, error) {
	if token == "" {
		return domain.Invocation{}, fmt.Errorf("%w: token is empty", domain.ErrUnauthorized)
	}

	parsed, err := jwt.ParseWithClaims(token, &invocationClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return domain.Invocation{}, fmt.Errorf("%w: parse token: %w", domain.ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(*invocationClaims)
	if !ok || !parsed.Valid {
		return domain.Invocation{}, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthorized)
	}

	if err := claims.Invocation.Validate(); err != nil {
		return domain.Invocation{}, err
	}
	return claims.Invocation, nil
}
