package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// DefaultTTL applies when no explicit token lifetime is configured.
const DefaultTTL = 30 * time.Minute

const issuer = "mailhub"

// ErrMissingSubject indicates a structurally valid token without a subject.
var ErrMissingSubject = errors.New("token has no subject")

// Claims defines the JWT payload. The subject carries the username the token
// was issued for.
type Claims struct {
	jwtlib.RegisteredClaims
}

// GenerateToken issues a signed HS256 JWT for the subject with the provided
// secret and ttl. A non-positive ttl falls back to DefaultTTL.
func GenerateToken(subject, secret string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrMissingSubject
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse validates a token and extracts its claims. The signature is checked
// before any claim is interpreted, the signing method is restricted to HS256,
// and expiry is enforced by the library. Distinct failures (malformed payload,
// bad signature, expired token, missing subject) surface as distinct errors so
// callers can collapse them into a single outward response.
func Parse(token string, secret string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}
