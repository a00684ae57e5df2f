// Package token issues and validates signed, time-bounded session credentials.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/prohmpiriya/test-platform/internal/domain"
)

var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
)

// Claims is the decoded content of a valid token
type Claims struct {
	Subject   string
	Role      domain.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// jwtClaims is the wire form. exp and iat only carry whole seconds, so the
// millisecond instants travel in their own claims and are authoritative.
type jwtClaims struct {
	Role        string `json:"role"`
	IssuedAtMs  int64  `json:"iat_ms"`
	ExpiresAtMs int64  `json:"exp_ms"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens with a server-held secret
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Codec
type Option func(*Codec)

// WithClock overrides the wall clock used for issue and expiry checks
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// WithIssuer stamps and requires the iss claim
func WithIssuer(issuer string) Option {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

// NewCodec creates a codec for the given signing secret
func NewCodec(secret []byte, opts ...Option) *Codec {
	c := &Codec{
		secret: secret,
		now:    time.Now,
		// Expiry is checked here against exp_ms, with no leeway
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs a token for p that expires ttl from now
func (c *Codec) Issue(p domain.Principal, ttl time.Duration) (string, error) {
	if p.Username == "" {
		return "", fmt.Errorf("issue token: empty subject")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("issue token: ttl must be positive, got %s", ttl)
	}

	now := c.now()
	expiresAt := now.Add(ttl)

	claims := jwtClaims{
		Role:        string(p.Role),
		IssuedAtMs:  now.UnixMilli(),
		ExpiresAtMs: expiresAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiry and returns the embedded claims.
// The error is always one of ErrTokenMalformed, ErrTokenInvalidSignature
// or ErrTokenExpired, possibly wrapped.
func (c *Codec) Validate(tokenString string) (*Claims, error) {
	var claims jwtClaims
	_, err := c.parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalidSignature
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, fmt.Errorf("%w: %v", ErrTokenInvalidSignature, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	if c.issuer != "" && claims.Issuer != c.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrTokenInvalidSignature, claims.Issuer)
	}
	if claims.Subject == "" || claims.ExpiresAtMs == 0 {
		return nil, fmt.Errorf("%w: missing subject or expiry", ErrTokenMalformed)
	}

	role := domain.Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenMalformed, claims.Role)
	}

	expiresAt := time.UnixMilli(claims.ExpiresAtMs)
	if !c.now().Before(expiresAt) {
		return nil, ErrTokenExpired
	}

	return &Claims{
		Subject:   claims.Subject,
		Role:      role,
		IssuedAt:  time.UnixMilli(claims.IssuedAtMs),
		ExpiresAt: expiresAt,
	}, nil
}
