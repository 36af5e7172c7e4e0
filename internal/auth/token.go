package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// EmailTokenTTL is fixed; callers cannot override it.
	EmailTokenTTL = 7 * 24 * time.Hour
)

// Claims is the decoded content of a token.
type Claims struct {
	ID        string
	Subject   string
	Scope     Scope
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type wireClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Codec mints and verifies HMAC-signed JWTs.
type Codec struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// Option customizes a Codec.
type Option func(*Codec)

// WithAccessTTL overrides the default access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the default refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.refreshTTL = ttl
		}
	}
}

// WithClock sets the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec constructs a Codec for the given secret and HMAC algorithm
// (HS256, HS384 or HS512).
func NewCodec(secret, algorithm string, opts ...Option) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: secret is required", ErrConfig)
	}
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrConfig, algorithm)
	}

	c := &Codec{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// Encode signs a token for subject with the given scope. A non-positive ttl
// selects the scope's default lifetime; email-verification tokens always use
// EmailTokenTTL.
func (c *Codec) Encode(subject string, scope Scope, ttl time.Duration) (string, error) {
	switch scope {
	case ScopeAccess:
		if ttl <= 0 {
			ttl = c.accessTTL
		}
	case ScopeRefresh:
		if ttl <= 0 {
			ttl = c.refreshTTL
		}
	case ScopeEmailVerification:
		ttl = EmailTokenTTL
	default:
		return "", fmt.Errorf("%w: cannot encode %s", ErrInvalidToken, scope)
	}

	now := c.now()
	claims := wireClaims{
		Scope: scope.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
}

// CreateAccessToken mints an access token. ttl <= 0 uses the configured default.
func (c *Codec) CreateAccessToken(subject string, ttl time.Duration) (string, error) {
	return c.Encode(subject, ScopeAccess, ttl)
}

// CreateRefreshToken mints a refresh token. ttl <= 0 uses the configured default.
func (c *Codec) CreateRefreshToken(subject string, ttl time.Duration) (string, error) {
	return c.Encode(subject, ScopeRefresh, ttl)
}

// CreateEmailToken mints an unscoped email-verification token.
func (c *Codec) CreateEmailToken(subject string) (string, error) {
	return c.Encode(subject, ScopeEmailVerification, 0)
}

// Decode verifies signature and expiry and returns the claims. Failures wrap
// ErrExpired or ErrInvalidToken.
func (c *Codec) Decode(token string) (Claims, error) {
	var wc wireClaims
	_, err := c.parser.ParseWithClaims(token, &wc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: %w", ErrExpired, err)
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	scope, err := parseScope(wc.Scope)
	if err != nil {
		return Claims{}, err
	}
	if strings.TrimSpace(wc.Subject) == "" {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrMissingSubject)
	}

	claims := Claims{
		ID:      wc.ID,
		Subject: wc.Subject,
		Scope:   scope,
	}
	if wc.IssuedAt != nil {
		claims.IssuedAt = wc.IssuedAt.Time
	}
	if wc.ExpiresAt != nil {
		claims.ExpiresAt = wc.ExpiresAt.Time
	}
	return claims, nil
}

// DecodeAccess returns the subject of a valid access token.
func (c *Codec) DecodeAccess(token string) (string, error) {
	return c.decodeScoped(token, ScopeAccess)
}

// DecodeRefresh returns the subject of a valid refresh token.
func (c *Codec) DecodeRefresh(token string) (string, error) {
	return c.decodeScoped(token, ScopeRefresh)
}

// DecodeEmailToken returns the subject of a valid email-verification token.
// Every failure, expiry included, wraps ErrInvalidEmailToken.
func (c *Codec) DecodeEmailToken(token string) (string, error) {
	email, err := c.decodeScoped(token, ScopeEmailVerification)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEmailToken, err)
	}
	return email, nil
}

func (c *Codec) decodeScoped(token string, want Scope) (string, error) {
	claims, err := c.Decode(token)
	if err != nil {
		return "", err
	}
	if claims.Scope != want {
		return "", fmt.Errorf("%w: got %q, want %q", ErrWrongScope, claims.Scope, want)
	}
	return claims.Subject, nil
}
