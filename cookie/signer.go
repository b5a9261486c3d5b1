package cookie

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrCookieMissing is returned when the request carries no identity cookie.
	ErrCookieMissing = errors.New("cookie: missing")
	// ErrCookieInvalid is returned for a cookie value that fails verification.
	ErrCookieInvalid = errors.New("cookie: invalid")
	// ErrCookieExpired marks a correctly signed value past its exp claim. It
	// always comes wrapped together with ErrCookieInvalid.
	ErrCookieExpired = errors.New("cookie: expired")
)

// Codec turns a session id into a cookie value and back. Decode returns
// ErrCookieInvalid for anything it did not produce itself, and may add
// ErrCookieExpired when only the value's age is wrong.
type Codec interface {
	Encode(id string) (string, error)
	Decode(value string) (string, error)
}

// SignerConfig configures a [Signer].
type SignerConfig struct {
	Secret []byte
	Issuer string
	// MaxAge bounds how long a signed value is accepted. Zero disables the
	// exp claim.
	MaxAge time.Duration
	Leeway time.Duration
	// Now is the clock used for iat, exp and verification. Defaults to time.Now.
	Now func() time.Time
}

// Signer is the default [Codec]: an HS256 JWT whose sid claim is the session id.
type Signer struct {
	config SignerConfig
	now    func() time.Time
}

type sessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewSigner validates cfg and returns a Signer. The secret is copied.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("cookie: hs256 requires a secret")
	}
	if cfg.MaxAge < 0 {
		return nil, errors.New("cookie: invalid MaxAge")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("cookie: invalid leeway")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Signer{config: cfg, now: now}, nil
}

// Encode signs id into a compact JWT.
func (s *Signer) Encode(id string) (string, error) {
	if id == "" {
		return "", errors.New("cookie: empty session id")
	}

	now := s.now()
	claims := sessionClaims{
		SID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   s.config.Issuer,
		},
	}
	if s.config.MaxAge > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.config.MaxAge))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
}

// Decode verifies value and returns the session id it carries. Every
// verification failure wraps ErrCookieInvalid.
func (s *Signer) Decode(value string) (string, error) {
	if value == "" {
		return "", ErrCookieMissing
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}
	if s.config.MaxAge > 0 {
		options = append(options, jwt.WithExpirationRequired())
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(value, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return s.config.Secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", fmt.Errorf("%w: %w: %v", ErrCookieInvalid, ErrCookieExpired, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCookieInvalid, err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.SID == "" {
		return "", fmt.Errorf("%w: %v", ErrCookieInvalid, jwt.ErrTokenInvalidClaims)
	}
	return claims.SID, nil
}
