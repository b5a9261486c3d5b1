package cookie

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newTestSigner(t *testing.T, cfg SignerConfig) *Signer {
	t.Helper()
	if cfg.Secret == nil {
		cfg.Secret = []byte("0123456789abcdef0123456789abcdef")
	}
	s, err := NewSigner(cfg)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return s
}

func TestSignerRoundTrip(t *testing.T) {
	s := newTestSigner(t, SignerConfig{Issuer: "sessiond", MaxAge: time.Hour})

	value, err := s.Encode("abc123")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(value, "abc123") {
		t.Fatal("signed value should not carry the raw id in the clear")
	}

	id, err := s.Decode(value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("expected abc123, got %q", id)
	}
}

func TestNewSignerRejectsBadConfig(t *testing.T) {
	tests := map[string]SignerConfig{
		"empty secret":   {},
		"negative age":   {Secret: []byte("k"), MaxAge: -time.Second},
		"leeway too big": {Secret: []byte("k"), Leeway: time.Hour},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewSigner(cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func TestDecodeRejectsTamperedValues(t *testing.T) {
	s := newTestSigner(t, SignerConfig{})
	other := newTestSigner(t, SignerConfig{Secret: []byte("another-secret-another-secret-00")})

	good, err := s.Encode("abc123")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	foreign, err := other.Encode("abc123")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	noneTok := gjwt.NewWithClaims(gjwt.SigningMethodNone, sessionClaims{SID: "abc123"})
	unsigned, err := noneTok.SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	tests := map[string]string{
		"raw id":           "abc123",
		"garbage":          "not.a.jwt",
		"foreign secret":   foreign,
		"forged signature": good[:strings.LastIndex(good, ".")+1] + "AAAA",
		"alg none":         unsigned,
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Decode(value); !errors.Is(err, ErrCookieInvalid) {
				t.Fatalf("expected ErrCookieInvalid, got %v", err)
			}
		})
	}
}

func TestDecodeEmptyIsMissing(t *testing.T) {
	s := newTestSigner(t, SignerConfig{})
	if _, err := s.Decode(""); !errors.Is(err, ErrCookieMissing) {
		t.Fatalf("expected ErrCookieMissing, got %v", err)
	}
}

func TestDecodeRejectsExpiredAndEmptySID(t *testing.T) {
	s := newTestSigner(t, SignerConfig{MaxAge: time.Minute})

	issued := time.Now().Add(-time.Hour)
	s.now = func() time.Time { return issued }
	old, err := s.Encode("abc123")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s.now = time.Now
	_, err = s.Decode(old)
	if !errors.Is(err, ErrCookieInvalid) || !errors.Is(err, ErrCookieExpired) {
		t.Fatalf("expected expired value to be invalid and expired, got %v", err)
	}

	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, sessionClaims{RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	empty, err := tok.SignedString(s.config.Secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Decode(empty); !errors.Is(err, ErrCookieInvalid) {
		t.Fatalf("expected empty sid to be invalid, got %v", err)
	}
}

func TestSignerUsesConfiguredClock(t *testing.T) {
	issued := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	now := issued
	s := newTestSigner(t, SignerConfig{MaxAge: time.Hour, Now: func() time.Time { return now }})

	value, err := s.Encode("abc123")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	claims := &sessionClaims{}
	if _, _, err := gjwt.NewParser().ParseUnverified(value, claims); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !claims.IssuedAt.Time.Equal(issued) || !claims.ExpiresAt.Time.Equal(issued.Add(time.Hour)) {
		t.Fatalf("claims ignore the clock: iat=%v exp=%v", claims.IssuedAt, claims.ExpiresAt)
	}

	now = issued.Add(59 * time.Minute)
	if id, err := s.Decode(value); err != nil || id != "abc123" {
		t.Fatalf("expected valid value before expiry, got %q %v", id, err)
	}

	now = issued.Add(2 * time.Hour)
	if _, err := s.Decode(value); !errors.Is(err, ErrCookieExpired) {
		t.Fatalf("expected ErrCookieExpired after the clock moved, got %v", err)
	}
}

func TestTamperedValueIsNotExpired(t *testing.T) {
	s := newTestSigner(t, SignerConfig{MaxAge: time.Hour})
	if _, err := s.Decode("not-a-token"); errors.Is(err, ErrCookieExpired) {
		t.Fatalf("garbage must not be reported as expired: %v", err)
	}
}

func TestDecodeEnforcesIssuer(t *testing.T) {
	s := newTestSigner(t, SignerConfig{Issuer: "sessiond"})
	other := newTestSigner(t, SignerConfig{Issuer: "elsewhere"})

	value, err := other.Encode("abc123")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := s.Decode(value); !errors.Is(err, ErrCookieInvalid) {
		t.Fatalf("expected issuer mismatch to be invalid, got %v", err)
	}
}

func TestSignerCopiesSecret(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	s := newTestSigner(t, SignerConfig{Secret: secret})
	value, err := s.Encode("abc123")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	secret[0] = 'X'
	if _, err := s.Decode(value); err != nil {
		t.Fatalf("mutating the caller's secret must not affect the signer: %v", err)
	}
}
