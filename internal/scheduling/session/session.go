// Package session verifies the signed session tokens that callers present
// when talking to the scheduler API.
package session

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/meetgrid/meetgrid/internal/platform/errors"
)

// verifierEnv holds raw env values before post-parse validation.
type verifierEnv struct {
	Issuer    string `env:"MEETGRID_SESSION_ISSUER"`
	Audience  string `env:"MEETGRID_SESSION_AUDIENCE"`
	PublicKey string `env:"MEETGRID_SESSION_PUBLIC_KEY"`
}

// Config defines how session tokens are verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Claims captures validated session token claims.
type Claims struct {
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	NotBefore time.Time
	IssuedAt  time.Time
	JWTID     string
	UserID    string
}

// sessionClaims is the internal claims type used for JWT parsing.
type sessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// LoadConfigFromEnv reads session verification configuration.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw verifierEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse session env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return Config{}, fmt.Errorf("MEETGRID_SESSION_ISSUER is required")
	}
	if audience == "" {
		return Config{}, fmt.Errorf("MEETGRID_SESSION_AUDIENCE is required")
	}
	if publicKey == "" {
		return Config{}, fmt.Errorf("MEETGRID_SESSION_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode session public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Config{}, fmt.Errorf("session public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// Verify checks a session token and returns its validated claims.
func Verify(token string, cfg Config) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeSessionInvalid, "session token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return Claims{}, errors.New("session verifier is not configured")
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.New(apperrors.CodeSessionInvalid, "session issuer mismatch")
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, apperrors.New(apperrors.CodeSessionInvalid, "session audience mismatch")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeSessionInvalid, "session exp is required")
	}
	if strings.TrimSpace(parsed.UserID) == "" {
		return Claims{}, apperrors.New(apperrors.CodeSessionInvalid, "session user is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeSessionExpired, "session is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return Claims{}, apperrors.New(apperrors.CodeSessionInvalid, "session not active yet")
		}
	}

	claims := Claims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: exp,
		JWTID:     parsed.ID,
		UserID:    parsed.UserID,
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeSessionInvalid, "session signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeSessionInvalid, "session alg is invalid")
	}
	return apperrors.New(apperrors.CodeSessionInvalid, "session token is invalid")
}

func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
