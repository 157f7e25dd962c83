package token

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token represents an issued login token together with its storable hash.
// Only Hash is ever persisted by the session store.
type Token struct {
	Value  string
	Hash   string
	Expiry time.Time
}

// Service issues and validates login session tokens
type Service struct {
	config *JwtConfig
}

// NewService creates a token service from the given config
func NewService(config *JwtConfig) *Service {
	return &Service{config: config}
}

// CreateToken creates a signed session token for a user
func (s *Service) CreateToken(userID string) (Token, error) {
	expiry := time.Now().UTC().Add(s.config.Expiry)
	claims := jwt.MapClaims{
		"sub": userID,
		"iss": s.config.Issuer,
		"iat": time.Now().UTC().Unix(),
		"exp": expiry.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		slog.Error("Failed to sign JWT claims", "error", err)
		return Token{}, err
	}

	return Token{
		Value:  signed,
		Hash:   HashToken(signed),
		Expiry: expiry,
	}, nil
}

// ParseToken validates a signed token and returns the subject user ID
func (s *Service) ParseToken(tokenStr string) (string, error) {
	parsed, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

// HashToken returns the storable hash of a raw login token. The same
// derivation is used when a client presents a token and when the session
// store prunes tokens, so the two always agree.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.StdEncoding.EncodeToString(sum[:])
}
