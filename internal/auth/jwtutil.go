package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	b64 = base64.RawURLEncoding

	// ErrInvalidToken covers malformed tokens and signature mismatches.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when the exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the fields the service reads back from its own tokens.
type Claims struct {
	Subject   string
	Version   int
	ExpiresAt time.Time
}

// SignHS256 creates a compact JWT string using HS256.
func SignHS256(claims map[string]any, secret []byte) (string, error) {
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	h, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := b64.EncodeToString(h) + "." + b64.EncodeToString(c)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(unsigned))
	sig := mac.Sum(nil)
	return unsigned + "." + b64.EncodeToString(sig), nil
}

// ParseAndVerifyHS256 verifies token signature and returns claims.
func ParseAndVerifyHS256(token string, secret []byte) (map[string]any, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}
	unsigned := parts[0] + "." + parts[1]
	sigBytes, err := b64.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidToken
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(unsigned))
	if !hmac.Equal(sigBytes, mac.Sum(nil)) {
		return nil, ErrInvalidToken
	}
	payload, err := b64.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseClaims verifies the signature and expiry of token at now.
func ParseClaims(token string, secret []byte, now time.Time) (Claims, error) {
	raw, err := ParseAndVerifyHS256(token, secret)
	if err != nil {
		return Claims{}, err
	}
	sub, _ := raw["sub"].(string)
	if sub == "" {
		return Claims{}, ErrInvalidToken
	}
	exp, ok := raw["exp"].(float64)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	expiresAt := time.Unix(int64(exp), 0)
	if !now.Before(expiresAt) {
		return Claims{}, ErrTokenExpired
	}
	ver, _ := raw["ver"].(float64)
	return Claims{Subject: sub, Version: int(ver), ExpiresAt: expiresAt}, nil
}
