package facilitator

import (
	"crypto/ecdsa"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource mints a short-lived bearer credential scoped to one
// method+host+path combination.
type TokenSource interface {
	Token(method, host, path string) (string, error)
}

// tokenTTL bounds credential lifetime; facilitator calls finish well inside it.
const tokenTTL = 2 * time.Minute

// SigningTokenSource mints ES256 JWTs from a locally held EC key.
type SigningTokenSource struct {
	KeyID string
	key   *ecdsa.PrivateKey
	now   func() time.Time
}

// NewTokenSource parses an EC private key in PEM form (SEC1 or PKCS#8).
func NewTokenSource(keyID, pemData string) (*SigningTokenSource, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("facilitator key is not PEM encoded")
	}

	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pemData))
	if err != nil {
		return nil, fmt.Errorf("parse facilitator key: %w", err)
	}

	return &SigningTokenSource{KeyID: keyID, key: key, now: time.Now}, nil
}

// Token returns a bearer credential valid for roughly two minutes, bound to
// the exact request it will authenticate.
func (s *SigningTokenSource) Token(method, host, path string) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{
		"sub": s.KeyID,
		"iss": "paygate",
		"nbf": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
		"uri": fmt.Sprintf("%s %s%s", method, host, path),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.KeyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign facilitator token: %w", err)
	}
	return signed, nil
}
