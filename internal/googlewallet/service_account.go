package googlewallet

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

const defaultTokenURI = "https://oauth2.googleapis.com/token"

// ServiceAccount is the subset of a Google service-account key file we use.
type ServiceAccount struct {
	ClientEmail  string `json:"client_email"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	TokenURI     string `json:"token_uri"`

	key *rsa.PrivateKey
}

// ParseServiceAccount accepts the key file either as raw JSON or base64 encoded.
func ParseServiceAccount(secret string) (*ServiceAccount, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("service account secret empty")
	}
	raw := []byte(secret)
	if !strings.HasPrefix(secret, "{") {
		decoded, err := base64.StdEncoding.DecodeString(secret)
		if err != nil {
			return nil, fmt.Errorf("service account is neither json nor base64: %w", err)
		}
		raw = decoded
	}

	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("decode service account: %w", err)
	}
	if sa.ClientEmail == "" {
		return nil, errors.New("service account missing client_email")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	sa.key = key
	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}
	return &sa, nil
}

func (sa *ServiceAccount) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if sa.PrivateKeyID != "" {
		token.Header["kid"] = sa.PrivateKeyID
	}
	return token.SignedString(sa.key)
}
