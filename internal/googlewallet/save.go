package googlewallet

import (
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
)

const saveURLPrefix = "https://pay.google.com/gp/v/save/"

type savePayload struct {
	GenericClasses []genericClass  `json:"genericClasses"`
	GenericObjects []GenericObject `json:"genericObjects"`
}

type genericClass struct {
	ID string `json:"id"`
}

// SaveURL returns an "add to Google Wallet" link carrying the customer's object.
func SaveURL(account *ServiceAccount, issuerID string, origins []string, business domain.Business, style domain.CardStyle, c domain.Customer) (string, error) {
	obj := NewGenericObject(issuerID, business, style, c)
	if origins == nil {
		origins = []string{}
	}
	signed, err := account.sign(jwt.MapClaims{
		"iss":     account.ClientEmail,
		"aud":     "google",
		"typ":     "savetowallet",
		"iat":     time.Now().Unix(),
		"origins": origins,
		"payload": savePayload{
			GenericClasses: []genericClass{{ID: obj.ClassID}},
			GenericObjects: []GenericObject{obj},
		},
	})
	if err != nil {
		return "", fmt.Errorf("sign save jwt: %w", err)
	}
	return saveURLPrefix + signed, nil
}
