package googlewallet

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
)

// NewTokenSource returns a cached token source that trades a signed
// service-account assertion for access tokens with the given scope.
func NewTokenSource(ctx context.Context, account *ServiceAccount, scope string, timeout time.Duration) oauth2.TokenSource {
	conf := &jwt.Config{
		Email:        account.ClientEmail,
		PrivateKey:   []byte(account.PrivateKey),
		PrivateKeyID: account.PrivateKeyID,
		Scopes:       []string{scope},
		TokenURL:     account.TokenURI,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	return conf.TokenSource(ctx)
}
