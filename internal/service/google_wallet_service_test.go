package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
	"github.com/spec-kit/wallet-pass-service/internal/googlewallet"
	"github.com/spec-kit/wallet-pass-service/internal/testutil"
)

func testServiceAccount(t *testing.T) *googlewallet.ServiceAccount {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]string{
		"client_email": "wallet@project.iam.gserviceaccount.com",
		"private_key":  string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})),
	})
	require.NoError(t, err)
	sa, err := googlewallet.ParseServiceAccount(string(raw))
	require.NoError(t, err)
	return sa
}

func googleStore() *testutil.Store {
	store := testutil.NewStore()
	store.PutBusiness(domain.Business{ID: "b1", Name: "Bean There"}, domain.CardStyle{})
	store.PutCustomer(domain.Customer{ID: "c1", BusinessID: "b1", Name: "Ada"})
	store.PutCustomer(domain.Customer{ID: "c2", BusinessID: "b2", Name: "Bob"})
	return store
}

func TestSaveURLDisabledWithoutAccount(t *testing.T) {
	store := googleStore()
	svc := NewGoogleWalletService(GoogleWalletDependencies{Businesses: store, Customers: store.Customers()})

	_, err := svc.SaveURL(context.Background(), "b1", "c1")
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(err))
}

func TestSaveURL(t *testing.T) {
	store := googleStore()
	svc := NewGoogleWalletService(GoogleWalletDependencies{
		Businesses: store,
		Customers:  store.Customers(),
		Account:    testServiceAccount(t),
		IssuerID:   "3388000000012345",
	})

	link, err := svc.SaveURL(context.Background(), "b1", "c1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://pay.google.com/gp/v/save/"))

	_, err = svc.SaveURL(context.Background(), "b1", "c2")
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	_, err = svc.SaveURL(context.Background(), "b1", "")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}
