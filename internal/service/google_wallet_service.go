package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
	"github.com/spec-kit/wallet-pass-service/internal/googlewallet"
	"github.com/spec-kit/wallet-pass-service/internal/repository"
	apperrors "github.com/spec-kit/wallet-pass-service/pkg/util/errorutil"
)

// GoogleWalletService hands out "add to Google Wallet" links.
type GoogleWalletService struct {
	businesses repository.BusinessRepository
	customers  repository.CustomerRepository
	account    *googlewallet.ServiceAccount
	issuerID   string
	origins    []string
}

// GoogleWalletDependencies bundles collaborators. Account may be nil.
type GoogleWalletDependencies struct {
	Businesses repository.BusinessRepository
	Customers  repository.CustomerRepository
	Account    *googlewallet.ServiceAccount
	IssuerID   string
	Origins    []string
}

// NewGoogleWalletService creates the service.
func NewGoogleWalletService(deps GoogleWalletDependencies) *GoogleWalletService {
	return &GoogleWalletService{
		businesses: deps.Businesses,
		customers:  deps.Customers,
		account:    deps.Account,
		issuerID:   deps.IssuerID,
		origins:    deps.Origins,
	}
}

// SaveURL returns the save link for customer cid of business bid.
func (s *GoogleWalletService) SaveURL(ctx context.Context, bid, cid string) (string, error) {
	if s.account == nil || s.issuerID == "" {
		return "", apperrors.NewDomainError("GOOGLE_WALLET_DISABLED", "google wallet not configured", http.StatusServiceUnavailable, nil)
	}
	bid, cid = strings.TrimSpace(bid), strings.TrimSpace(cid)
	if bid == "" || cid == "" {
		return "", apperrors.NewValidationError("bid and cid are required", nil)
	}

	var (
		business *domain.Business
		style    *domain.CardStyle
		customer *domain.Customer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		business, err = s.businesses.GetByID(gctx, bid)
		return err
	})
	g.Go(func() (err error) {
		style, err = s.businesses.GetCardStyle(gctx, bid)
		return err
	})
	g.Go(func() (err error) {
		customer, err = s.customers.GetByID(gctx, cid)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", apperrors.NewNotFound("business or customer", nil)
		}
		return "", apperrors.MapError(err)
	}
	if customer.BusinessID != bid {
		return "", apperrors.NewNotFound("business or customer", nil)
	}

	link, err := googlewallet.SaveURL(s.account, s.issuerID, s.origins, *business, *style, *customer)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return link, nil
}
