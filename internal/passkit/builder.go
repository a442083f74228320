package passkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/wallet-pass-service/internal/certs"
	"github.com/spec-kit/wallet-pass-service/internal/config"
	"github.com/spec-kit/wallet-pass-service/internal/domain"
	"github.com/spec-kit/wallet-pass-service/internal/repository"
	apperrors "github.com/spec-kit/wallet-pass-service/pkg/util/errorutil"
)

// Dependencies encapsulates what the builder reads from.
type Dependencies struct {
	Businesses repository.BusinessRepository
	Customers  repository.CustomerRepository
	Logos      LogoSource
	Certs      *certs.Materializer
}

// Issued is a signed pass archive.
type Issued struct {
	Data         []byte
	Serial       string
	AuthToken    string
	LastModified time.Time
}

// Builder composes and signs passes for a business's customers.
type Builder struct {
	deps    Dependencies
	pass    config.PassConfig
	baseURL string
	secrets config.Secrets
	logger  *zap.Logger
	mint    func() string
}

// NewBuilder constructs the builder.
func NewBuilder(deps Dependencies, pass config.PassConfig, baseURL string, secrets config.Secrets, logger *zap.Logger) *Builder {
	return &Builder{
		deps:    deps,
		pass:    pass,
		baseURL: strings.TrimRight(baseURL, "/"),
		secrets: secrets,
		logger:  logger,
		mint:    NewAuthToken,
	}
}

// NewAuthToken returns 128 bits from crypto/rand as 32 hex characters.
func NewAuthToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WebServiceURL is the callback root a wallet uses for this business.
func WebServiceURL(baseURL, businessID string) string {
	return fmt.Sprintf("%s/v1/api/%s", strings.TrimRight(baseURL, "/"), businessID)
}

type snapshot struct {
	business *domain.Business
	style    *domain.CardStyle
	customer *domain.Customer
}

// Build issues the pass for customer cid of business bid.
func (b *Builder) Build(ctx context.Context, bid, cid string) (*Issued, error) {
	snap, err := b.load(ctx, bid, cid)
	if err != nil {
		return nil, err
	}
	customer := snap.customer

	if !customer.HasAuthToken() {
		token, err := b.deps.Customers.EnsureAuthToken(ctx, customer.ID, b.mint())
		if err != nil {
			return nil, apperrors.MapError(fmt.Errorf("persist auth token: %w", err))
		}
		customer.AuthToken = &token
	}

	bundle, err := b.deps.Certs.Load(b.secrets)
	if err != nil {
		return nil, apperrors.NewCertificateError("pass signing", err)
	}

	pass := b.compose(snap)
	body, err := json.Marshal(pass)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("encode pass.json: %w", err))
	}
	files := map[string][]byte{FilePass: body}
	for name, data := range b.logoAssets(ctx, snap.style.LogoURL) {
		files[name] = data
	}

	data, err := WriteArchive(files, bundle)
	if err != nil {
		return nil, apperrors.NewCertificateError("pass signing", err)
	}

	return &Issued{
		Data:         data,
		Serial:       customer.ID,
		AuthToken:    *customer.AuthToken,
		LastModified: customer.UpdatedAt,
	}, nil
}

func (b *Builder) load(ctx context.Context, bid, cid string) (*snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		business, err := b.deps.Businesses.GetByID(gctx, bid)
		snap.business = business
		return err
	})
	g.Go(func() error {
		style, err := b.deps.Businesses.GetCardStyle(gctx, bid)
		snap.style = style
		return err
	})
	g.Go(func() error {
		customer, err := b.deps.Customers.GetByID(gctx, cid)
		snap.customer = customer
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.NewNotFound("business or customer", map[string]any{"bid": bid, "cid": cid})
		}
		return nil, apperrors.MapError(err)
	}
	if snap.customer.BusinessID != bid {
		return nil, apperrors.NewNotFound("business or customer", map[string]any{"bid": bid, "cid": cid})
	}
	return &snap, nil
}

func (b *Builder) compose(snap *snapshot) *Pass {
	business, style, customer := snap.business, snap.style, snap.customer
	colors := ColorsFor(*style)
	qr := Barcode{
		Format:          "PKBarcodeFormatQR",
		Message:         customer.ID,
		MessageEncoding: "iso-8859-1",
	}

	back := []Field{}
	if style.RewardText != "" {
		back = append(back, Field{Key: "reward", Label: "Reward", Value: style.RewardText})
	}
	if customer.Phone != "" {
		back = append(back, Field{Key: "phone", Label: "Phone", Value: customer.Phone})
	}

	return &Pass{
		FormatVersion:       1,
		PassTypeIdentifier:  b.pass.PassTypeID,
		SerialNumber:        customer.ID,
		TeamIdentifier:      b.pass.TeamID,
		OrganizationName:    firstNonEmpty(business.Name, b.pass.OrganizationName),
		Description:         b.pass.Description,
		LogoText:            business.Name,
		BackgroundColor:     colors.Background,
		ForegroundColor:     colors.Foreground,
		LabelColor:          colors.Label,
		WebServiceURL:       WebServiceURL(b.baseURL, business.ID),
		AuthenticationToken: *customer.AuthToken,
		Barcode:             &qr,
		Barcodes:            []Barcode{qr},
		StoreCard: &Structure{
			HeaderFields: []Field{
				{Key: "stamps", Label: "STAMPS", Value: customer.Stamps, ChangeMessage: "You now have %@ stamps"},
			},
			PrimaryFields: []Field{
				{Key: "name", Label: "MEMBER", Value: customer.Name},
			},
			SecondaryFields: []Field{
				{Key: "rewards", Label: "REWARDS REDEEMED", Value: customer.RewardsRedeemed, ChangeMessage: "Rewards redeemed: %@"},
			},
			BackFields: back,
		},
	}
}

// logoAssets never fails; a broken logo yields a pass without images.
func (b *Builder) logoAssets(ctx context.Context, url string) map[string][]byte {
	if url == "" || b.deps.Logos == nil {
		return nil
	}
	raw, err := b.deps.Logos.Fetch(ctx, url)
	if err != nil {
		b.logger.Warn("logo fetch failed; issuing pass without logo", zap.String("url", url), zap.Error(err))
		return nil
	}
	assets, err := RenderAssets(raw)
	if err != nil {
		b.logger.Warn("logo render failed; issuing pass without logo", zap.String("url", url), zap.Error(err))
		return nil
	}
	return assets
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
