package push

import (
	"context"
	"crypto/tls"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/wallet-pass-service/internal/certs"
	"github.com/spec-kit/wallet-pass-service/internal/config"
	"github.com/spec-kit/wallet-pass-service/internal/domain"
	"github.com/spec-kit/wallet-pass-service/internal/googlewallet"
	"github.com/spec-kit/wallet-pass-service/internal/observability"
)

const (
	channelAPNs   = "apns"
	channelGoogle = "google"
)

// ObjectPatcher updates a Google Wallet object.
type ObjectPatcher interface {
	PatchObject(ctx context.Context, objectID string, patch googlewallet.ObjectPatch) error
}

// DevicePusher sends one update notification to a device.
type DevicePusher interface {
	Push(ctx context.Context, cert tls.Certificate, pushToken string) error
}

// RegistrationStore is the subset of the registration repository the
// dispatcher needs.
type RegistrationStore interface {
	ListByCustomer(ctx context.Context, customerID string) ([]domain.DeviceRegistration, error)
	Delete(ctx context.Context, customerID, deviceID, passTypeID string) error
}

// CertificateLoader materializes the signing bundle.
type CertificateLoader interface {
	Load(secrets config.Secrets) (*certs.Bundle, error)
}

// Options wires a Dispatcher. Google may be nil when no service account is configured.
type Options struct {
	Registrations  RegistrationStore
	Google         ObjectPatcher
	GoogleIssuerID string
	APNs           DevicePusher
	Certs          CertificateLoader
	Secrets        config.Secrets
	MaxConcurrency int
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// Dispatcher fans a customer change out to every wallet holding the card.
type Dispatcher struct {
	opts Options
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Dispatcher{opts: opts}
}

// HandleCustomerChange notifies both wallet ecosystems when a visible field
// changed. Failures are logged and counted, never returned.
func (d *Dispatcher) HandleCustomerChange(ctx context.Context, before, after domain.Customer) {
	logger := d.opts.Logger.With(zap.String("customer_id", after.ID), zap.String("business_id", after.BusinessID))
	if !domain.VisibleChange(before, after) {
		logger.Debug("customer change not visible on pass")
		return
	}

	var g errgroup.Group
	g.Go(func() error {
		d.syncGoogle(ctx, logger, after)
		return nil
	})
	g.Go(func() error {
		d.pushDevices(ctx, logger, after)
		return nil
	})
	_ = g.Wait()
}

func (d *Dispatcher) syncGoogle(ctx context.Context, logger *zap.Logger, c domain.Customer) {
	if d.opts.Google == nil || d.opts.GoogleIssuerID == "" {
		logger.Debug("google wallet not configured")
		d.opts.Metrics.RecordPush(channelGoogle, observability.PushSkipped)
		return
	}
	objectID := googlewallet.ObjectID(d.opts.GoogleIssuerID, c.BusinessID, c.ID)
	if err := d.opts.Google.PatchObject(ctx, objectID, googlewallet.PatchFor(c)); err != nil {
		logger.Warn("google wallet patch failed", zap.String("object_id", objectID), zap.Error(err))
		d.opts.Metrics.RecordPush(channelGoogle, observability.PushFailed)
		return
	}
	d.opts.Metrics.RecordPush(channelGoogle, observability.PushDelivered)
}

func (d *Dispatcher) pushDevices(ctx context.Context, logger *zap.Logger, c domain.Customer) {
	regs, err := d.opts.Registrations.ListByCustomer(ctx, c.ID)
	if err != nil {
		logger.Warn("list registrations failed", zap.Error(err))
		return
	}
	if len(regs) == 0 {
		return
	}

	bundle, err := d.opts.Certs.Load(d.opts.Secrets)
	if err != nil {
		logger.Warn("apns push skipped: signing material unavailable", zap.Error(err))
		for range regs {
			d.opts.Metrics.RecordPush(channelAPNs, observability.PushSkipped)
		}
		return
	}
	cert := bundle.TLSCertificate()

	var g errgroup.Group
	g.SetLimit(d.opts.MaxConcurrency)
	for _, reg := range regs {
		reg := reg
		g.Go(func() error {
			d.pushOne(ctx, logger, cert, reg)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) pushOne(ctx context.Context, logger *zap.Logger, cert tls.Certificate, reg domain.DeviceRegistration) {
	logger = logger.With(zap.String("device_id", reg.DeviceID))
	err := d.opts.APNs.Push(ctx, cert, reg.PushToken)
	if err == nil {
		d.opts.Metrics.RecordPush(channelAPNs, observability.PushDelivered)
		return
	}
	d.opts.Metrics.RecordPush(channelAPNs, observability.PushFailed)

	var apnsErr *APNsError
	if errors.As(err, &apnsErr) && apnsErr.Unregistered() {
		logger.Info("device token unregistered, removing registration", zap.String("reason", apnsErr.Reason))
		if derr := d.opts.Registrations.Delete(ctx, reg.CustomerID, reg.DeviceID, reg.PassTypeID); derr != nil {
			logger.Warn("remove stale registration failed", zap.Error(derr))
		}
		return
	}
	logger.Warn("apns push failed", zap.Error(err))
}
