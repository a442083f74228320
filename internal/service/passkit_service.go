package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
	"github.com/spec-kit/wallet-pass-service/internal/passkit"
	"github.com/spec-kit/wallet-pass-service/internal/repository"
	apperrors "github.com/spec-kit/wallet-pass-service/pkg/util/errorutil"
)

// ErrNotModified signals that the device already holds the current pass.
var ErrNotModified = errors.New("pass not modified")

const maxLogMessages = 100

// PassBuilder issues signed passes.
type PassBuilder interface {
	Build(ctx context.Context, bid, cid string) (*passkit.Issued, error)
}

// PassKitService implements the wallet web-service callbacks.
type PassKitService struct {
	registrations repository.RegistrationRepository
	builder       PassBuilder
	passTypeID    string
	logger        *zap.Logger
}

// PassKitDependencies bundles collaborators for PassKitService.
type PassKitDependencies struct {
	Registrations repository.RegistrationRepository
	Builder       PassBuilder
	PassTypeID    string
	Logger        *zap.Logger
}

// NewPassKitService creates the service.
func NewPassKitService(deps PassKitDependencies) *PassKitService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PassKitService{
		registrations: deps.Registrations,
		builder:       deps.Builder,
		passTypeID:    deps.PassTypeID,
		logger:        logger,
	}
}

// SerialUpdate is the answer to a device asking which passes changed.
type SerialUpdate struct {
	SerialNumbers []string `json:"serialNumbers"`
	LastUpdated   string   `json:"lastUpdated"`
}

// RegisterDevice stores or refreshes the push token of an authenticated
// customer's device. It reports whether a new registration was created.
func (s *PassKitService) RegisterDevice(ctx context.Context, customer *domain.Customer, deviceID, passTypeID, pushToken string) (bool, error) {
	if err := s.checkPassType(passTypeID); err != nil {
		return false, err
	}
	pushToken = strings.TrimSpace(pushToken)
	if pushToken == "" {
		return false, apperrors.NewValidationError("pushToken is required", nil)
	}
	reg := &domain.DeviceRegistration{
		CustomerID: customer.ID,
		DeviceID:   deviceID,
		PassTypeID: passTypeID,
		PushToken:  pushToken,
	}
	created, err := s.registrations.Upsert(ctx, reg)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	s.logger.Info("device registered",
		zap.String("business_id", customer.BusinessID),
		zap.String("serial", customer.ID),
		zap.String("device_id", deviceID),
		zap.Bool("created", created))
	return created, nil
}

// UnregisterDevice removes a registration. Removing a missing one succeeds.
func (s *PassKitService) UnregisterDevice(ctx context.Context, customer *domain.Customer, deviceID, passTypeID string) error {
	if err := s.registrations.Delete(ctx, customer.ID, deviceID, passTypeID); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("device unregistered",
		zap.String("business_id", customer.BusinessID),
		zap.String("serial", customer.ID),
		zap.String("device_id", deviceID))
	return nil
}

// LatestPass rebuilds the pass for an authenticated customer. When the
// customer has not changed since ifModifiedSince it returns ErrNotModified.
func (s *PassKitService) LatestPass(ctx context.Context, customer *domain.Customer, passTypeID string, ifModifiedSince time.Time) (*passkit.Issued, error) {
	if err := s.checkPassType(passTypeID); err != nil {
		return nil, err
	}
	// HTTP dates carry whole seconds; any sub-second change still rebuilds.
	if !ifModifiedSince.IsZero() && !customer.UpdatedAt.After(ifModifiedSince) {
		return nil, ErrNotModified
	}
	return s.builder.Build(ctx, customer.BusinessID, customer.ID)
}

// UpdatedSerials lists serials registered on a device that changed after the
// opaque tag handed out by a previous call. It returns nil when none did.
func (s *PassKitService) UpdatedSerials(ctx context.Context, bid, deviceID, passTypeID, tag string) (*SerialUpdate, error) {
	since := parseTag(tag)
	serials, err := s.registrations.ListUpdatedSerials(ctx, bid, deviceID, passTypeID, since)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(serials) == 0 {
		return nil, nil
	}
	update := &SerialUpdate{SerialNumbers: make([]string, 0, len(serials))}
	var latest time.Time
	for _, serial := range serials {
		update.SerialNumbers = append(update.SerialNumbers, serial.Serial)
		if serial.UpdatedAt.After(latest) {
			latest = serial.UpdatedAt
		}
	}
	update.LastUpdated = formatTag(latest)
	return update, nil
}

// LogMessages records diagnostics sent by wallets.
func (s *PassKitService) LogMessages(bid string, messages []string) {
	if len(messages) > maxLogMessages {
		messages = messages[:maxLogMessages]
	}
	for _, msg := range messages {
		s.logger.Warn("wallet log", zap.String("business_id", bid), zap.String("message", msg))
	}
}

// IssuePass builds a pass for the one-shot download endpoint.
func (s *PassKitService) IssuePass(ctx context.Context, bid, cid string) (*passkit.Issued, error) {
	bid, cid = strings.TrimSpace(bid), strings.TrimSpace(cid)
	if bid == "" || cid == "" {
		return nil, apperrors.NewValidationError("bid and cid are required", nil)
	}
	return s.builder.Build(ctx, bid, cid)
}

func (s *PassKitService) checkPassType(passTypeID string) error {
	if s.passTypeID != "" && passTypeID != s.passTypeID {
		return apperrors.NewNotFound("pass type", map[string]any{"pass_type": passTypeID})
	}
	return nil
}

func parseTag(tag string) *time.Time {
	micros, err := strconv.ParseInt(strings.TrimSpace(tag), 10, 64)
	if err != nil || micros <= 0 {
		return nil
	}
	t := time.UnixMicro(micros).UTC()
	return &t
}

func formatTag(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}
