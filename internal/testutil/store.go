package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
)

type regKey struct {
	customer, device, passType string
}

// Store is an in-memory stand-in for the Postgres repositories.
type Store struct {
	mu            sync.Mutex
	businesses    map[string]domain.Business
	styles        map[string]domain.CardStyle
	customers     map[string]domain.Customer
	registrations map[regKey]domain.DeviceRegistration
	// Mints counts successful token writes.
	Mints int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		businesses:    map[string]domain.Business{},
		styles:        map[string]domain.CardStyle{},
		customers:     map[string]domain.Customer{},
		registrations: map[regKey]domain.DeviceRegistration{},
	}
}

// PutBusiness seeds a business and its card style.
func (s *Store) PutBusiness(b domain.Business, style domain.CardStyle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	style.BusinessID = b.ID
	s.businesses[b.ID] = b
	s.styles[b.ID] = style
}

// PutCustomer seeds or replaces a customer.
func (s *Store) PutCustomer(c domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	}
	s.customers[c.ID] = c
}

// Customer returns a copy of the stored customer.
func (s *Store) Customer(id string) domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers[id]
}

// RegistrationCount reports how many registrations exist.
func (s *Store) RegistrationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registrations)
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok {
		return nil, fmt.Errorf("business %s: %w", id, domain.ErrNotFound)
	}
	return &b, nil
}

func (s *Store) GetCardStyle(_ context.Context, businessID string) (*domain.CardStyle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	style, ok := s.styles[businessID]
	if !ok {
		return &domain.CardStyle{BusinessID: businessID, TextScheme: domain.TextSchemeLight}, nil
	}
	return &style, nil
}

// Customers adapts the store to the customer repository interface, whose
// GetByID collides with the business one.
func (s *Store) Customers() *CustomerView { return &CustomerView{s: s} }

// Registrations exposes the registration repository methods.
func (s *Store) Registrations() *RegistrationView { return &RegistrationView{s: s} }

// CustomerView implements repository.CustomerRepository.
type CustomerView struct{ s *Store }

func (v *CustomerView) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	c, ok := v.s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, domain.ErrNotFound)
	}
	if c.AuthToken != nil {
		tok := *c.AuthToken
		c.AuthToken = &tok
	}
	return &c, nil
}

func (v *CustomerView) EnsureAuthToken(_ context.Context, id, candidate string) (string, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	c, ok := v.s.customers[id]
	if !ok {
		return "", fmt.Errorf("customer %s: %w", id, domain.ErrNotFound)
	}
	if c.AuthToken != nil {
		return *c.AuthToken, nil
	}
	c.AuthToken = &candidate
	v.s.customers[id] = c
	v.s.Mints++
	return candidate, nil
}

// RegistrationView implements repository.RegistrationRepository.
type RegistrationView struct{ s *Store }

func (v *RegistrationView) Upsert(_ context.Context, reg *domain.DeviceRegistration) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := regKey{reg.CustomerID, reg.DeviceID, reg.PassTypeID}
	existing, found := v.s.registrations[key]
	if found {
		existing.PushToken = reg.PushToken
		v.s.registrations[key] = existing
		reg.RegisteredAt = existing.RegisteredAt
		return false, nil
	}
	reg.RegisteredAt = time.Now()
	v.s.registrations[key] = *reg
	return true, nil
}

func (v *RegistrationView) Delete(_ context.Context, customerID, deviceID, passTypeID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	delete(v.s.registrations, regKey{customerID, deviceID, passTypeID})
	return nil
}

func (v *RegistrationView) ListByCustomer(_ context.Context, customerID string) ([]domain.DeviceRegistration, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []domain.DeviceRegistration
	for key, reg := range v.s.registrations {
		if key.customer == customerID {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (v *RegistrationView) ListUpdatedSerials(_ context.Context, businessID, deviceID, passTypeID string, since *time.Time) ([]domain.UpdatedSerial, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []domain.UpdatedSerial
	for key := range v.s.registrations {
		if key.device != deviceID || key.passType != passTypeID {
			continue
		}
		c, ok := v.s.customers[key.customer]
		if !ok || c.BusinessID != businessID {
			continue
		}
		if since != nil && !c.UpdatedAt.After(*since) {
			continue
		}
		out = append(out, domain.UpdatedSerial{Serial: c.ID, UpdatedAt: c.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}
