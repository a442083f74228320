package domain

import "time"

// DeviceRegistration binds a (customer, device, pass type) triple to a push token.
type DeviceRegistration struct {
	CustomerID   string
	DeviceID     string
	PassTypeID   string
	PushToken    string
	RegisteredAt time.Time
}

// UpdatedSerial is a pass serial with its last visible change.
type UpdatedSerial struct {
	Serial    string
	UpdatedAt time.Time
}
