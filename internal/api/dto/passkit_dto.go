package dto

// RegisterDeviceRequest is the body a wallet posts when it adds a pass.
type RegisterDeviceRequest struct {
	PushToken string `json:"pushToken"`
}

// LogRequest carries diagnostics from a wallet.
type LogRequest struct {
	Logs []string `json:"logs"`
}

// SerialsResponse lists passes changed since the previous poll.
type SerialsResponse struct {
	SerialNumbers []string `json:"serialNumbers"`
	LastUpdated   string   `json:"lastUpdated"`
}

// SaveURLResponse carries an "add to Google Wallet" link.
type SaveURLResponse struct {
	SaveURL string `json:"saveUrl"`
}
