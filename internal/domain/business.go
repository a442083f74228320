package domain

import "time"

// TextScheme selects the foreground palette of a card.
type TextScheme string

const (
	TextSchemeLight TextScheme = "light"
	TextSchemeDark  TextScheme = "dark"
)

// Business is a merchant owning a loyalty program and its customers.
type Business struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CardStyle is the visual configuration of a business's stamp card.
type CardStyle struct {
	BusinessID      string
	BackgroundColor string
	TextScheme      TextScheme
	RewardText      string
	LogoURL         string
}
