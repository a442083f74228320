package googlewallet

import (
	"strconv"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
	"github.com/spec-kit/wallet-pass-service/internal/passkit"
)

const defaultLanguage = "en-US"

// Text module ids on every loyalty object.
const (
	ModuleStamps  = "stamps"
	ModuleRewards = "rewards"
)

// LocalizedString is Google's translatable string wrapper.
type LocalizedString struct {
	DefaultValue TranslatedString `json:"defaultValue"`
}

// TranslatedString is a single-language value.
type TranslatedString struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// TextModule is a header/body pair on the card.
type TextModule struct {
	ID     string `json:"id"`
	Header string `json:"header"`
	Body   string `json:"body"`
}

// ObjectPatch is the PATCH body sent when a customer changes.
type ObjectPatch struct {
	Header          *LocalizedString `json:"header,omitempty"`
	TextModulesData []TextModule     `json:"textModulesData,omitempty"`
}

// GenericObject is the full object embedded in save links.
type GenericObject struct {
	ID                 string          `json:"id"`
	ClassID            string          `json:"classId"`
	State              string          `json:"state"`
	CardTitle          LocalizedString `json:"cardTitle"`
	Header             LocalizedString `json:"header"`
	HexBackgroundColor string          `json:"hexBackgroundColor,omitempty"`
	Logo               *Image          `json:"logo,omitempty"`
	Barcode            *Barcode        `json:"barcode,omitempty"`
	TextModulesData    []TextModule    `json:"textModulesData"`
}

// Image references a hosted image.
type Image struct {
	SourceURI struct {
		URI string `json:"uri"`
	} `json:"sourceUri"`
}

// Barcode renders on the card.
type Barcode struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func localized(v string) LocalizedString {
	return LocalizedString{DefaultValue: TranslatedString{Language: defaultLanguage, Value: v}}
}

func modulesFor(c domain.Customer) []TextModule {
	return []TextModule{
		{ID: ModuleStamps, Header: "Stamps", Body: strconv.Itoa(c.Stamps)},
		{ID: ModuleRewards, Header: "Rewards redeemed", Body: strconv.Itoa(c.RewardsRedeemed)},
	}
}

// PatchFor renders the mutable part of a customer's object.
func PatchFor(c domain.Customer) ObjectPatch {
	header := localized(c.Name)
	return ObjectPatch{Header: &header, TextModulesData: modulesFor(c)}
}

// NewGenericObject renders the complete object for a customer.
func NewGenericObject(issuerID string, business domain.Business, style domain.CardStyle, c domain.Customer) GenericObject {
	obj := GenericObject{
		ID:              ObjectID(issuerID, business.ID, c.ID),
		ClassID:         ClassID(issuerID, business.ID),
		State:           "ACTIVE",
		CardTitle:       localized(business.Name),
		Header:          localized(c.Name),
		Barcode:         &Barcode{Type: "QR_CODE", Value: c.ID},
		TextModulesData: modulesFor(c),
	}
	if style.BackgroundColor != "" {
		obj.HexBackgroundColor = passkit.HexColor(style.BackgroundColor)
	}
	if style.LogoURL != "" {
		obj.Logo = &Image{}
		obj.Logo.SourceURI.URI = style.LogoURL
	}
	return obj
}
