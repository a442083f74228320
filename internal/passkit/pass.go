// Package passkit assembles signed wallet pass archives.
package passkit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
)

// MIMEType is the content type of a pass archive.
const MIMEType = "application/vnd.apple.pkpass"

// Pass is the pass.json document.
type Pass struct {
	FormatVersion       int        `json:"formatVersion"`
	PassTypeIdentifier  string     `json:"passTypeIdentifier"`
	SerialNumber        string     `json:"serialNumber"`
	TeamIdentifier      string     `json:"teamIdentifier"`
	OrganizationName    string     `json:"organizationName"`
	Description         string     `json:"description"`
	LogoText            string     `json:"logoText,omitempty"`
	BackgroundColor     string     `json:"backgroundColor"`
	ForegroundColor     string     `json:"foregroundColor"`
	LabelColor          string     `json:"labelColor"`
	WebServiceURL       string     `json:"webServiceURL"`
	AuthenticationToken string     `json:"authenticationToken"`
	Barcode             *Barcode   `json:"barcode,omitempty"`
	Barcodes            []Barcode  `json:"barcodes"`
	StoreCard           *Structure `json:"storeCard"`
}

// Barcode is a scannable code rendered on the card face.
type Barcode struct {
	Format          string `json:"format"`
	Message         string `json:"message"`
	MessageEncoding string `json:"messageEncoding"`
	AltText         string `json:"altText,omitempty"`
}

// Structure groups the fields of a store card.
type Structure struct {
	HeaderFields    []Field `json:"headerFields,omitempty"`
	PrimaryFields   []Field `json:"primaryFields,omitempty"`
	SecondaryFields []Field `json:"secondaryFields,omitempty"`
	AuxiliaryFields []Field `json:"auxiliaryFields,omitempty"`
	BackFields      []Field `json:"backFields,omitempty"`
}

// Field is a single label/value pair.
type Field struct {
	Key           string `json:"key"`
	Label         string `json:"label"`
	Value         any    `json:"value"`
	ChangeMessage string `json:"changeMessage,omitempty"`
}

// Colors of a rendered card.
type Colors struct {
	Background string
	Foreground string
	Label      string
}

const (
	colorWhite     = "rgb(255, 255, 255)"
	colorNearBlack = "rgb(17, 17, 17)"
	colorGray      = "rgb(102, 102, 102)"
	colorBlack     = "rgb(0, 0, 0)"
)

// ColorsFor derives the pass palette from a card style.
func ColorsFor(style domain.CardStyle) Colors {
	c := Colors{Background: NormalizeColor(style.BackgroundColor)}
	if style.TextScheme == domain.TextSchemeLight {
		c.Foreground, c.Label = colorWhite, colorWhite
	} else {
		c.Foreground, c.Label = colorNearBlack, colorGray
	}
	return c
}

// NormalizeColor converts #rgb, #rrggbb or rgb() input to the rgb() form
// wallets require. Unparseable input renders black.
func NormalizeColor(in string) string {
	r, g, b, ok := parseColor(in)
	if !ok {
		return colorBlack
	}
	return fmt.Sprintf("rgb(%d, %d, %d)", r, g, b)
}

// HexColor converts the same inputs as NormalizeColor to #rrggbb.
func HexColor(in string) string {
	r, g, b, _ := parseColor(in)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func parseColor(in string) (r, g, b uint8, ok bool) {
	s := strings.TrimSpace(strings.ToLower(in))
	if strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")") {
		parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(s, "rgb("), ")"), ",")
		if len(parts) != 3 {
			return 0, 0, 0, false
		}
		var vals [3]uint8
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return 0, 0, 0, false
			}
			vals[i] = uint8(v)
		}
		return vals[0], vals[1], vals[2], true
	}

	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), true
}
