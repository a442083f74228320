// Package googlewallet keeps Google Wallet generic objects in sync with
// customer state.
package googlewallet

import "strings"

// ObjectID is the wallet object identifier of a customer's card. The formula
// is part of the issued objects' identity and must never change.
func ObjectID(issuerID, businessID, customerID string) string {
	return issuerID + "." + sanitize(businessID) + "_" + sanitize(customerID)
}

// ClassID is the generic class shared by all cards of a business.
func ClassID(issuerID, businessID string) string {
	return issuerID + "." + sanitize(businessID)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
