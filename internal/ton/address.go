// Package ton holds the minimal TON chain surface Splitton needs: address
// validation, transfer deep links, and a read-only indexer client for
// recent transfers to an address. It is deliberately not a full chain
// client.
package ton

import (
	"errors"
	"regexp"
)

// ErrInvalidAddress is returned for addresses in neither the raw nor the
// user-friendly form.
var ErrInvalidAddress = errors.New("invalid TON address")

var (
	// Raw form: <workchain>:<64 hex chars>, workchain 0 (basechain) or
	// -1 (masterchain).
	rawAddressRe = regexp.MustCompile(`^(0|-1):[0-9a-fA-F]{64}$`)

	// Friendly form: 48 chars, UQ (non-bounceable) or EQ (bounceable)
	// prefix, URL-safe base64 after the prefix.
	friendlyAddressRe = regexp.MustCompile(`^(UQ|EQ)[A-Za-z0-9_-]{46}$`)
)

// ValidAddress reports whether addr is syntactically a TON address in
// either the raw or the user-friendly form.
func ValidAddress(addr string) bool {
	return rawAddressRe.MatchString(addr) || friendlyAddressRe.MatchString(addr)
}

// ValidateAddress returns ErrInvalidAddress unless addr is syntactically
// valid. Addresses must be validated before being persisted as a receiving
// address or used to render a deep link.
func ValidateAddress(addr string) error {
	if !ValidAddress(addr) {
		return ErrInvalidAddress
	}
	return nil
}
