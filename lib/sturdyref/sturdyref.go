// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package sturdyref

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
)

// SwissNumberBytes is the entropy of a generated swiss number.
const SwissNumberBytes = 20

var (
	// ErrMissingLocation is returned by Validate when Location is empty.
	ErrMissingLocation = errors.New("sturdyref: missing location")

	// ErrMissingSwissNumber is returned by Validate when SwissNumber is
	// empty.
	ErrMissingSwissNumber = errors.New("sturdyref: missing swiss number")
)

// SturdyRef identifies a capability independently of any live
// connection. The zero value is invalid. SturdyRef is comparable, and
// == is structural equality over all four fields.
type SturdyRef struct {
	// Location is the routing hint, e.g. "host:port".
	Location string `cbor:"1,keyasint"`

	// SwissNumber is the unguessable identifier of the object at
	// Location.
	SwissNumber string `cbor:"2,keyasint"`

	// Name is an optional human-readable label. It carries no
	// authority.
	Name string `cbor:"3,keyasint,omitempty"`

	// Authority is the ID of the issuing process, or "" when the issuer
	// is not pinned.
	Authority string `cbor:"4,keyasint,omitempty"`
}

// New returns a SturdyRef for the object with swissNumber at location.
func New(location, swissNumber string) SturdyRef {
	return SturdyRef{Location: location, SwissNumber: swissNumber}
}

// Equal reports whether r and other identify the same capability.
func (r SturdyRef) Equal(other SturdyRef) bool {
	return r == other
}

// Validate reports whether r has the fields needed to resolve it.
func (r SturdyRef) Validate() error {
	if r.Location == "" {
		return ErrMissingLocation
	}
	if r.SwissNumber == "" {
		return ErrMissingSwissNumber
	}
	return nil
}

// String renders r for logs. The swiss number is redacted.
func (r SturdyRef) String() string {
	var b strings.Builder
	b.WriteString("sturdyref(")
	b.WriteString(r.Location)
	if r.Name != "" {
		b.WriteString(" ")
		b.WriteString(r.Name)
	}
	if r.Authority != "" {
		b.WriteString(" authority=")
		b.WriteString(r.Authority)
	}
	b.WriteString(")")
	return b.String()
}

// swissEncoding renders swiss numbers and IDs as lowercase base32
// without padding, which survives URLs, file names, and case folding.
var swissEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func encodeIdentifier(raw []byte) string {
	return strings.ToLower(swissEncoding.EncodeToString(raw))
}

// NewSwissNumber returns a fresh random swiss number.
func NewSwissNumber() (string, error) {
	raw := make([]byte, SwissNumberBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating swiss number: %w", err)
	}
	return encodeIdentifier(raw), nil
}
