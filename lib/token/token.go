// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"fmt"
	"math/big"
)

// Kind identifies the type of a token. Values are part of the wire
// format.
type Kind uint8

const (
	KindInteger       Kind = 1
	KindBytes         Kind = 2
	KindText          Kind = 3
	KindBoolean       Kind = 4
	KindFloat         Kind = 5
	KindOpen          Kind = 6
	KindClose         Kind = 7
	KindMyReference   Kind = 8
	KindYourReference Kind = 9
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBytes:
		return "bytes"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindFloat:
		return "float"
	case KindOpen:
		return "open"
	case KindClose:
		return "close"
	case KindMyReference:
		return "my-reference"
	case KindYourReference:
		return "your-reference"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Container identifies what an Open token starts. Values are part of
// the wire format.
type Container uint8

const (
	ContainerList      Container = 1
	ContainerTuple     Container = 2
	ContainerSet       Container = 3
	ContainerFrozenSet Container = 4
	ContainerMapping   Container = 5
	ContainerMessage   Container = 6
)

func (c Container) String() string {
	switch c {
	case ContainerList:
		return "list"
	case ContainerTuple:
		return "tuple"
	case ContainerSet:
		return "set"
	case ContainerFrozenSet:
		return "frozenset"
	case ContainerMapping:
		return "mapping"
	case ContainerMessage:
		return "message"
	default:
		return fmt.Sprintf("container(%d)", uint8(c))
	}
}

// Token is one primitive wire token. Which fields are meaningful
// depends on Kind:
//
//   - KindInteger: Int, or Magnitude+Negative when the value does not
//     fit in an int64.
//   - KindBytes: Bytes.
//   - KindText: Text.
//   - KindBoolean: Bool.
//   - KindFloat: Float.
//   - KindOpen: Container; Text names the message type when Container
//     is ContainerMessage.
//   - KindClose: nothing.
//   - KindMyReference: Reference is the sender's export id for the
//     object, Text its declared interface name ("" when undeclared).
//   - KindYourReference: Reference is an id the receiver exported
//     earlier on this connection.
type Token struct {
	Kind      Kind      `cbor:"1,keyasint"`
	Int       int64     `cbor:"2,keyasint,omitempty"`
	Magnitude []byte    `cbor:"3,keyasint,omitempty"`
	Negative  bool      `cbor:"4,keyasint,omitempty"`
	Bytes     []byte    `cbor:"5,keyasint,omitempty"`
	Text      string    `cbor:"6,keyasint,omitempty"`
	Bool      bool      `cbor:"7,keyasint,omitempty"`
	Float     float64   `cbor:"8,keyasint,omitempty"`
	Container Container `cbor:"9,keyasint,omitempty"`
	Reference uint64    `cbor:"10,keyasint,omitempty"`
}

// Int returns an integer token.
func Int(value int64) Token {
	return Token{Kind: KindInteger, Int: value}
}

// BigInt returns an integer token for an arbitrary-precision value.
// Values that fit in an int64 use the compact form.
func BigInt(value *big.Int) Token {
	if value.IsInt64() {
		return Int(value.Int64())
	}
	return Token{
		Kind:      KindInteger,
		Magnitude: new(big.Int).Abs(value).Bytes(),
		Negative:  value.Sign() < 0,
	}
}

// Bytes returns a byte-string token.
func Bytes(value []byte) Token {
	return Token{Kind: KindBytes, Bytes: value}
}

// Text returns a text token.
func Text(value string) Token {
	return Token{Kind: KindText, Text: value}
}

// Bool returns a boolean token.
func Bool(value bool) Token {
	return Token{Kind: KindBoolean, Bool: value}
}

// Float returns a floating-point token.
func Float(value float64) Token {
	return Token{Kind: KindFloat, Float: value}
}

// Open returns a token that starts a container.
func Open(container Container) Token {
	return Token{Kind: KindOpen, Container: container}
}

// OpenMessage returns a token that starts a broker message of the
// given type.
func OpenMessage(messageType string) Token {
	return Token{Kind: KindOpen, Container: ContainerMessage, Text: messageType}
}

// Close returns a token that ends the innermost open container.
func Close() Token {
	return Token{Kind: KindClose}
}

// MyReference returns a token naming an object the sender exports.
func MyReference(id uint64, interfaceName string) Token {
	return Token{Kind: KindMyReference, Reference: id, Text: interfaceName}
}

// YourReference returns a token naming an object the receiver exported.
func YourReference(id uint64) Token {
	return Token{Kind: KindYourReference, Reference: id}
}

// Integer returns the value of an integer token as a big.Int.
func (t Token) Integer() *big.Int {
	if len(t.Magnitude) == 0 {
		return big.NewInt(t.Int)
	}
	value := new(big.Int).SetBytes(t.Magnitude)
	if t.Negative {
		value.Neg(value)
	}
	return value
}

// IsOpen reports whether t opens a container of the given kind.
func (t Token) IsOpen(container Container) bool {
	return t.Kind == KindOpen && t.Container == container
}

func (t Token) String() string {
	switch t.Kind {
	case KindInteger:
		return "integer(" + t.Integer().String() + ")"
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(t.Bytes))
	case KindText:
		return fmt.Sprintf("text(%d)", len(t.Text))
	case KindBoolean:
		return fmt.Sprintf("boolean(%t)", t.Bool)
	case KindFloat:
		return fmt.Sprintf("float(%g)", t.Float)
	case KindOpen:
		if t.Container == ContainerMessage {
			return "open(message " + t.Text + ")"
		}
		return "open(" + t.Container.String() + ")"
	case KindMyReference, KindYourReference:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Reference)
	default:
		return t.Kind.String()
	}
}
