// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/abudulemusa/foolscap/lib/token"
)

// DefaultIntegerBits is the width of Integer().
const DefaultIntegerBits = 32

// IntegerConstraint accepts signed integers of a fixed bit width.
type IntegerConstraint struct {
	bits     int
	min, max *big.Int
}

// Integer returns a constraint accepting signed 32-bit integers.
func Integer() *IntegerConstraint {
	return IntegerBits(DefaultIntegerBits)
}

// IntegerBits returns a constraint accepting integers in
// [-2^(bits-1), 2^(bits-1)-1].
func IntegerBits(bits int) *IntegerConstraint {
	if bits < 1 {
		panic(fmt.Sprintf("schema: IntegerBits(%d) must be positive", bits))
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	return &IntegerConstraint{
		bits: bits,
		min:  new(big.Int).Neg(limit),
		max:  new(big.Int).Sub(limit, big.NewInt(1)),
	}
}

// Bits returns the width.
func (c *IntegerConstraint) Bits() int { return c.bits }

func (c *IntegerConstraint) String() string {
	return fmt.Sprintf("integer(%d bits)", c.bits)
}

func (c *IntegerConstraint) inRange(n *big.Int) error {
	if n.Cmp(c.min) < 0 || n.Cmp(c.max) > 0 {
		return violationf("integer out of range for %d bits", c.bits)
	}
	return nil
}

func (c *IntegerConstraint) checkValue(value any, _ *checkState) error {
	n, ok := integerValue(value)
	if !ok {
		return violationf("expected %s, got %s", c, describe(value))
	}
	return c.inRange(n)
}

func (c *IntegerConstraint) checkToken(t token.Token, _ *checkState) (any, error) {
	if t.Kind != token.KindInteger {
		return nil, unexpectedToken(c, t)
	}
	n := t.Integer()
	if err := c.inRange(n); err != nil {
		return nil, err
	}
	return compactInteger(n), nil
}

func (c *IntegerConstraint) openFrame(t token.Token, _ *checkState) (frame, error) {
	return nil, unexpectedToken(c, t)
}

// ByteStringConstraint accepts []byte values.
type ByteStringConstraint struct {
	options
}

// ByteString returns a constraint accepting byte strings. Accepts
// MaxLength, MinLength, and Pattern; length is unbounded by default.
func ByteString(opts ...Option) *ByteStringConstraint {
	return &ByteStringConstraint{
		options: collect("ByteString", options{}, optionMaxLength|optionMinLength|optionPattern, opts),
	}
}

func (c *ByteStringConstraint) String() string {
	return "bytestring(" + c.lengthBounds() + ")"
}

func (c *ByteStringConstraint) check(value []byte) error {
	if err := c.checkLength(len(value), "bytes"); err != nil {
		return err
	}
	if c.pattern != nil && !c.pattern.Match(value) {
		return violationf("bytes do not match pattern %q", c.pattern.String())
	}
	return nil
}

func (c *ByteStringConstraint) checkValue(value any, _ *checkState) error {
	b, ok := value.([]byte)
	if !ok {
		return violationf("expected %s, got %s", c, describe(value))
	}
	return c.check(b)
}

func (c *ByteStringConstraint) checkToken(t token.Token, _ *checkState) (any, error) {
	if t.Kind != token.KindBytes {
		return nil, unexpectedToken(c, t)
	}
	value := t.Bytes
	if value == nil {
		value = []byte{}
	}
	if err := c.check(value); err != nil {
		return nil, err
	}
	return value, nil
}

func (c *ByteStringConstraint) openFrame(t token.Token, _ *checkState) (frame, error) {
	return nil, unexpectedToken(c, t)
}

// TextConstraint accepts string values. Lengths count characters.
type TextConstraint struct {
	options
}

// Text returns a constraint accepting text. Accepts MaxLength,
// MinLength, and Pattern; length is unbounded by default.
func Text(opts ...Option) *TextConstraint {
	return &TextConstraint{
		options: collect("Text", options{}, optionMaxLength|optionMinLength|optionPattern, opts),
	}
}

func (c *TextConstraint) String() string {
	return "text(" + c.lengthBounds() + ")"
}

func (c *TextConstraint) check(value string) error {
	if err := c.checkLength(utf8.RuneCountInString(value), "characters"); err != nil {
		return err
	}
	if c.pattern != nil && !c.pattern.MatchString(value) {
		return violationf("text does not match pattern %q", c.pattern.String())
	}
	return nil
}

func (c *TextConstraint) checkValue(value any, _ *checkState) error {
	s, ok := value.(string)
	if !ok {
		return violationf("expected %s, got %s", c, describe(value))
	}
	return c.check(s)
}

func (c *TextConstraint) checkToken(t token.Token, _ *checkState) (any, error) {
	if t.Kind != token.KindText {
		return nil, unexpectedToken(c, t)
	}
	if err := c.check(t.Text); err != nil {
		return nil, err
	}
	return t.Text, nil
}

func (c *TextConstraint) openFrame(t token.Token, _ *checkState) (frame, error) {
	return nil, unexpectedToken(c, t)
}

// BooleanConstraint accepts only true and false.
type BooleanConstraint struct{}

// Boolean returns a constraint accepting bool values. Integers, including
// 0 and 1, violate.
func Boolean() *BooleanConstraint { return &BooleanConstraint{} }

func (c *BooleanConstraint) String() string { return "boolean" }

func (c *BooleanConstraint) checkValue(value any, _ *checkState) error {
	if _, ok := value.(bool); !ok {
		return violationf("expected %s, got %s", c, describe(value))
	}
	return nil
}

func (c *BooleanConstraint) checkToken(t token.Token, _ *checkState) (any, error) {
	if t.Kind != token.KindBoolean {
		return nil, unexpectedToken(c, t)
	}
	return t.Bool, nil
}

func (c *BooleanConstraint) openFrame(t token.Token, _ *checkState) (frame, error) {
	return nil, unexpectedToken(c, t)
}

// NumberConstraint accepts integers of any size and floating-point
// values.
type NumberConstraint struct{}

// Number returns a constraint accepting any integer or float. Booleans
// violate.
func Number() *NumberConstraint { return &NumberConstraint{} }

func (c *NumberConstraint) String() string { return "number" }

func (c *NumberConstraint) checkValue(value any, _ *checkState) error {
	switch value.(type) {
	case float32, float64:
		return nil
	}
	if _, ok := integerValue(value); ok {
		return nil
	}
	return violationf("expected %s, got %s", c, describe(value))
}

func (c *NumberConstraint) checkToken(t token.Token, _ *checkState) (any, error) {
	switch t.Kind {
	case token.KindInteger:
		return compactInteger(t.Integer()), nil
	case token.KindFloat:
		return t.Float, nil
	}
	return nil, unexpectedToken(c, t)
}

func (c *NumberConstraint) openFrame(t token.Token, _ *checkState) (frame, error) {
	return nil, unexpectedToken(c, t)
}
