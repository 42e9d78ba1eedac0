// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"regexp"
)

// Option adjusts a constraint at construction. Passing an option to a
// constraint it does not apply to panics: constraints are built at
// program initialization and a misapplied option is a programming error.
type Option struct {
	name  string
	kind  optionKind
	apply func(*options)
}

type optionKind uint16

const (
	optionMaxLength optionKind = 1 << iota
	optionMinLength
	optionUnbounded
	optionPattern
	optionMaxKeys
	optionMutability
	optionAllowUnknown
)

type options struct {
	maxLength    int
	hasMax       bool
	minLength    int
	pattern      *regexp.Regexp
	mutability   Mutability
	allowUnknown bool
}

// MaxLength bounds the length of a string or the member count of a list
// or set.
func MaxLength(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("schema: MaxLength(%d) is negative", n))
	}
	return Option{name: "MaxLength", kind: optionMaxLength, apply: func(o *options) {
		o.maxLength = n
		o.hasMax = true
	}}
}

// MinLength sets the minimum length of a string or list.
func MinLength(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("schema: MinLength(%d) is negative", n))
	}
	return Option{name: "MinLength", kind: optionMinLength, apply: func(o *options) {
		o.minLength = n
	}}
}

// Unbounded removes the default member-count bound of a list, set, or
// mapping. Inbound containers remain bounded by the token stream's
// per-message token limit.
func Unbounded() Option {
	return Option{name: "Unbounded", kind: optionUnbounded, apply: func(o *options) {
		o.hasMax = false
	}}
}

// Pattern requires a string to contain a match for re anywhere within
// it. Anchor the expression to require a full match.
func Pattern(re *regexp.Regexp) Option {
	if re == nil {
		panic("schema: Pattern(nil)")
	}
	return Option{name: "Pattern", kind: optionPattern, apply: func(o *options) {
		o.pattern = re
	}}
}

// MaxKeys bounds the number of entries in a mapping.
func MaxKeys(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("schema: MaxKeys(%d) is negative", n))
	}
	return Option{name: "MaxKeys", kind: optionMaxKeys, apply: func(o *options) {
		o.maxLength = n
		o.hasMax = true
	}}
}

// MutableOnly restricts a SetOf constraint to Set values.
func MutableOnly() Option {
	return Option{name: "MutableOnly", kind: optionMutability, apply: func(o *options) {
		o.mutability = MutableSets
	}}
}

// FrozenOnly restricts a SetOf constraint to FrozenSet values.
func FrozenOnly() Option {
	return Option{name: "FrozenOnly", kind: optionMutability, apply: func(o *options) {
		o.mutability = FrozenSets
	}}
}

// AllowUnknown lets an AttributeRecord accept attributes it does not
// declare. Their values are checked only for shape and depth.
func AllowUnknown() Option {
	return Option{name: "AllowUnknown", kind: optionAllowUnknown, apply: func(o *options) {
		o.allowUnknown = true
	}}
}

// collect applies opts over defaults, panicking on an option outside
// allowed.
func collect(constructor string, defaults options, allowed optionKind, opts []Option) options {
	result := defaults
	for _, opt := range opts {
		if opt.apply == nil {
			panic("schema: " + constructor + ": zero Option")
		}
		if opt.kind&allowed == 0 {
			panic("schema: " + constructor + " does not accept " + opt.name)
		}
		opt.apply(&result)
	}
	if result.hasMax && result.minLength > result.maxLength {
		panic(fmt.Sprintf("schema: %s: minimum length %d exceeds maximum %d", constructor, result.minLength, result.maxLength))
	}
	return result
}

// lengthBounds renders bounds for String methods.
func (o options) lengthBounds() string {
	switch {
	case o.hasMax && o.minLength > 0:
		return fmt.Sprintf("length %d..%d", o.minLength, o.maxLength)
	case o.hasMax:
		return fmt.Sprintf("max %d", o.maxLength)
	case o.minLength > 0:
		return fmt.Sprintf("min %d", o.minLength)
	}
	return "unbounded"
}

// checkLength reports a length outside the bounds.
func (o options) checkLength(length int, unit string) error {
	if o.hasMax && length > o.maxLength {
		return violationf("length %d exceeds maximum of %d %s", length, o.maxLength, unit)
	}
	if length < o.minLength {
		return violationf("length %d is below minimum of %d %s", length, o.minLength, unit)
	}
	return nil
}
