// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"math/big"
	"reflect"

	"github.com/abudulemusa/foolscap/lib/token"
)

// Tuple is a fixed-arity ordered sequence. A TupleOf constraint accepts
// only Tuple values; a ListOf constraint rejects them.
type Tuple []any

// Set is a mutable unordered collection of distinct members.
type Set map[any]struct{}

// FrozenSet is an unordered collection of distinct members that its
// producer treats as immutable. SetOf constraints may accept only one
// of Set and FrozenSet; see [Mutability].
type FrozenSet map[any]struct{}

// NewSet returns a Set holding members. Members must be hashable.
func NewSet(members ...any) Set {
	set := make(Set, len(members))
	for _, member := range members {
		set[member] = struct{}{}
	}
	return set
}

// NewFrozenSet returns a FrozenSet holding members. Members must be
// hashable.
func NewFrozenSet(members ...any) FrozenSet {
	set := make(FrozenSet, len(members))
	for _, member := range members {
		set[member] = struct{}{}
	}
	return set
}

// Referenceable is a local object that may be exposed to a peer by
// reference. ExportedInterface names the RemoteInterface it implements,
// or "" when it declares none.
type Referenceable interface {
	ExportedInterface() string
}

// RemoteProxy is a handle on an object living in another process.
// RemoteInterface is the interface name the owner declared for it.
type RemoteProxy interface {
	RemoteInterface() string
}

// ReferenceDecoder turns inbound reference tokens into values. The
// broker implements it; a Builder without one rejects every reference.
type ReferenceDecoder interface {
	DecodeReference(t token.Token) (any, error)
}

// ReferenceEncoder turns capability values into reference tokens. The
// broker implements it and may allocate export ids as a side effect.
type ReferenceEncoder interface {
	EncodeReference(value any) (token.Token, error)
}

// integerValue converts any Go integer representation to a big.Int.
// Booleans are not integers.
func integerValue(value any) (*big.Int, bool) {
	switch v := value.(type) {
	case int:
		return big.NewInt(int64(v)), true
	case int8:
		return big.NewInt(int64(v)), true
	case int16:
		return big.NewInt(int64(v)), true
	case int32:
		return big.NewInt(int64(v)), true
	case int64:
		return big.NewInt(v), true
	case uint:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	case *big.Int:
		if v == nil {
			return nil, false
		}
		return v, true
	}
	return nil, false
}

// compactInteger is the inbound representation of an integer: int64
// when it fits, *big.Int otherwise.
func compactInteger(n *big.Int) any {
	if n.IsInt64() {
		return n.Int64()
	}
	return n
}

// isList reports whether value is a list: any slice other than a Tuple
// or a byte string.
func isList(value any) (reflect.Value, bool) {
	switch value.(type) {
	case Tuple, []byte, nil:
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice {
		return reflect.Value{}, false
	}
	return v, true
}

// isMapping reports whether value is a mapping: any map type other than
// the set types.
func isMapping(value any) (reflect.Value, bool) {
	switch value.(type) {
	case Set, FrozenSet, nil:
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Map {
		return reflect.Value{}, false
	}
	return v, true
}

// hashable reports whether value can be a set member or mapping key
// without panicking. Reference types compare by identity.
func hashable(value any) bool {
	if value == nil {
		return false
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String, reflect.Pointer:
		return true
	}
	return false
}

// identity is the address of a container, used to detect a value that
// contains itself. Slices include their length so that a sub-slice
// sharing a backing array is a different container.
type identity struct {
	kind    reflect.Kind
	pointer uintptr
	length  int
}

// identityOf returns the identity of containers that could participate
// in a cycle. Empty containers cannot, and Go may share one address
// among all of them, so they are not tracked.
func identityOf(value any) (identity, bool) {
	if value == nil {
		return identity{}, false
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		if v.Len() == 0 {
			return identity{}, false
		}
		return identity{kind: reflect.Slice, pointer: v.Pointer(), length: v.Len()}, true
	case reflect.Map:
		if v.Len() == 0 {
			return identity{}, false
		}
		return identity{kind: reflect.Map, pointer: v.Pointer()}, true
	}
	return identity{}, false
}
