// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
	"reflect"
)

// SpecKind is the variant of a Spec.
type SpecKind uint8

const (
	specInvalid SpecKind = iota
	SpecInteger
	SpecText
	SpecBytes
	SpecBoolean
	SpecFloat
	SpecConstraint
	SpecTuple
	SpecRemoteInterface
	SpecLocalInterface
	SpecAnyReferenceable
)

func (k SpecKind) String() string {
	switch k {
	case SpecInteger:
		return "integer"
	case SpecText:
		return "text"
	case SpecBytes:
		return "bytes"
	case SpecBoolean:
		return "boolean"
	case SpecFloat:
		return "float"
	case SpecConstraint:
		return "constraint"
	case SpecTuple:
		return "tuple"
	case SpecRemoteInterface:
		return "remote interface"
	case SpecLocalInterface:
		return "local interface"
	case SpecAnyReferenceable:
		return "any referenceable"
	}
	return "invalid"
}

// Spec is a declaration from which a Constraint is derived: a type
// shorthand, an explicit Constraint, or a composition of specs. The
// zero Spec is invalid, so a parameter declared without one fails
// derivation.
type Spec struct {
	kind          SpecKind
	constraint    Constraint
	elements      []Spec
	name          string
	interfaceType reflect.Type
}

// Shorthand specs for the primitive types.
var (
	IntSpec   = Spec{kind: SpecInteger}
	TextSpec  = Spec{kind: SpecText}
	BytesSpec = Spec{kind: SpecBytes}
	BoolSpec  = Spec{kind: SpecBoolean}
	FloatSpec = Spec{kind: SpecFloat}

	// AnyReferenceableSpec accepts a reference to any capability.
	AnyReferenceableSpec = Spec{kind: SpecAnyReferenceable}
)

// ErrInvalidSpec is returned by MakeConstraint for specs that do not
// describe a constraint.
var ErrInvalidSpec = errors.New("schema: invalid spec")

// Is returns a spec that derives to constraint unchanged.
func Is(constraint Constraint) Spec {
	return Spec{kind: SpecConstraint, constraint: constraint}
}

// TupleSpec returns a spec for a fixed-arity tuple of elements.
func TupleSpec(elements ...Spec) Spec {
	return Spec{kind: SpecTuple, elements: append([]Spec(nil), elements...)}
}

// RemoteInterfaceSpec returns a spec for a reference to an object
// implementing the named RemoteInterface.
func RemoteInterfaceSpec(name string) Spec {
	return Spec{kind: SpecRemoteInterface, name: name}
}

// LocalInterfaceSpec returns a spec for a local object implementing T.
func LocalInterfaceSpec[T any]() Spec {
	return Spec{kind: SpecLocalInterface, interfaceType: reflect.TypeFor[T]()}
}

// Kind returns the variant.
func (s Spec) Kind() SpecKind { return s.kind }

// IsZero reports whether s is the zero Spec.
func (s Spec) IsZero() bool { return s.kind == specInvalid }

// MakeConstraint derives the constraint a spec describes. Integer
// shorthand derives to a 32-bit Integer, text and bytes to unbounded
// Text and ByteString, float to Number.
func MakeConstraint(spec Spec) (Constraint, error) {
	switch spec.kind {
	case SpecInteger:
		return Integer(), nil
	case SpecText:
		return Text(), nil
	case SpecBytes:
		return ByteString(), nil
	case SpecBoolean:
		return Boolean(), nil
	case SpecFloat:
		return Number(), nil
	case SpecConstraint:
		if spec.constraint == nil {
			return nil, fmt.Errorf("%w: nil constraint", ErrInvalidSpec)
		}
		return spec.constraint, nil
	case SpecTuple:
		elements := make([]Constraint, len(spec.elements))
		for i, element := range spec.elements {
			constraint, err := MakeConstraint(element)
			if err != nil {
				return nil, fmt.Errorf("tuple element %d: %w", i, err)
			}
			elements[i] = constraint
		}
		return TupleOf(elements...), nil
	case SpecRemoteInterface:
		if spec.name == "" {
			return nil, fmt.Errorf("%w: remote interface spec without a name", ErrInvalidSpec)
		}
		return RemoteInterfaceRef(spec.name), nil
	case SpecLocalInterface:
		if spec.interfaceType == nil || spec.interfaceType.Kind() != reflect.Interface {
			return nil, fmt.Errorf("%w: local interface spec for non-interface type %v", ErrInvalidSpec, spec.interfaceType)
		}
		return LocalInterfaceOf(spec.interfaceType), nil
	case SpecAnyReferenceable:
		return RemoteInterfaceRef(""), nil
	case specInvalid:
		return nil, fmt.Errorf("%w: no spec given", ErrInvalidSpec)
	}
	return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidSpec, spec.kind)
}

// MustMakeConstraint is MakeConstraint for specs known to be valid.
func MustMakeConstraint(spec Spec) Constraint {
	constraint, err := MakeConstraint(spec)
	if err != nil {
		panic(err)
	}
	return constraint
}
