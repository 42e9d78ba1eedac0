// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"testing"
)

func TestMakeConstraint(t *testing.T) {
	integer, err := MakeConstraint(IntSpec)
	if err != nil {
		t.Fatalf("MakeConstraint(IntSpec): %v", err)
	}
	if c, ok := integer.(*IntegerConstraint); !ok || c.Bits() != 32 {
		t.Errorf("MakeConstraint(IntSpec) = %v, want 32-bit integer", integer)
	}

	kinds := []struct {
		spec Spec
		want any
	}{
		{TextSpec, &TextConstraint{}},
		{BytesSpec, &ByteStringConstraint{}},
		{BoolSpec, &BooleanConstraint{}},
		{FloatSpec, &NumberConstraint{}},
		{TupleSpec(IntSpec, BoolSpec), &TupleConstraint{}},
		{RemoteInterfaceSpec("calculator"), &RemoteInterfaceConstraint{}},
		{LocalInterfaceSpec[Referenceable](), &LocalInterfaceConstraint{}},
		{AnyReferenceableSpec, &RemoteInterfaceConstraint{}},
	}
	for _, test := range kinds {
		c, err := MakeConstraint(test.spec)
		if err != nil {
			t.Errorf("MakeConstraint(%s): %v", test.spec.Kind(), err)
			continue
		}
		if gotType, wantType := typeName(c), typeName(test.want); gotType != wantType {
			t.Errorf("MakeConstraint(%s) = %s, want %s", test.spec.Kind(), gotType, wantType)
		}
	}

	explicit := ListOf(Integer())
	same, err := MakeConstraint(Is(explicit))
	if err != nil || same != Constraint(explicit) {
		t.Errorf("MakeConstraint(Is(c)) = %v, %v; want c unchanged", same, err)
	}

	tuple := MustMakeConstraint(TupleSpec(IntSpec, BoolSpec))
	checkBoth(t, tuple, Tuple{1, true}, true)
	checkBoth(t, tuple, Tuple{1, 1}, false)

	unconstrained := MustMakeConstraint(AnyReferenceableSpec).(*RemoteInterfaceConstraint)
	if unconstrained.InterfaceName() != "" {
		t.Errorf("AnyReferenceableSpec interface = %q, want unconstrained", unconstrained.InterfaceName())
	}
}

func TestMakeConstraintRejectsInvalidSpecs(t *testing.T) {
	invalid := []Spec{
		{},
		Is(nil),
		RemoteInterfaceSpec(""),
		LocalInterfaceSpec[int](),
		TupleSpec(IntSpec, Spec{}),
	}
	for i, spec := range invalid {
		if _, err := MakeConstraint(spec); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("MakeConstraint(invalid[%d]) error = %v, want ErrInvalidSpec", i, err)
		}
	}
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return describe(value)
}
