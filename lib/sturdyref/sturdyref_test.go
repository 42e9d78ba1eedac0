// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package sturdyref

import (
	"errors"
	"strings"
	"testing"
)

func TestEquality(t *testing.T) {
	a := New("127.0.0.1:9000", "abc")
	b := New("127.0.0.1:9000", "abc")
	if !a.Equal(b) || a != b {
		t.Error("identical SturdyRefs are not equal")
	}
	if a.Equal(New("127.0.0.1:9001", "abc")) {
		t.Error("SturdyRefs with different locations are equal")
	}
	if a.Equal(New("127.0.0.1:9000", "abd")) {
		t.Error("SturdyRefs with different swiss numbers are equal")
	}

	named := a
	named.Name = "calculator"
	if a.Equal(named) {
		t.Error("SturdyRefs with different names are equal")
	}

	set := map[SturdyRef]bool{a: true}
	if !set[b] {
		t.Error("equal SturdyRef did not match as a map key")
	}
}

func TestValidate(t *testing.T) {
	if err := New("host:1", "abc").Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if err := New("", "abc").Validate(); !errors.Is(err, ErrMissingLocation) {
		t.Errorf("Validate() = %v, want ErrMissingLocation", err)
	}
	if err := New("host:1", "").Validate(); !errors.Is(err, ErrMissingSwissNumber) {
		t.Errorf("Validate() = %v, want ErrMissingSwissNumber", err)
	}
}

func TestStringRedactsSwissNumber(t *testing.T) {
	ref := SturdyRef{Location: "host:1", SwissNumber: "topsecret", Name: "calculator"}
	rendered := ref.String()
	if strings.Contains(rendered, "topsecret") {
		t.Errorf("String() = %q leaks the swiss number", rendered)
	}
	if !strings.Contains(rendered, "calculator") || !strings.Contains(rendered, "host:1") {
		t.Errorf("String() = %q, want location and name", rendered)
	}
}

func TestNewSwissNumber(t *testing.T) {
	first, err := NewSwissNumber()
	if err != nil {
		t.Fatalf("NewSwissNumber: %v", err)
	}
	second, err := NewSwissNumber()
	if err != nil {
		t.Fatalf("NewSwissNumber: %v", err)
	}
	if first == second {
		t.Error("two swiss numbers are identical")
	}
	if len(first) != 32 {
		t.Errorf("len(swiss number) = %d, want 32", len(first))
	}
	if strings.ToLower(first) != first {
		t.Errorf("swiss number %q is not lowercase", first)
	}
}
