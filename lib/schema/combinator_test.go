// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"strings"
	"testing"
)

func TestListOf(t *testing.T) {
	c := ListOf(ByteString(MaxLength(10)), MaxLength(3))
	five := []byte("abcde")

	checkBoth(t, c, []any{five, five, five}, true)
	checkBoth(t, c, [][]byte{five, five}, true)
	checkBoth(t, c, []any{five, five, five, five, five}, false)
	checkBoth(t, c, []any{[]byte(strings.Repeat("x", 11))}, false)
	checkBoth(t, c, Tuple{five}, false)
	checkBoth(t, c, five, false)
}

func TestListOfDefaultBound(t *testing.T) {
	values := make([]any, DefaultMaxLength+1)
	for i := range values {
		values[i] = i
	}
	checkBoth(t, ListOf(Integer()), values, false)
	checkBoth(t, ListOf(Integer()), values[:DefaultMaxLength], true)
	checkBoth(t, ListOf(Integer(), Unbounded()), values, true)
}

func TestTupleIsNotList(t *testing.T) {
	c := TupleOf(Integer(), Text())
	checkBoth(t, c, Tuple{1, "a"}, true)
	checkBoth(t, c, []any{1, "a"}, false)
	checkBoth(t, c, Tuple{1}, false)
	checkBoth(t, c, Tuple{1, "a", 2}, false)
	checkBoth(t, c, Tuple{"a", 1}, false)
}

func TestSetOfMutability(t *testing.T) {
	mutable := NewSet(1, 2)
	frozen := NewFrozenSet(1, 2)

	checkBoth(t, SetOf(Integer()), mutable, true)
	checkBoth(t, SetOf(Integer()), frozen, true)
	checkBoth(t, SetOf(Integer(), MutableOnly()), mutable, true)
	checkBoth(t, SetOf(Integer(), MutableOnly()), frozen, false)
	checkBoth(t, SetOf(Integer(), FrozenOnly()), frozen, true)
	checkBoth(t, SetOf(Integer(), FrozenOnly()), mutable, false)

	checkBoth(t, SetOf(Integer(), MaxLength(1)), mutable, false)
	checkBoth(t, SetOf(Integer()), NewSet("a"), false)
	checkBoth(t, SetOf(Integer()), []any{1}, false)
}

func TestMappingOf(t *testing.T) {
	c := MappingOf(Text(), Integer(), MaxKeys(2))
	checkBoth(t, c, map[string]int{"a": 1, "b": 2}, true)
	checkBoth(t, c, map[any]any{"a": 1}, true)
	checkBoth(t, c, map[string]int{"a": 1, "b": 2, "c": 3}, false)
	checkBoth(t, c, map[string]string{"a": "x"}, false)
	checkBoth(t, c, map[int]int{1: 1}, false)
	checkBoth(t, c, NewSet("a"), false)
	checkBoth(t, c, []any{"a", 1}, false)
}

func TestAttributeRecord(t *testing.T) {
	fields := []Field{
		Attribute("name", Text()),
		Attribute("age", Integer()),
	}
	closed := AttributeRecord(fields)
	open := AttributeRecord(fields, AllowUnknown())

	checkBoth(t, closed, map[string]any{"name": "ada", "age": 36}, true)
	checkBoth(t, closed, map[any]any{"name": "ada", "age": 36}, true)
	checkBoth(t, closed, map[string]any{"name": "ada"}, false)
	checkBoth(t, closed, map[string]any{"name": "ada", "age": "old"}, false)
	checkBoth(t, closed, map[string]any{"name": "ada", "age": 36, "extra": 1}, false)
	checkBoth(t, open, map[string]any{"name": "ada", "age": 36, "extra": 1}, true)
	checkBoth(t, closed, map[int]any{1: "ada"}, false)
}

func TestViolationPath(t *testing.T) {
	c := ListOf(TupleOf(Integer(), Text()))
	err := Check(c, []any{Tuple{1, "a"}, Tuple{2, 3}}, Outbound)
	var violation *Violation
	if !errors.As(err, &violation) {
		t.Fatalf("Check error = %v, want *Violation", err)
	}
	if got := violation.Location(); got != "[1][1]" {
		t.Errorf("Location() = %q, want %q", got, "[1][1]")
	}

	record := AttributeRecord([]Field{Attribute("items", ListOf(Integer()))})
	err = Check(record, map[string]any{"items": []any{1, "x"}}, Outbound)
	if !errors.As(err, &violation) {
		t.Fatalf("Check error = %v, want *Violation", err)
	}
	if got := violation.Location(); got != "items[1]" {
		t.Errorf("Location() = %q, want %q", got, "items[1]")
	}
}

func TestChoice(t *testing.T) {
	c := Choice(Integer(), Text())
	checkBoth(t, c, 1, true)
	checkBoth(t, c, "a", true)
	checkBoth(t, c, true, false)

	c.Append(Boolean())
	checkBoth(t, c, true, true)
	if got := len(c.Alternatives()); got != 3 {
		t.Errorf("len(Alternatives()) = %d, want 3", got)
	}
}

// recursiveChoice is a grammar where a value is an integer or a pair of
// an integer and another value.
func recursiveChoice() *ChoiceConstraint {
	c := Choice(Integer())
	c.Append(TupleOf(Integer(), c))
	return c
}

func TestRecursiveChoice(t *testing.T) {
	c := recursiveChoice()
	checkBoth(t, c, Tuple{1, Tuple{2, 3}}, true)
	checkBoth(t, c, Tuple{1, Tuple{2, "x"}}, false)
}

func TestSelfContainingValueViolates(t *testing.T) {
	c := recursiveChoice()
	cycle := Tuple{1, nil}
	cycle[1] = cycle

	checkBoth(t, c, cycle, false)

	registry := NewRegistry()
	registry.Define("tree", Choice(Integer(), ListOf(registry.Ref("tree"))))
	list := []any{1, nil}
	list[1] = list
	checkBoth(t, registry.Ref("tree"), list, false)
}

func TestSharedSubvalueIsNotACycle(t *testing.T) {
	shared := Tuple{2, 3}
	checkBoth(t, TupleOf(recursiveChoice(), recursiveChoice()), Tuple{shared, shared}, true)
}

func TestDepthLimit(t *testing.T) {
	c := recursiveChoice()
	var value any = 0
	for i := range 100 {
		value = Tuple{i, value}
	}
	checkBoth(t, c, value, false)

	err := CheckWithLimits(c, value, Outbound, Limits{MaxDepth: 1000, MaxContainerLength: 10})
	if err != nil {
		t.Errorf("CheckWithLimits with MaxDepth 1000: %v", err)
	}
}

func TestDegenerateChoiceTerminates(t *testing.T) {
	c := Choice()
	c.Append(c)
	checkBoth(t, c, 1, false)
}

func TestRegistryForwardReference(t *testing.T) {
	registry := NewRegistry()
	registry.Define("tree", Choice(Integer(), ListOf(registry.Ref("tree"))))
	tree, ok := registry.Lookup("tree")
	if !ok {
		t.Fatal("Lookup(tree) not found")
	}
	checkBoth(t, tree, []any{1, []any{2, []any{3}}}, true)
	checkBoth(t, tree, []any{1, []any{"x"}}, false)

	checkBoth(t, registry.Ref("missing"), 1, false)
}
