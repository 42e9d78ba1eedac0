// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Direction says which way a value is crossing the boundary.
type Direction int

const (
	// Outbound values were produced locally and are about to be sent.
	Outbound Direction = iota
	// Inbound values arrived from a peer.
	Inbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// Violation reports that a value failed a constraint. Path locates the
// offending field from the outermost value inward: index segments
// ("[2]"), attribute or argument segments (".name"), and mapping key
// segments ("{key}").
type Violation struct {
	Path   []string
	Reason string

	// limit is set when a check stopped at a Limits bound rather than
	// at a value that does not conform.
	limit bool
}

func violationf(format string, args ...any) *Violation {
	return &Violation{Reason: fmt.Sprintf(format, args...)}
}

func limitViolationf(format string, args ...any) *Violation {
	return &Violation{Reason: fmt.Sprintf(format, args...), limit: true}
}

// Limited reports whether the check stopped at a configured bound, such
// as the maximum depth, rather than at a non-conforming value.
func (v *Violation) Limited() bool { return v.limit }

// clone returns a copy whose path can be prefixed independently.
func (v *Violation) clone() *Violation {
	c := *v
	c.Path = append([]string(nil), v.Path...)
	return &c
}

// Location renders Path as a single string, e.g. "add.b[0]".
func (v *Violation) Location() string {
	return strings.TrimPrefix(strings.Join(v.Path, ""), ".")
}

func (v *Violation) Error() string {
	if len(v.Path) == 0 {
		return "schema: violation: " + v.Reason
	}
	return "schema: violation at " + v.Location() + ": " + v.Reason
}

// WithPrefix prepends path segments to err's path when err is a
// *Violation. Other errors are returned unchanged.
func WithPrefix(err error, segments ...string) error {
	violation, ok := err.(*Violation)
	if !ok || len(segments) == 0 {
		return err
	}
	path := make([]string, 0, len(segments)+len(violation.Path))
	path = append(path, segments...)
	violation.Path = append(path, violation.Path...)
	return violation
}

// IndexSegment is the path segment for a sequence position.
func IndexSegment(index int) string {
	return "[" + strconv.Itoa(index) + "]"
}

// FieldSegment is the path segment for a named attribute or argument.
func FieldSegment(name string) string {
	return "." + name
}

// KeySegment is the path segment for a mapping value under key.
func KeySegment(key any) string {
	return fmt.Sprintf("{%v}", key)
}

// describe names a value's type for violation messages without
// rendering its contents, which may be large or sensitive.
func describe(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}
