// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"errors"
	"fmt"
)

// ErrFraming matches every *FramingError via errors.Is.
var ErrFraming = errors.New("token: framing error")

// FramingError reports a malformed or oversized token stream. It is
// connection-fatal: the transport must close the connection rather
// than try to resynchronize.
type FramingError struct {
	Reason string
	Err    error
}

// Framingf returns a FramingError with a formatted reason.
func Framingf(format string, args ...any) *FramingError {
	return &FramingError{Reason: fmt.Sprintf(format, args...)}
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return "token: framing error: " + e.Reason + ": " + e.Err.Error()
	}
	return "token: framing error: " + e.Reason
}

func (e *FramingError) Unwrap() error { return e.Err }

func (e *FramingError) Is(target error) bool { return target == ErrFraming }
