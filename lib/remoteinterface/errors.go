// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package remoteinterface

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInterface matches every *InvalidInterfaceError.
	ErrInvalidInterface = errors.New("remoteinterface: invalid interface")

	// ErrNotImplemented is returned by Implementation.Invoke for a
	// declared method with no handler.
	ErrNotImplemented = errors.New("remoteinterface: method not implemented")
)

// InvalidInterfaceError reports a malformed interface or method
// declaration. It is raised while declaring, before any connection
// exists.
type InvalidInterfaceError struct {
	Interface string
	Method    string
	Param     string
	Reason    string
}

func (e *InvalidInterfaceError) Error() string {
	var location []string
	if e.Interface != "" {
		location = append(location, e.Interface)
	}
	if e.Method != "" {
		location = append(location, e.Method)
	}
	if e.Param != "" {
		location = append(location, e.Param)
	}
	if len(location) == 0 {
		return "remoteinterface: invalid interface: " + e.Reason
	}
	return "remoteinterface: invalid interface " + strings.Join(location, ".") + ": " + e.Reason
}

func (e *InvalidInterfaceError) Is(target error) bool { return target == ErrInvalidInterface }
