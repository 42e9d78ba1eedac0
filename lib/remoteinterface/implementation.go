// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package remoteinterface

import (
	"context"
	"fmt"
)

// Call is one validated invocation delivered to a Target.
type Call struct {
	Method     *MethodSchema
	Positional []any
	Keyword    map[string]any
}

// Arg returns the argument bound to the named parameter, whether it was
// passed positionally or by keyword.
func (c *Call) Arg(name string) (any, bool) {
	if i, ok := c.Method.index[name]; ok && i < len(c.Positional) {
		return c.Positional[i], true
	}
	value, ok := c.Keyword[name]
	return value, ok
}

// Target is a local object that can be exported to peers and invoked.
type Target interface {
	// ExportedInterface returns Interface().Name().
	ExportedInterface() string

	// Interface returns the declared surface.
	Interface() *RemoteInterface

	// Invoke runs one call. Its arguments have already been checked
	// against call.Method; the result is checked after it returns.
	Invoke(ctx context.Context, call *Call) (any, error)
}

// MethodFunc handles one method of an Implementation.
type MethodFunc func(ctx context.Context, call *Call) (any, error)

// Implementation is a Target built from per-method handler functions.
type Implementation struct {
	iface    *RemoteInterface
	handlers map[string]MethodFunc
}

// NewImplementation returns an Implementation of iface with no
// handlers.
func NewImplementation(iface *RemoteInterface) *Implementation {
	return &Implementation{
		iface:    iface,
		handlers: make(map[string]MethodFunc),
	}
}

// Handle registers the handler for method. Panics if the interface does
// not declare method or a handler is already registered, since both are
// programming errors.
func (i *Implementation) Handle(method string, handler MethodFunc) {
	if _, ok := i.iface.Method(method); !ok {
		panic(fmt.Sprintf("remoteinterface.Implementation: %s declares no method %q", i.iface.name, method))
	}
	if _, exists := i.handlers[method]; exists {
		panic(fmt.Sprintf("remoteinterface.Implementation: duplicate handler for method %q", method))
	}
	i.handlers[method] = handler
}

func (i *Implementation) ExportedInterface() string { return i.iface.name }

func (i *Implementation) Interface() *RemoteInterface { return i.iface }

// Invoke dispatches call to its handler.
func (i *Implementation) Invoke(ctx context.Context, call *Call) (any, error) {
	handler, ok := i.handlers[call.Method.name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotImplemented, i.iface.name, call.Method.name)
	}
	return handler(ctx, call)
}
