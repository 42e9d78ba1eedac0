// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package remoteinterface

import (
	"sync"

	"github.com/abudulemusa/foolscap/lib/schema"
)

// RemoteInterface is a named, wire-stable set of method schemas.
type RemoteInterface struct {
	name    string
	methods map[string]*MethodSchema
	order   []*MethodSchema
}

// New builds a RemoteInterface. It fails with *InvalidInterfaceError if
// any method is malformed or two methods share a name.
func New(name string, methods ...Method) (*RemoteInterface, error) {
	if name == "" {
		return nil, &InvalidInterfaceError{Reason: "interface has no name"}
	}
	iface := &RemoteInterface{
		name:    name,
		methods: make(map[string]*MethodSchema, len(methods)),
	}
	for _, method := range methods {
		if _, duplicate := iface.methods[method.Name]; duplicate {
			return nil, &InvalidInterfaceError{Interface: name, Method: method.Name, Reason: "method declared twice"}
		}
		m, err := NewMethodSchema(name, method)
		if err != nil {
			return nil, err
		}
		iface.methods[method.Name] = m
		iface.order = append(iface.order, m)
	}
	return iface, nil
}

// MustNew is New for declarations known to be valid, typically package
// level variables.
func MustNew(name string, methods ...Method) *RemoteInterface {
	iface, err := New(name, methods...)
	if err != nil {
		panic(err)
	}
	return iface
}

// Name returns the wire name.
func (r *RemoteInterface) Name() string { return r.name }

// Method returns the schema for the named method.
func (r *RemoteInterface) Method(name string) (*MethodSchema, bool) {
	m, ok := r.methods[name]
	return m, ok
}

// Methods returns the schemas in declaration order.
func (r *RemoteInterface) Methods() []*MethodSchema {
	return append([]*MethodSchema(nil), r.order...)
}

// Spec returns a spec for references to objects implementing r, for use
// in other declarations.
func (r *RemoteInterface) Spec() schema.Spec {
	return schema.RemoteInterfaceSpec(r.name)
}

// Constraint returns a constraint accepting references to objects
// implementing r.
func (r *RemoteInterface) Constraint() schema.Constraint {
	return schema.RemoteInterfaceRef(r.name)
}

// Registry maps interface names to definitions. A broker consults it to
// find the schema for calls through a remote reference.
type Registry struct {
	mu         sync.RWMutex
	interfaces map[string]*RemoteInterface
}

// NewRegistry returns a Registry holding interfaces. It panics on
// duplicate names, like Register.
func NewRegistry(interfaces ...*RemoteInterface) *Registry {
	r := &Registry{interfaces: make(map[string]*RemoteInterface)}
	for _, iface := range interfaces {
		if err := r.Register(iface); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds iface. Registering a different definition under a name
// already present fails; re-registering the same definition is a no-op.
func (r *Registry) Register(iface *RemoteInterface) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.interfaces[iface.name]; ok && existing != iface {
		return &InvalidInterfaceError{Interface: iface.name, Reason: "a different interface is already registered under this name"}
	}
	r.interfaces[iface.name] = iface
	return nil
}

// Lookup returns the interface registered under name.
func (r *Registry) Lookup(name string) (*RemoteInterface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	iface, ok := r.interfaces[name]
	return iface, ok
}
