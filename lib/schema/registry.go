// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"sync"

	"github.com/abudulemusa/foolscap/lib/token"
)

// Registry holds named constraints so that definitions can refer to
// each other, or to themselves, before they exist. References resolve
// at check time.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]Constraint
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[string]Constraint)}
}

// Define binds name to constraint. Panics if name is already defined.
func (r *Registry) Define(name string, constraint Constraint) {
	if constraint == nil {
		panic("schema: Define(" + name + ") with nil constraint")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.definitions[name]; exists {
		panic("schema: constraint " + name + " already defined")
	}
	r.definitions[name] = constraint
}

// Lookup returns the constraint bound to name.
func (r *Registry) Lookup(name string) (Constraint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	constraint, ok := r.definitions[name]
	return constraint, ok
}

// Ref returns a constraint that behaves as whatever name is bound to
// when a check runs. Checking an unbound reference violates.
func (r *Registry) Ref(name string) *RefConstraint {
	return &RefConstraint{registry: r, name: name}
}

// RefConstraint is a named forward reference into a Registry.
type RefConstraint struct {
	registry *Registry
	name     string
}

func (c *RefConstraint) String() string { return "ref " + c.name }

func (c *RefConstraint) resolve(state *checkState) (Constraint, error) {
	if err := state.indirect(); err != nil {
		return nil, err
	}
	target, ok := c.registry.Lookup(c.name)
	if !ok {
		state.direct()
		return nil, violationf("constraint %s is not defined", c.name)
	}
	return target, nil
}

func (c *RefConstraint) checkValue(value any, state *checkState) error {
	target, err := c.resolve(state)
	if err != nil {
		return err
	}
	defer state.direct()
	return target.checkValue(value, state)
}

func (c *RefConstraint) checkToken(t token.Token, state *checkState) (any, error) {
	target, err := c.resolve(state)
	if err != nil {
		return nil, err
	}
	defer state.direct()
	return target.checkToken(t, state)
}

func (c *RefConstraint) openFrame(t token.Token, state *checkState) (frame, error) {
	target, err := c.resolve(state)
	if err != nil {
		return nil, err
	}
	defer state.direct()
	return target.openFrame(t, state)
}
