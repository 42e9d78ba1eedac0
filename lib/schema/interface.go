// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"reflect"

	"github.com/abudulemusa/foolscap/lib/token"
)

// RemoteInterfaceConstraint accepts capability references declaring a
// named interface.
type RemoteInterfaceConstraint struct {
	name string
}

// RemoteInterfaceRef returns a constraint accepting references to
// objects implementing the named RemoteInterface. An empty name accepts
// any capability reference.
//
// Inbound, the value must be a RemoteProxy. Outbound, it may be a local
// Referenceable, or a RemoteProxy being passed on to another party (a
// gift); either way its declared interface must match.
func RemoteInterfaceRef(name string) *RemoteInterfaceConstraint {
	return &RemoteInterfaceConstraint{name: name}
}

// InterfaceName returns the required interface, or "" when unconstrained.
func (c *RemoteInterfaceConstraint) InterfaceName() string { return c.name }

func (c *RemoteInterfaceConstraint) String() string {
	if c.name == "" {
		return "reference"
	}
	return "reference to " + c.name
}

func (c *RemoteInterfaceConstraint) matches(declared string) error {
	if c.name != "" && declared != c.name {
		if declared == "" {
			return violationf("reference declares no interface, want %s", c.name)
		}
		return violationf("reference declares interface %s, want %s", declared, c.name)
	}
	return nil
}

func (c *RemoteInterfaceConstraint) checkValue(value any, state *checkState) error {
	if state.direction == Outbound {
		if local, ok := value.(Referenceable); ok {
			return c.matches(local.ExportedInterface())
		}
	}
	if proxy, ok := value.(RemoteProxy); ok {
		return c.matches(proxy.RemoteInterface())
	}
	if state.direction == Inbound {
		return violationf("expected remote reference, got %s", describe(value))
	}
	return violationf("expected %s, got %s", c, describe(value))
}

func (c *RemoteInterfaceConstraint) checkToken(t token.Token, state *checkState) (any, error) {
	if t.Kind != token.KindMyReference {
		return nil, unexpectedToken(c, t)
	}
	if err := c.matches(t.Text); err != nil {
		return nil, err
	}
	value, err := decodeReference(t, state)
	if err != nil {
		return nil, err
	}
	if err := c.checkValue(value, state); err != nil {
		return nil, err
	}
	return value, nil
}

func (c *RemoteInterfaceConstraint) openFrame(t token.Token, _ *checkState) (frame, error) {
	return nil, unexpectedToken(c, t)
}

// LocalInterfaceConstraint accepts local objects implementing a Go
// interface. Inbound, it matches references a peer hands back to the
// objects this side exported.
type LocalInterfaceConstraint struct {
	interfaceType reflect.Type
}

// LocalInterface returns a constraint accepting values implementing T,
// which must be an interface type.
func LocalInterface[T any]() *LocalInterfaceConstraint {
	return LocalInterfaceOf(reflect.TypeFor[T]())
}

// LocalInterfaceOf is LocalInterface for a reflected interface type.
func LocalInterfaceOf(interfaceType reflect.Type) *LocalInterfaceConstraint {
	if interfaceType == nil || interfaceType.Kind() != reflect.Interface {
		panic("schema: LocalInterfaceOf requires an interface type")
	}
	return &LocalInterfaceConstraint{interfaceType: interfaceType}
}

func (c *LocalInterfaceConstraint) String() string {
	return "local " + c.interfaceType.String()
}

func (c *LocalInterfaceConstraint) checkValue(value any, _ *checkState) error {
	if value == nil || !reflect.TypeOf(value).Implements(c.interfaceType) {
		return violationf("expected %s, got %s", c, describe(value))
	}
	return nil
}

func (c *LocalInterfaceConstraint) checkToken(t token.Token, state *checkState) (any, error) {
	if t.Kind != token.KindYourReference {
		return nil, unexpectedToken(c, t)
	}
	value, err := decodeReference(t, state)
	if err != nil {
		return nil, err
	}
	if err := c.checkValue(value, state); err != nil {
		return nil, err
	}
	return value, nil
}

func (c *LocalInterfaceConstraint) openFrame(t token.Token, _ *checkState) (frame, error) {
	return nil, unexpectedToken(c, t)
}

func decodeReference(t token.Token, state *checkState) (any, error) {
	if state.references == nil {
		return nil, violationf("references are not accepted here")
	}
	return state.references.DecodeReference(t)
}

// anyConstraint accepts any representable value. It backs undeclared
// record attributes and containers collected for an ambiguous choice,
// so its containers are bounded by Limits.MaxContainerLength.
type anyConstraint struct{}

func (anyConstraint) String() string { return "any" }

func (c anyConstraint) checkValue(value any, state *checkState) error {
	switch value.(type) {
	case string, []byte, bool, float32, float64, Referenceable, RemoteProxy:
		return nil
	}
	if _, ok := integerValue(value); ok {
		return nil
	}
	var members []any
	switch v := value.(type) {
	case Tuple:
		members = v
	case Set:
		for member := range v {
			members = append(members, member)
		}
	case FrozenSet:
		for member := range v {
			members = append(members, member)
		}
	default:
		if list, ok := isList(value); ok {
			for i := range list.Len() {
				members = append(members, list.Index(i).Interface())
			}
		} else if mapping, ok := isMapping(value); ok {
			entries := mapping.MapRange()
			for entries.Next() {
				members = append(members, entries.Key().Interface(), entries.Value().Interface())
			}
		} else {
			return violationf("unsupported value of type %s", describe(value))
		}
	}
	if len(members) > 2*state.limits.MaxContainerLength {
		return violationf("container exceeds maximum of %d members", state.limits.MaxContainerLength)
	}
	id, tracked, err := state.enter(value)
	if err != nil {
		return err
	}
	defer state.leave(id, tracked)
	for i, member := range members {
		if err := c.checkValue(member, state); err != nil {
			return WithPrefix(err, IndexSegment(i))
		}
	}
	return nil
}

func (c anyConstraint) checkToken(t token.Token, state *checkState) (any, error) {
	switch t.Kind {
	case token.KindInteger:
		return compactInteger(t.Integer()), nil
	case token.KindBytes:
		if t.Bytes == nil {
			return []byte{}, nil
		}
		return t.Bytes, nil
	case token.KindText:
		return t.Text, nil
	case token.KindBoolean:
		return t.Bool, nil
	case token.KindFloat:
		return t.Float, nil
	case token.KindMyReference, token.KindYourReference:
		return decodeReference(t, state)
	}
	return nil, unexpectedToken(c, t)
}

func (c anyConstraint) openFrame(t token.Token, state *checkState) (frame, error) {
	return genericFrame(t, state.limits.MaxContainerLength)
}

// genericFrame collects a container of any kind holding at most limit
// members, or limit entries for a mapping. Its members are bounded by
// Limits.MaxContainerLength.
func genericFrame(t token.Token, limit int) (frame, error) {
	if t.Kind != token.KindOpen {
		return nil, unexpectedToken(anyConstraint{}, t)
	}
	switch t.Container {
	case token.ContainerList:
		return &listFrame{constraint: &ListConstraint{
			element: anyConstraint{},
			options: options{maxLength: limit, hasMax: true},
		}, values: []any{}}, nil
	case token.ContainerTuple:
		return &genericTupleFrame{limit: limit}, nil
	case token.ContainerSet, token.ContainerFrozenSet:
		return &setFrame{
			element: anyConstraint{},
			bounds:  options{maxLength: limit, hasMax: true},
			frozen:  t.Container == token.ContainerFrozenSet,
			members: make(map[any]struct{}),
		}, nil
	case token.ContainerMapping:
		return &mappingFrame{
			key:     anyConstraint{},
			value:   anyConstraint{},
			bounds:  options{maxLength: limit, hasMax: true},
			entries: make(map[any]any),
		}, nil
	}
	return nil, unexpectedToken(anyConstraint{}, t)
}

// genericTupleFrame collects a tuple of unknown arity.
type genericTupleFrame struct {
	limit  int
	values Tuple
}

func (f *genericTupleFrame) child(*checkState) (Constraint, string, error) {
	if len(f.values) >= f.limit {
		return nil, "", violationf("tuple exceeds maximum of %d elements", f.limit)
	}
	return anyConstraint{}, IndexSegment(len(f.values)), nil
}

func (f *genericTupleFrame) add(value any, _ *checkState) error {
	f.values = append(f.values, value)
	return nil
}

func (f *genericTupleFrame) close(*checkState) (any, error) {
	if f.values == nil {
		return Tuple{}, nil
	}
	return f.values, nil
}
