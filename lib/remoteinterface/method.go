// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package remoteinterface

import (
	"fmt"

	"github.com/abudulemusa/foolscap/lib/schema"
)

// Param declares one method parameter.
type Param struct {
	Name     string
	Spec     schema.Spec
	Optional bool
}

// Arg declares a required parameter.
func Arg(name string, spec schema.Spec) Param {
	return Param{Name: name, Spec: spec}
}

// OptionalArg declares a parameter the caller may omit.
func OptionalArg(name string, spec schema.Spec) Param {
	return Param{Name: name, Spec: spec, Optional: true}
}

// Method declares one method: its parameters in positional order and
// the constraint on its result.
type Method struct {
	Name     string
	Params   []Param
	Response schema.Spec
}

type parameter struct {
	name       string
	constraint schema.Constraint
	required   bool
}

// MethodSchema is the validated, immutable form of a Method.
type MethodSchema struct {
	interfaceName string
	name          string
	params        []parameter
	index         map[string]int
	response      schema.Constraint
}

// NewMethodSchema derives constraints for every parameter and the
// response of method, which belongs to the named interface.
func NewMethodSchema(interfaceName string, method Method) (*MethodSchema, error) {
	invalid := func(param, format string, args ...any) error {
		return &InvalidInterfaceError{
			Interface: interfaceName,
			Method:    method.Name,
			Param:     param,
			Reason:    fmt.Sprintf(format, args...),
		}
	}
	if method.Name == "" {
		return nil, invalid("", "method has no name")
	}
	m := &MethodSchema{
		interfaceName: interfaceName,
		name:          method.Name,
		params:        make([]parameter, len(method.Params)),
		index:         make(map[string]int, len(method.Params)),
	}
	for i, param := range method.Params {
		if param.Name == "" {
			return nil, invalid("", "parameter %d has no name", i)
		}
		if _, duplicate := m.index[param.Name]; duplicate {
			return nil, invalid(param.Name, "parameter declared twice")
		}
		if param.Spec.IsZero() {
			return nil, invalid(param.Name, "parameter has no constraint")
		}
		constraint, err := schema.MakeConstraint(param.Spec)
		if err != nil {
			return nil, invalid(param.Name, "%v", err)
		}
		m.params[i] = parameter{name: param.Name, constraint: constraint, required: !param.Optional}
		m.index[param.Name] = i
	}
	if method.Response.IsZero() {
		return nil, invalid("", "response has no constraint")
	}
	response, err := schema.MakeConstraint(method.Response)
	if err != nil {
		return nil, invalid("", "response: %v", err)
	}
	m.response = response
	return m, nil
}

// Name returns the method name.
func (m *MethodSchema) Name() string { return m.name }

// Interface returns the name of the owning interface.
func (m *MethodSchema) Interface() string { return m.interfaceName }

// Arity returns the number of declared parameters.
func (m *MethodSchema) Arity() int { return len(m.params) }

// ParamNames returns the parameter names in positional order.
func (m *MethodSchema) ParamNames() []string {
	names := make([]string, len(m.params))
	for i, param := range m.params {
		names[i] = param.name
	}
	return names
}

// Response returns the result constraint.
func (m *MethodSchema) Response() schema.Constraint { return m.response }

func (m *MethodSchema) violation(format string, args ...any) error {
	return &schema.Violation{
		Path:   []string{schema.FieldSegment(m.name)},
		Reason: fmt.Sprintf(format, args...),
	}
}

// PositionalArgAt returns the name and constraint of the parameter at
// index. It violates when index is past the declared arity.
func (m *MethodSchema) PositionalArgAt(index int) (string, schema.Constraint, error) {
	if index < 0 || index >= len(m.params) {
		return "", nil, m.violation("takes %d positional arguments, got more", len(m.params))
	}
	param := m.params[index]
	return param.name, param.constraint, nil
}

// KeywordArg returns the name and constraint of the parameter named
// name. positionalGiven is the number of positional arguments in the
// call and bound holds the keyword arguments already received. It
// violates when the name is unknown, when a positional argument
// already filled that parameter, or when the keyword repeats.
func (m *MethodSchema) KeywordArg(name string, positionalGiven int, bound map[string]any) (string, schema.Constraint, error) {
	i, ok := m.index[name]
	if !ok {
		return "", nil, m.violation("unknown argument %q", name)
	}
	if i < positionalGiven {
		return "", nil, m.violation("argument %q given both positionally and by keyword", name)
	}
	if _, repeated := bound[name]; repeated {
		return "", nil, m.violation("argument %q given twice", name)
	}
	return name, m.params[i].constraint, nil
}

// CheckAllArgs validates a complete argument binding: no excess
// positional arguments, no parameter bound twice, every required
// parameter bound, and every value conforming. Violation paths start
// with the method name followed by the parameter name.
func (m *MethodSchema) CheckAllArgs(positional []any, keyword map[string]any, direction schema.Direction) error {
	return m.CheckAllArgsWithLimits(positional, keyword, direction, schema.DefaultLimits())
}

// CheckAllArgsWithLimits is CheckAllArgs under limits.
func (m *MethodSchema) CheckAllArgsWithLimits(positional []any, keyword map[string]any, direction schema.Direction, limits schema.Limits) error {
	if err := m.CheckBinding(positional, keyword); err != nil {
		return err
	}
	for i, param := range m.params {
		value, bound := m.bound(i, positional, keyword)
		if !bound {
			continue
		}
		if err := schema.CheckWithLimits(param.constraint, value, direction, limits); err != nil {
			return schema.WithPrefix(err, schema.FieldSegment(m.name), schema.FieldSegment(param.name))
		}
	}
	return nil
}

// CheckBinding validates which parameters the arguments bind, without
// checking their values. It suits arguments that were each checked as
// they were built.
func (m *MethodSchema) CheckBinding(positional []any, keyword map[string]any) error {
	if len(positional) > len(m.params) {
		return m.violation("takes %d positional arguments, got %d", len(m.params), len(positional))
	}
	for name := range keyword {
		if _, _, err := m.KeywordArg(name, len(positional), nil); err != nil {
			return err
		}
	}
	for i, param := range m.params {
		if _, bound := m.bound(i, positional, keyword); !bound && param.required {
			return m.violation("missing required argument %q", param.name)
		}
	}
	return nil
}

func (m *MethodSchema) bound(i int, positional []any, keyword map[string]any) (any, bool) {
	if i < len(positional) {
		return positional[i], true
	}
	value, ok := keyword[m.params[i].name]
	return value, ok
}

// CheckResult validates a return value against the response constraint.
func (m *MethodSchema) CheckResult(value any, direction schema.Direction) error {
	return m.CheckResultWithLimits(value, direction, schema.DefaultLimits())
}

// CheckResultWithLimits is CheckResult under limits.
func (m *MethodSchema) CheckResultWithLimits(value any, direction schema.Direction, limits schema.Limits) error {
	if err := schema.CheckWithLimits(m.response, value, direction, limits); err != nil {
		return schema.WithPrefix(err, schema.FieldSegment(m.name), schema.FieldSegment("<result>"))
	}
	return nil
}
