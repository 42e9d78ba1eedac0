// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/abudulemusa/foolscap/lib/token"
)

// DefaultMaxLength bounds ListOf and SetOf, and DefaultMaxKeys bounds
// MappingOf, unless MaxLength, MaxKeys, or Unbounded is given.
const (
	DefaultMaxLength = 30
	DefaultMaxKeys   = 30
)

// ChoiceConstraint accepts a value when any alternative does. The
// alternative list may grow after construction to express recursive
// grammars; each check reads one immutable snapshot of it.
type ChoiceConstraint struct {
	alternatives atomic.Pointer[[]Constraint]
}

// Choice returns a constraint accepting values that satisfy at least one
// of alternatives, tried in order.
func Choice(alternatives ...Constraint) *ChoiceConstraint {
	c := &ChoiceConstraint{}
	snapshot := append([]Constraint(nil), alternatives...)
	c.alternatives.Store(&snapshot)
	return c
}

// Append adds alternatives. Checks already in progress keep the list
// they started with.
func (c *ChoiceConstraint) Append(alternatives ...Constraint) {
	for {
		current := c.alternatives.Load()
		next := make([]Constraint, 0, len(*current)+len(alternatives))
		next = append(next, *current...)
		next = append(next, alternatives...)
		if c.alternatives.CompareAndSwap(current, &next) {
			return
		}
	}
}

// Alternatives returns the current alternatives. The slice must not be
// modified.
func (c *ChoiceConstraint) Alternatives() []Constraint {
	return *c.alternatives.Load()
}

// String does not render the alternatives, which may include the choice
// itself.
func (c *ChoiceConstraint) String() string {
	return fmt.Sprintf("choice of %d", len(c.Alternatives()))
}

func (c *ChoiceConstraint) checkValue(value any, state *checkState) error {
	return c.checkAlternatives(value, c.Alternatives(), state)
}

// checkAlternatives tries alternatives in order. The verdict for a
// container is kept for the rest of the check, so a member shared by
// several alternatives is checked against this choice once. A failure
// caused by a limit is reported as that failure, not as a mismatch.
func (c *ChoiceConstraint) checkAlternatives(value any, alternatives []Constraint, state *checkState) error {
	id, tracked := identityOf(value)
	visit := choiceVisit{choice: c, value: id, depth: state.depth}
	if tracked {
		if verdict, seen := state.verdicts[visit]; seen {
			if verdict == nil {
				return nil
			}
			return verdict.clone()
		}
	}
	if err := state.indirect(); err != nil {
		return err
	}
	defer state.direct()

	var limited *Violation
	for _, alternative := range alternatives {
		err := alternative.checkValue(value, state)
		if err == nil {
			if tracked {
				state.verdicts[visit] = nil
			}
			return nil
		}
		if v, ok := err.(*Violation); ok && v.limit && limited == nil {
			limited = v
		}
	}
	verdict := limited
	if verdict == nil {
		verdict = violationf("%s matches none of %d alternatives", describe(value), len(alternatives))
	}
	if tracked {
		state.verdicts[visit] = verdict.clone()
	}
	return verdict
}

func (c *ChoiceConstraint) checkToken(t token.Token, state *checkState) (any, error) {
	if err := state.indirect(); err != nil {
		return nil, err
	}
	defer state.direct()
	alternatives := c.Alternatives()
	for _, alternative := range alternatives {
		if value, err := alternative.checkToken(t, state); err == nil {
			return value, nil
		}
	}
	return nil, violationf("%s matches none of %d alternatives", t, len(alternatives))
}

// openFrame commits to the single alternative accepting the container.
// When several accept it, the container is collected generically, up to
// the most members any of them allows, and the value is checked against
// those alternatives when it closes.
func (c *ChoiceConstraint) openFrame(t token.Token, state *checkState) (frame, error) {
	if err := state.indirect(); err != nil {
		return nil, err
	}
	defer state.direct()
	var (
		candidates []Constraint
		first      frame
	)
	for _, alternative := range c.Alternatives() {
		f, err := alternative.openFrame(t, state)
		if err != nil {
			continue
		}
		if first == nil {
			first = f
		}
		candidates = append(candidates, alternative)
	}
	switch len(candidates) {
	case 0:
		return nil, violationf("%s matches none of %d alternatives", t, len(c.Alternatives()))
	case 1:
		return first, nil
	}
	limit := state.limits.MaxContainerLength
	if bound, ok := memberLimit(candidates); ok && bound < limit {
		limit = bound
	}
	generic, err := genericFrame(t, limit)
	if err != nil {
		return nil, err
	}
	return &deferredFrame{choice: c, inner: generic, candidates: candidates}, nil
}

// memberLimit returns the most members any of candidates accepts, when
// every one of them declares a bound.
func memberLimit(candidates []Constraint) (int, bool) {
	limit := 0
	for _, candidate := range candidates {
		var bound int
		switch c := candidate.(type) {
		case *TupleConstraint:
			bound = len(c.elements)
		case *ListConstraint:
			if !c.hasMax {
				return 0, false
			}
			bound = c.maxLength
		case *SetConstraint:
			if !c.hasMax {
				return 0, false
			}
			bound = c.maxLength
		case *MappingConstraint:
			if !c.hasMax {
				return 0, false
			}
			bound = c.maxLength
		case *RecordConstraint:
			if c.allowUnknown {
				return 0, false
			}
			bound = len(c.fields)
		default:
			return 0, false
		}
		limit = max(limit, bound)
	}
	return limit, true
}

// deferredFrame collects a container without a committed constraint and
// checks the finished value against each candidate.
type deferredFrame struct {
	choice     *ChoiceConstraint
	inner      frame
	candidates []Constraint
}

func (f *deferredFrame) child(state *checkState) (Constraint, string, error) {
	return f.inner.child(state)
}

func (f *deferredFrame) add(value any, state *checkState) error {
	return f.inner.add(value, state)
}

func (f *deferredFrame) close(state *checkState) (any, error) {
	value, err := f.inner.close(state)
	if err != nil {
		return nil, err
	}
	if err := f.choice.checkAlternatives(value, f.candidates, state); err != nil {
		return nil, err
	}
	return value, nil
}

// TupleConstraint accepts Tuple values of a fixed arity.
type TupleConstraint struct {
	elements []Constraint
}

// TupleOf returns a constraint accepting a Tuple whose members satisfy
// elements positionally. Lists never satisfy it.
func TupleOf(elements ...Constraint) *TupleConstraint {
	return &TupleConstraint{elements: append([]Constraint(nil), elements...)}
}

func (c *TupleConstraint) String() string {
	parts := make([]string, len(c.elements))
	for i, element := range c.elements {
		parts[i] = element.String()
	}
	return "tuple(" + strings.Join(parts, ", ") + ")"
}

func (c *TupleConstraint) checkValue(value any, state *checkState) error {
	tuple, ok := value.(Tuple)
	if !ok {
		return violationf("expected tuple of %d, got %s", len(c.elements), describe(value))
	}
	if len(tuple) != len(c.elements) {
		return violationf("tuple has %d elements, want %d", len(tuple), len(c.elements))
	}
	id, tracked, err := state.enter(tuple)
	if err != nil {
		return err
	}
	defer state.leave(id, tracked)
	for i, element := range c.elements {
		if err := element.checkValue(tuple[i], state); err != nil {
			return WithPrefix(err, IndexSegment(i))
		}
	}
	return nil
}

func (c *TupleConstraint) checkToken(t token.Token, _ *checkState) (any, error) {
	return nil, unexpectedToken(c, t)
}

func (c *TupleConstraint) openFrame(t token.Token, _ *checkState) (frame, error) {
	if !t.IsOpen(token.ContainerTuple) {
		return nil, unexpectedToken(c, t)
	}
	return &tupleFrame{constraint: c, values: make(Tuple, 0, len(c.elements))}, nil
}

type tupleFrame struct {
	constraint *TupleConstraint
	values     Tuple
}

func (f *tupleFrame) child(*checkState) (Constraint, string, error) {
	index := len(f.values)
	if index >= len(f.constraint.elements) {
		return nil, "", violationf("tuple has more than %d elements", len(f.constraint.elements))
	}
	return f.constraint.elements[index], IndexSegment(index), nil
}

func (f *tupleFrame) add(value any, _ *checkState) error {
	f.values = append(f.values, value)
	return nil
}

func (f *tupleFrame) close(*checkState) (any, error) {
	if len(f.values) != len(f.constraint.elements) {
		return nil, violationf("tuple has %d elements, want %d", len(f.values), len(f.constraint.elements))
	}
	return f.values, nil
}

// ListConstraint accepts variable-length sequences.
type ListConstraint struct {
	element Constraint
	options
}

// ListOf returns a constraint accepting lists whose members all satisfy
// element. Accepts MaxLength, MinLength, and Unbounded; the default
// maximum is DefaultMaxLength. Any slice type other than Tuple and
// []byte is a list.
func ListOf(element Constraint, opts ...Option) *ListConstraint {
	return &ListConstraint{
		element: element,
		options: collect("ListOf", options{maxLength: DefaultMaxLength, hasMax: true},
			optionMaxLength|optionMinLength|optionUnbounded, opts),
	}
}

func (c *ListConstraint) String() string {
	return "list of " + c.element.String() + " (" + c.lengthBounds() + ")"
}

func (c *ListConstraint) checkValue(value any, state *checkState) error {
	list, ok := isList(value)
	if !ok {
		return violationf("expected list, got %s", describe(value))
	}
	if err := c.checkLength(list.Len(), "elements"); err != nil {
		return err
	}
	id, tracked, err := state.enter(value)
	if err != nil {
		return err
	}
	defer state.leave(id, tracked)
	for i := range list.Len() {
		if err := c.element.checkValue(list.Index(i).Interface(), state); err != nil {
			return WithPrefix(err, IndexSegment(i))
		}
	}
	return nil
}

func (c *ListConstraint) checkToken(t token.Token, _ *checkState) (any, error) {
	return nil, unexpectedToken(c, t)
}

func (c *ListConstraint) openFrame(t token.Token, _ *checkState) (frame, error) {
	if !t.IsOpen(token.ContainerList) {
		return nil, unexpectedToken(c, t)
	}
	return &listFrame{constraint: c, values: []any{}}, nil
}

type listFrame struct {
	constraint *ListConstraint
	values     []any
}

func (f *listFrame) child(*checkState) (Constraint, string, error) {
	if f.constraint.hasMax && len(f.values) >= f.constraint.maxLength {
		return nil, "", violationf("list exceeds maximum of %d elements", f.constraint.maxLength)
	}
	return f.constraint.element, IndexSegment(len(f.values)), nil
}

func (f *listFrame) add(value any, _ *checkState) error {
	f.values = append(f.values, value)
	return nil
}

func (f *listFrame) close(*checkState) (any, error) {
	if err := f.constraint.checkLength(len(f.values), "elements"); err != nil {
		return nil, err
	}
	return f.values, nil
}

// Mutability selects which set types a SetOf constraint accepts.
type Mutability int

const (
	// AnySets accepts Set and FrozenSet.
	AnySets Mutability = iota
	// MutableSets accepts only Set.
	MutableSets
	// FrozenSets accepts only FrozenSet.
	FrozenSets
)

func (m Mutability) String() string {
	switch m {
	case MutableSets:
		return "mutable"
	case FrozenSets:
		return "frozen"
	}
	return "any"
}

// SetConstraint accepts Set and FrozenSet values.
type SetConstraint struct {
	element Constraint
	options
}

// SetOf returns a constraint accepting sets whose members all satisfy
// element. Accepts MaxLength, Unbounded, MutableOnly, and FrozenOnly;
// the default maximum is DefaultMaxLength.
func SetOf(element Constraint, opts ...Option) *SetConstraint {
	return &SetConstraint{
		element: element,
		options: collect("SetOf", options{maxLength: DefaultMaxLength, hasMax: true},
			optionMaxLength|optionUnbounded|optionMutability, opts),
	}
}

// Mutability returns which set types are accepted.
func (c *SetConstraint) Mutability() Mutability { return c.mutability }

func (c *SetConstraint) String() string {
	return fmt.Sprintf("%s set of %s (%s)", c.mutability, c.element, c.lengthBounds())
}

func (c *SetConstraint) checkValue(value any, state *checkState) error {
	var members map[any]struct{}
	switch set := value.(type) {
	case Set:
		if c.mutability == FrozenSets {
			return violationf("expected frozen set, got mutable set")
		}
		members = set
	case FrozenSet:
		if c.mutability == MutableSets {
			return violationf("expected mutable set, got frozen set")
		}
		members = set
	default:
		return violationf("expected set, got %s", describe(value))
	}
	if err := c.checkLength(len(members), "members"); err != nil {
		return err
	}
	id, tracked, err := state.enter(value)
	if err != nil {
		return err
	}
	defer state.leave(id, tracked)
	for member := range members {
		if err := c.element.checkValue(member, state); err != nil {
			return WithPrefix(err, KeySegment(member))
		}
	}
	return nil
}

func (c *SetConstraint) checkToken(t token.Token, _ *checkState) (any, error) {
	return nil, unexpectedToken(c, t)
}

func (c *SetConstraint) openFrame(t token.Token, _ *checkState) (frame, error) {
	switch {
	case t.IsOpen(token.ContainerSet) && c.mutability != FrozenSets:
	case t.IsOpen(token.ContainerFrozenSet) && c.mutability != MutableSets:
	default:
		return nil, unexpectedToken(c, t)
	}
	return &setFrame{
		element: c.element,
		bounds:  c.options,
		frozen:  t.Container == token.ContainerFrozenSet,
		members: make(map[any]struct{}),
	}, nil
}

type setFrame struct {
	element Constraint
	bounds  options
	frozen  bool
	members map[any]struct{}
}

func (f *setFrame) child(*checkState) (Constraint, string, error) {
	if f.bounds.hasMax && len(f.members) >= f.bounds.maxLength {
		return nil, "", violationf("set exceeds maximum of %d members", f.bounds.maxLength)
	}
	return f.element, IndexSegment(len(f.members)), nil
}

func (f *setFrame) add(value any, _ *checkState) error {
	if !hashable(value) {
		return violationf("set member of type %s is not hashable", describe(value))
	}
	if _, duplicate := f.members[value]; duplicate {
		return violationf("duplicate set member")
	}
	f.members[value] = struct{}{}
	return nil
}

func (f *setFrame) close(*checkState) (any, error) {
	if f.frozen {
		return FrozenSet(f.members), nil
	}
	return Set(f.members), nil
}

// MappingConstraint accepts mappings.
type MappingConstraint struct {
	key, value Constraint
	options
}

// MappingOf returns a constraint accepting mappings whose keys satisfy
// key and whose values satisfy value. Accepts MaxKeys and Unbounded;
// the default maximum is DefaultMaxKeys. Any map type other than Set
// and FrozenSet is a mapping.
func MappingOf(key, value Constraint, opts ...Option) *MappingConstraint {
	return &MappingConstraint{
		key:   key,
		value: value,
		options: collect("MappingOf", options{maxLength: DefaultMaxKeys, hasMax: true},
			optionMaxKeys|optionUnbounded, opts),
	}
}

func (c *MappingConstraint) String() string {
	return fmt.Sprintf("mapping of %s to %s (%s)", c.key, c.value, c.lengthBounds())
}

func (c *MappingConstraint) checkValue(value any, state *checkState) error {
	mapping, ok := isMapping(value)
	if !ok {
		return violationf("expected mapping, got %s", describe(value))
	}
	if c.hasMax && mapping.Len() > c.maxLength {
		return violationf("mapping has %d keys, exceeds maximum of %d", mapping.Len(), c.maxLength)
	}
	id, tracked, err := state.enter(value)
	if err != nil {
		return err
	}
	defer state.leave(id, tracked)
	entries := mapping.MapRange()
	for entries.Next() {
		key := entries.Key().Interface()
		if err := c.key.checkValue(key, state); err != nil {
			return WithPrefix(err, KeySegment(key))
		}
		if err := c.value.checkValue(entries.Value().Interface(), state); err != nil {
			return WithPrefix(err, KeySegment(key))
		}
	}
	return nil
}

func (c *MappingConstraint) checkToken(t token.Token, _ *checkState) (any, error) {
	return nil, unexpectedToken(c, t)
}

func (c *MappingConstraint) openFrame(t token.Token, _ *checkState) (frame, error) {
	if !t.IsOpen(token.ContainerMapping) {
		return nil, unexpectedToken(c, t)
	}
	return &mappingFrame{
		key:     c.key,
		value:   c.value,
		bounds:  c.options,
		entries: make(map[any]any),
	}, nil
}

// mappingFrame reads alternating key and value members.
type mappingFrame struct {
	key, value Constraint
	bounds     options
	entries    map[any]any
	pending    any
	haveKey    bool
}

func (f *mappingFrame) child(*checkState) (Constraint, string, error) {
	if f.haveKey {
		return f.value, KeySegment(f.pending), nil
	}
	if f.bounds.hasMax && len(f.entries) >= f.bounds.maxLength {
		return nil, "", violationf("mapping exceeds maximum of %d keys", f.bounds.maxLength)
	}
	return f.key, IndexSegment(len(f.entries)), nil
}

func (f *mappingFrame) add(value any, _ *checkState) error {
	if f.haveKey {
		f.entries[f.pending] = value
		f.pending, f.haveKey = nil, false
		return nil
	}
	if !hashable(value) {
		return violationf("mapping key of type %s is not hashable", describe(value))
	}
	if _, duplicate := f.entries[value]; duplicate {
		return violationf("duplicate mapping key")
	}
	f.pending, f.haveKey = value, true
	return nil
}

func (f *mappingFrame) close(*checkState) (any, error) {
	if f.haveKey {
		return nil, token.Framingf("mapping closed after a key with no value")
	}
	return f.entries, nil
}

// Field is one declared attribute of an AttributeRecord.
type Field struct {
	Name       string
	Constraint Constraint
}

// Attribute declares a record field.
func Attribute(name string, constraint Constraint) Field {
	return Field{Name: name, Constraint: constraint}
}

// RecordConstraint accepts string-keyed mappings with declared
// attributes.
type RecordConstraint struct {
	fields []Field
	byName map[string]Constraint
	options
}

// AttributeRecord returns a constraint accepting records in which every
// declared attribute is present and conforms. Undeclared attributes
// violate unless AllowUnknown is given.
func AttributeRecord(fields []Field, opts ...Option) *RecordConstraint {
	c := &RecordConstraint{
		fields:  append([]Field(nil), fields...),
		byName:  make(map[string]Constraint, len(fields)),
		options: collect("AttributeRecord", options{}, optionAllowUnknown, opts),
	}
	for _, field := range fields {
		if _, exists := c.byName[field.Name]; exists {
			panic("schema: AttributeRecord declares " + field.Name + " twice")
		}
		c.byName[field.Name] = field.Constraint
	}
	return c
}

func (c *RecordConstraint) String() string {
	names := make([]string, len(c.fields))
	for i, field := range c.fields {
		names[i] = field.Name
	}
	return "record(" + strings.Join(names, ", ") + ")"
}

func (c *RecordConstraint) checkValue(value any, state *checkState) error {
	mapping, ok := isMapping(value)
	if !ok || mapping.Type().Key().Kind() != reflect.String && mapping.Type().Key().Kind() != reflect.Interface {
		return violationf("expected record, got %s", describe(value))
	}
	id, tracked, err := state.enter(value)
	if err != nil {
		return err
	}
	defer state.leave(id, tracked)
	entries := mapping.MapRange()
	for entries.Next() {
		name, ok := entries.Key().Interface().(string)
		if !ok {
			return violationf("record attribute name of type %s", describe(entries.Key().Interface()))
		}
		constraint, declared := c.byName[name]
		if !declared {
			if !c.allowUnknown {
				return violationf("unknown attribute %q", name)
			}
			constraint = anyConstraint{}
		}
		if err := constraint.checkValue(entries.Value().Interface(), state); err != nil {
			return WithPrefix(err, FieldSegment(name))
		}
	}
	for _, field := range c.fields {
		if !mapping.MapIndex(reflect.ValueOf(field.Name).Convert(mapping.Type().Key())).IsValid() {
			return violationf("missing attribute %q", field.Name)
		}
	}
	return nil
}

func (c *RecordConstraint) checkToken(t token.Token, _ *checkState) (any, error) {
	return nil, unexpectedToken(c, t)
}

func (c *RecordConstraint) openFrame(t token.Token, _ *checkState) (frame, error) {
	if !t.IsOpen(token.ContainerMapping) {
		return nil, unexpectedToken(c, t)
	}
	return &recordFrame{constraint: c, values: make(map[string]any)}, nil
}

type recordFrame struct {
	constraint *RecordConstraint
	values     map[string]any
	pending    string
	haveName   bool
}

var attributeName = Text()

func (f *recordFrame) child(state *checkState) (Constraint, string, error) {
	if f.haveName {
		if constraint, ok := f.constraint.byName[f.pending]; ok {
			return constraint, FieldSegment(f.pending), nil
		}
		return anyConstraint{}, FieldSegment(f.pending), nil
	}
	limit := len(f.constraint.fields)
	if f.constraint.allowUnknown {
		limit += state.limits.MaxContainerLength
	}
	if len(f.values) >= limit {
		return nil, "", violationf("record has more than %d attributes", limit)
	}
	return attributeName, "", nil
}

func (f *recordFrame) add(value any, _ *checkState) error {
	if f.haveName {
		f.values[f.pending] = value
		f.pending, f.haveName = "", false
		return nil
	}
	name := value.(string)
	if _, duplicate := f.values[name]; duplicate {
		return violationf("duplicate attribute %q", name)
	}
	if _, declared := f.constraint.byName[name]; !declared && !f.constraint.allowUnknown {
		return violationf("unknown attribute %q", name)
	}
	f.pending, f.haveName = name, true
	return nil
}

func (f *recordFrame) close(*checkState) (any, error) {
	if f.haveName {
		return nil, token.Framingf("record closed after an attribute name with no value")
	}
	for _, field := range f.constraint.fields {
		if _, ok := f.values[field.Name]; !ok {
			return nil, violationf("missing attribute %q", field.Name)
		}
	}
	return f.values, nil
}
