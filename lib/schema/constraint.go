// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"github.com/abudulemusa/foolscap/lib/token"
)

// Constraint is a predicate over values crossing the boundary. The set
// of constraint types is closed; construct them with the functions in
// this package.
type Constraint interface {
	// String describes the constraint for violation messages.
	String() string

	// checkValue validates a materialized value.
	checkValue(value any, state *checkState) error

	// checkToken validates a scalar or reference token that forms a
	// complete value, and returns that value.
	checkToken(t token.Token, state *checkState) (any, error)

	// openFrame starts incremental validation of a container whose
	// Open token is t.
	openFrame(t token.Token, state *checkState) (frame, error)
}

// frame is the inbound state of one open container.
type frame interface {
	// child returns the constraint for the next member, and its path
	// segment. Count bounds are enforced here, before the member's
	// tokens are read.
	child(state *checkState) (Constraint, string, error)

	// add records a completed member.
	add(value any, state *checkState) error

	// close finishes the container and returns its value.
	close(state *checkState) (any, error)
}

// Limits bounds a single check.
type Limits struct {
	// MaxDepth is the deepest nesting of containers a check accepts.
	// The same bound separately limits chains of constraint indirection
	// (choices and named references) followed without entering a
	// container, which only a degenerate grammar produces.
	MaxDepth int

	// MaxContainerLength bounds containers whose members are not
	// otherwise constrained: unknown attributes of an open record and
	// values held for an ambiguous choice.
	MaxContainerLength int
}

// DefaultLimits returns the limits used by [Check].
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:           64,
		MaxContainerLength: 1024,
	}
}

// checkState is carried through one check invocation.
type checkState struct {
	direction  Direction
	limits     Limits
	depth      int
	chain      int   // indirections since the innermost container
	chains     []int // chain of each enclosing container
	ancestors  map[identity]struct{}
	references ReferenceDecoder

	// verdicts holds the outcome of each choice already checked against
	// a container at a given depth. Alternatives sharing a recursive
	// member would otherwise re-check that member once per alternative
	// at every level.
	verdicts map[choiceVisit]*Violation
}

// choiceVisit identifies one choice checked against one container.
type choiceVisit struct {
	choice *ChoiceConstraint
	value  identity
	depth  int
}

func newCheckState(direction Direction, limits Limits, references ReferenceDecoder) *checkState {
	return &checkState{
		direction:  direction,
		limits:     limits,
		ancestors:  make(map[identity]struct{}),
		references: references,
		verdicts:   make(map[choiceVisit]*Violation),
	}
}

// descend enters one level of container nesting.
func (s *checkState) descend() error {
	if s.depth >= s.limits.MaxDepth {
		return limitViolationf("nesting exceeds maximum depth %d", s.limits.MaxDepth)
	}
	s.depth++
	s.chains = append(s.chains, s.chain)
	s.chain = 0
	return nil
}

func (s *checkState) ascend() {
	s.depth--
	s.chain = s.chains[len(s.chains)-1]
	s.chains = s.chains[:len(s.chains)-1]
}

// indirect follows one choice or named reference.
func (s *checkState) indirect() error {
	if s.chain >= s.limits.MaxDepth {
		return limitViolationf("constraint indirection exceeds maximum depth %d", s.limits.MaxDepth)
	}
	s.chain++
	return nil
}

func (s *checkState) direct() { s.chain-- }

// enter marks value as being checked and descends. It fails if value is
// already being checked further up the path, which means it contains
// itself. Every successful enter must be paired with leave.
func (s *checkState) enter(value any) (identity, bool, error) {
	if err := s.descend(); err != nil {
		return identity{}, false, err
	}
	id, tracked := identityOf(value)
	if tracked {
		if _, seen := s.ancestors[id]; seen {
			s.ascend()
			return identity{}, false, violationf("value contains a reference to itself")
		}
		s.ancestors[id] = struct{}{}
	}
	return id, tracked, nil
}

func (s *checkState) leave(id identity, tracked bool) {
	if tracked {
		delete(s.ancestors, id)
	}
	s.ascend()
}

// Check validates value against constraint using DefaultLimits.
func Check(constraint Constraint, value any, direction Direction) error {
	return CheckWithLimits(constraint, value, direction, DefaultLimits())
}

// CheckWithLimits validates value against constraint. The result is nil
// or a *Violation.
func CheckWithLimits(constraint Constraint, value any, direction Direction, limits Limits) error {
	return constraint.checkValue(value, newCheckState(direction, limits, nil))
}

// unexpectedToken is the violation for a token a constraint cannot
// accept.
func unexpectedToken(c Constraint, t token.Token) error {
	switch t.Kind {
	case token.KindMyReference, token.KindYourReference:
		return violationf("expected %s, got a reference", c)
	case token.KindOpen:
		return violationf("expected %s, got a %s", c, t.Container)
	}
	return violationf("expected %s, got %s", c, t.Kind)
}
