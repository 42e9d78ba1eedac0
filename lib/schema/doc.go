// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema is the constraint engine that decides whether a value
// may cross the process boundary.
//
// A [Constraint] describes the required shape of a value. Constraints
// are checked in two places:
//
//   - Outbound, against a fully materialized Go value, before any bytes
//     are produced ([Check]).
//   - Inbound, incrementally, while a value is being rebuilt from wire
//     tokens ([Builder]). Bounds are enforced as soon as they become
//     knowable: the fourth element of a three-element list is rejected
//     when its first token arrives, not after the list closes. A hostile
//     peer cannot make the receiver buffer more than one over-limit
//     token before rejection.
//
// Failures are reported as a *[Violation] carrying the path to the
// offending field. Violations are recoverable: they reject one value
// (one argument, one message), never the connection.
//
// # Values
//
// Constraints operate on these Go representations:
//
//	integers        int, int8..int64, uint..uint64, *big.Int
//	byte strings    []byte
//	text            string
//	booleans        bool
//	numbers         float32, float64 (and any integer)
//	tuples          Tuple
//	lists           []any (or any other slice type except []byte)
//	sets            Set, FrozenSet
//	mappings        any map type
//	capabilities    Referenceable (local), RemoteProxy (remote)
//
// Tuple and list are distinct kinds even though both are slices.
//
// # Recursion
//
// A [ChoiceConstraint] may gain alternatives after construction, and a
// [Registry] resolves named forward references at check time, so a
// grammar may refer to itself. Every check carries a depth counter and
// the set of container identities currently being checked; a value that
// contains itself, or nesting past [Limits.MaxDepth], is a Violation
// rather than unbounded recursion.
package schema
