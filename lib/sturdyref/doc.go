// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

// Package sturdyref names capabilities independently of any connection.
//
// A [SturdyRef] is the tuple (location, swiss number, name, authority).
// The location is a routing hint for reaching the process that hosts
// the object. The swiss number is an unguessable identifier: knowing it
// is the authority to use the object, so it is never logged and books
// of SturdyRefs are encrypted at rest ([SaveBook]). The authority is the
// identity of the hosting process ([Authority.ID]).
//
// SturdyRefs are compared structurally. Resolving one into a live
// reference is the broker's job.
package sturdyref
