// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker owns the per-connection capability tables and the
// message protocol spoken over them.
//
// A [Broker] exists for exactly one connection. It exports local objects
// to the peer under monotonically allocated ids, and tracks the objects
// the peer exported to it with one [ReferenceTracker] per remote id.
// Application code holds [RemoteReference] values, which forward method
// calls to the tracker's broker. Trackers never keep their broker
// alive: they name it by ID and look it up through the [Directory] on
// every call, so when a connection ends every reference obtained
// through it fails with a [DeadReferenceError] from then on, even if a
// new connection to the same location is made later.
//
// Every message is a token stream opened by a message token naming its
// kind:
//
//	hello   authority location
//	call    request target method (positional...) {keyword...}
//	answer  request value
//	error   request reason violation path
//	lookup  request swiss-number
//	decref  reference
//
// Inbound call arguments are checked token by token as they arrive,
// against the constraint the target's method schema declares for each
// argument. A [schema.Violation] rejects only the offending call: the
// rest of that message is discarded and the caller receives an error
// message. A [token.FramingError] ends the connection.
//
// The [Directory] is the per-process registry: it owns the local
// [sturdyref.Authority], the table of published objects, the live
// brokers, and lifecycle observers, and resolves [sturdyref.SturdyRef]
// values into live references by connecting to their location.
package broker
