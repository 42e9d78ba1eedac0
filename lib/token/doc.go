// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

// Package token defines the primitive wire tokens that values are
// flattened into and reconstructed from, and the framing that carries
// them over a byte stream.
//
// A value on the wire is a sequence of tokens. Scalars (integers, byte
// strings, text, booleans, floats) are single tokens. Containers are an
// Open token naming the container kind, the member tokens, and a Close
// token. Capability references are single tokens carrying a reference
// id. Broker messages are containers of kind [ContainerMessage] whose
// Text names the message type.
//
// # Framing
//
// Each token is one frame:
//
//	[4-byte big-endian length] [CBOR-encoded Token]
//
// The [Reader] refuses any frame longer than [Limits.MaxTokenBytes]
// before reading its body, refuses messages with more than
// [Limits.MaxMessageTokens] tokens, and checks that Open and Close
// tokens balance. These failures are a [FramingError]: they happen
// below the constraint layer, they are not attributable to any one
// value, and the connection must be torn down. Whether a well-framed
// token stream describes an acceptable value is the job of lib/schema,
// which reports a recoverable Violation instead.
package token
