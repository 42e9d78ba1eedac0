// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the shared CBOR encoding configuration.
//
// Every structure that crosses a process boundary or lands on disk is
// CBOR: individual wire tokens (see lib/token), persisted SturdyRef
// books, and identity material. Sharing one encoder and one decoder
// configuration keeps the bytes identical no matter which package
// produced them. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// The decoder is strict about shape. Unknown struct fields are an error
// rather than being silently dropped, because every decoded structure
// here is either a peer-supplied wire token or a file we wrote
// ourselves; in both cases an unexpected field means corruption or a
// hostile sender.
//
// Types in this module carry `cbor` struct tags with integer keys
// (`cbor:"1,keyasint"`). Renumbering a key is a wire-breaking change.
package codec
