// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts data at rest with age. It wraps filippo.io/age
// for the operations this module needs: generate x25519 keypairs,
// encrypt to one or more recipients, and decrypt with a private key.
//
// It protects persisted SturdyRef books. A SturdyRef is a bearer
// capability, so a book in plaintext on disk hands its authority to
// anyone who can read the file.
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair
//   - [Encrypt] -- encrypt to age public key recipients
//   - [Decrypt] -- decrypt with a private key
//   - [ParsePublicKey] / [ParsePrivateKey] -- key validation
package sealed
