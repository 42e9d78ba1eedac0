// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package sturdyref

import (
	"fmt"
	"os"

	"github.com/abudulemusa/foolscap/lib/codec"
	"github.com/abudulemusa/foolscap/lib/sealed"
)

// book is the plaintext payload of a saved book.
type book struct {
	Refs []SturdyRef `cbor:"1,keyasint"`
}

// SaveBook writes refs to path, CBOR-encoded and encrypted to the age
// recipients. The file has 0600 permissions.
func SaveBook(path string, refs []SturdyRef, recipients []string) error {
	for i, ref := range refs {
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("book entry %d: %w", i, err)
		}
	}
	plaintext, err := codec.Marshal(book{Refs: refs})
	if err != nil {
		return fmt.Errorf("encoding book: %w", err)
	}
	ciphertext, err := sealed.Encrypt(plaintext, recipients)
	if err != nil {
		return fmt.Errorf("sealing book: %w", err)
	}
	if err := os.WriteFile(path, ciphertext, 0600); err != nil {
		return fmt.Errorf("writing book: %w", err)
	}
	return nil
}

// LoadBook reads a book written by SaveBook, decrypting it with the age
// private key.
func LoadBook(path string, privateKey string) ([]SturdyRef, error) {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading book: %w", err)
	}
	plaintext, err := sealed.Decrypt(ciphertext, privateKey)
	if err != nil {
		return nil, fmt.Errorf("unsealing book: %w", err)
	}
	var decoded book
	if err := codec.Unmarshal(plaintext, &decoded); err != nil {
		return nil, fmt.Errorf("decoding book: %w", err)
	}
	return decoded.Refs, nil
}
