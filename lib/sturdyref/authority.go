// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package sturdyref

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

const (
	privateKeyFile = "authority-key"
	publicKeyFile  = "authority-key.pub"
)

// authorityDomainKey separates authority IDs from every other BLAKE3
// keyed hash. Changing it changes every authority ID.
var authorityDomainKey = [32]byte{
	'f', 'o', 'o', 'l', 's', 'c', 'a', 'p', '.', 's', 't', 'u', 'r', 'd', 'y', 'r',
	'e', 'f', '.', 'a', 'u', 't', 'h', 'o', 'r', 'i', 't', 'y', 0, 0, 0, 0,
}

var hkdfInfoSwissNumber = []byte("foolscap.sturdyref.swiss.v1")

// Authority is the long-lived identity of a process that issues
// SturdyRefs.
type Authority struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// GenerateAuthority creates a new Authority with a fresh Ed25519 key.
func GenerateAuthority() (*Authority, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return &Authority{public: public, private: private}, nil
}

// PublicKey returns the authority's public key.
func (a *Authority) PublicKey() ed25519.PublicKey { return a.public }

// ID returns the authority's stable identifier: a domain-separated
// BLAKE3 keyed hash of the public key.
func (a *Authority) ID() string {
	hasher, err := blake3.NewKeyed(authorityDomainKey[:])
	if err != nil {
		panic("sturdyref: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(a.public)
	return encodeIdentifier(hasher.Sum(nil))
}

// DeriveSwissNumber returns the swiss number for a named registration.
// The result is stable for the same authority and name, so a SturdyRef
// to a named object survives restarts, and unguessable without the
// private key.
func (a *Authority) DeriveSwissNumber(name string) (string, error) {
	info := make([]byte, len(hkdfInfoSwissNumber)+len(name))
	copy(info, hkdfInfoSwissNumber)
	copy(info[len(hkdfInfoSwissNumber):], name)
	newHash := func() hash.Hash { return blake3.New() }
	reader := hkdf.New(newHash, a.private.Seed(), a.public, info)
	raw := make([]byte, SwissNumberBytes)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", fmt.Errorf("deriving swiss number for %q: %w", name, err)
	}
	return encodeIdentifier(raw), nil
}

// SaveAuthority writes the authority's keypair to stateDir. The private
// key file has 0600 permissions; the public key file has 0644.
func SaveAuthority(stateDir string, authority *Authority) error {
	privatePath := filepath.Join(stateDir, privateKeyFile)
	if err := os.WriteFile(privatePath, authority.private, 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	publicPath := filepath.Join(stateDir, publicKeyFile)
	if err := os.WriteFile(publicPath, authority.public, 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// LoadAuthority reads a keypair written by SaveAuthority.
func LoadAuthority(stateDir string) (*Authority, error) {
	privateBytes, err := os.ReadFile(filepath.Join(stateDir, privateKeyFile))
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	if len(privateBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key has %d bytes, want %d", len(privateBytes), ed25519.PrivateKeySize)
	}
	publicBytes, err := os.ReadFile(filepath.Join(stateDir, publicKeyFile))
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	if len(publicBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key has %d bytes, want %d", len(publicBytes), ed25519.PublicKeySize)
	}
	private := ed25519.PrivateKey(privateBytes)
	if !private.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(publicBytes)) {
		return nil, fmt.Errorf("public key does not match private key")
	}
	return &Authority{public: ed25519.PublicKey(publicBytes), private: private}, nil
}

// LoadOrGenerateAuthority loads the authority from stateDir, or
// generates and saves one if none exists. It reports whether the
// authority was newly generated.
func LoadOrGenerateAuthority(stateDir string) (*Authority, bool, error) {
	authority, err := LoadAuthority(stateDir)
	if err == nil {
		return authority, false, nil
	}

	// A present but unreadable key is corruption, not first use.
	if _, statErr := os.Stat(filepath.Join(stateDir, privateKeyFile)); statErr == nil {
		return nil, false, err
	}

	authority, err = GenerateAuthority()
	if err != nil {
		return nil, false, err
	}
	if err := SaveAuthority(stateDir, authority); err != nil {
		return nil, false, err
	}
	return authority, true, nil
}
