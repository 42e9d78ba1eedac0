// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package sturdyref

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAuthorityID(t *testing.T) {
	first, err := GenerateAuthority()
	if err != nil {
		t.Fatalf("GenerateAuthority: %v", err)
	}
	second, err := GenerateAuthority()
	if err != nil {
		t.Fatalf("GenerateAuthority: %v", err)
	}
	id := first.ID()
	if reloaded := (&Authority{public: first.public, private: first.private}).ID(); reloaded != id {
		t.Errorf("ID() = %s for the same key, want %s", reloaded, id)
	}
	if first.ID() == second.ID() {
		t.Error("two authorities share an ID")
	}
	if len(first.ID()) != 52 {
		t.Errorf("len(ID()) = %d, want 52", len(first.ID()))
	}
}

func TestDeriveSwissNumber(t *testing.T) {
	authority, err := GenerateAuthority()
	if err != nil {
		t.Fatalf("GenerateAuthority: %v", err)
	}
	calculator, err := authority.DeriveSwissNumber("calculator")
	if err != nil {
		t.Fatalf("DeriveSwissNumber: %v", err)
	}
	again, _ := authority.DeriveSwissNumber("calculator")
	printer, _ := authority.DeriveSwissNumber("printer")
	if calculator != again {
		t.Error("DeriveSwissNumber is not deterministic")
	}
	if calculator == printer {
		t.Error("different names derived the same swiss number")
	}

	other, err := GenerateAuthority()
	if err != nil {
		t.Fatalf("GenerateAuthority: %v", err)
	}
	if foreign, _ := other.DeriveSwissNumber("calculator"); foreign == calculator {
		t.Error("different authorities derived the same swiss number")
	}
}

func TestLoadOrGenerateAuthority(t *testing.T) {
	stateDir := t.TempDir()

	generated, created, err := LoadOrGenerateAuthority(stateDir)
	if err != nil {
		t.Fatalf("LoadOrGenerateAuthority: %v", err)
	}
	if !created {
		t.Error("first call did not report a new authority")
	}

	loaded, created, err := LoadOrGenerateAuthority(stateDir)
	if err != nil {
		t.Fatalf("LoadOrGenerateAuthority: %v", err)
	}
	if created {
		t.Error("second call generated a new authority")
	}
	if loaded.ID() != generated.ID() {
		t.Errorf("loaded ID = %s, want %s", loaded.ID(), generated.ID())
	}

	info, err := os.Stat(filepath.Join(stateDir, privateKeyFile))
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("private key mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestLoadOrGenerateAuthority_Corrupt(t *testing.T) {
	stateDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(stateDir, privateKeyFile), []byte("short"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadOrGenerateAuthority(stateDir); err == nil {
		t.Error("LoadOrGenerateAuthority replaced a corrupt key instead of failing")
	}
}
