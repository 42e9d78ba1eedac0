// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"testing"

	"github.com/abudulemusa/foolscap/lib/token"
)

type fakeProxy struct{ iface string }

func (p *fakeProxy) RemoteInterface() string { return p.iface }

type fakeLocal struct{ iface string }

func (l *fakeLocal) ExportedInterface() string { return l.iface }

// fakeDecoder resolves my-reference tokens to proxies declaring the
// token's interface and your-reference tokens to exports.
type fakeDecoder struct {
	exports map[uint64]any
}

func (d fakeDecoder) DecodeReference(t token.Token) (any, error) {
	if t.Kind == token.KindMyReference {
		return &fakeProxy{iface: t.Text}, nil
	}
	if value, ok := d.exports[t.Reference]; ok {
		return value, nil
	}
	return nil, violationf("no export %d", t.Reference)
}

func TestRemoteInterfaceRefOutbound(t *testing.T) {
	c := RemoteInterfaceRef("calculator")
	checkBoth(t, c, &fakeLocal{iface: "calculator"}, true)
	checkBoth(t, c, &fakeLocal{iface: "printer"}, false)
	checkBoth(t, c, &fakeProxy{iface: "calculator"}, true)
	checkBoth(t, c, &fakeProxy{iface: "printer"}, false)
	checkBoth(t, c, "calculator", false)

	unconstrained := RemoteInterfaceRef("")
	checkBoth(t, unconstrained, &fakeLocal{}, true)
	checkBoth(t, unconstrained, &fakeProxy{iface: "printer"}, true)
}

func TestRemoteInterfaceRefInbound(t *testing.T) {
	c := RemoteInterfaceRef("calculator")
	if err := Check(c, &fakeProxy{iface: "calculator"}, Inbound); err != nil {
		t.Errorf("inbound proxy: %v", err)
	}
	if err := Check(c, &fakeLocal{iface: "calculator"}, Inbound); err == nil {
		t.Error("inbound check accepted a local object")
	}

	value, err := build(t, c, fakeDecoder{}, token.MyReference(4, "calculator"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if proxy, ok := value.(*fakeProxy); !ok || proxy.iface != "calculator" {
		t.Errorf("value = %#v, want calculator proxy", value)
	}

	_, err = build(t, c, fakeDecoder{}, token.MyReference(4, "printer"))
	requireViolation(t, err, "")

	_, err = build(t, c, nil, token.MyReference(4, "calculator"))
	requireViolation(t, err, "")

	_, err = build(t, c, fakeDecoder{}, token.YourReference(4))
	requireViolation(t, err, "")
}

func TestLocalInterface(t *testing.T) {
	c := LocalInterface[Referenceable]()
	checkBoth(t, c, &fakeLocal{}, true)
	checkBoth(t, c, &fakeProxy{}, false)

	exported := &fakeLocal{iface: "calculator"}
	decoder := fakeDecoder{exports: map[uint64]any{9: exported}}
	value, err := build(t, c, decoder, token.YourReference(9))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if value != exported {
		t.Errorf("value = %#v, want the exported object", value)
	}

	_, err = build(t, c, decoder, token.MyReference(9, ""))
	requireViolation(t, err, "")
}

func TestLocalInterfaceRequiresInterfaceType(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("LocalInterface[int] did not panic")
		}
	}()
	LocalInterface[int]()
}
