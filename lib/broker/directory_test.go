// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/abudulemusa/foolscap/lib/clock"
	"github.com/abudulemusa/foolscap/lib/config"
	"github.com/abudulemusa/foolscap/lib/remoteinterface"
	"github.com/abudulemusa/foolscap/lib/sturdyref"
	"github.com/abudulemusa/foolscap/lib/testutil"
	"github.com/abudulemusa/foolscap/lib/token"
	"github.com/abudulemusa/foolscap/transport"
)

func TestResolveOverTCP(t *testing.T) {
	listener, err := transport.NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	server := newDirectory(t, listener.Address(), strictCalculator)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx, listener)

	client, err := NewDirectory(Options{
		Location:   "client",
		Interfaces: remoteinterface.NewRegistry(strictCalculator),
		Dialer:     &transport.TCPDialer{Timeout: timeout},
	})
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}
	defer client.Close()

	ref, err := server.PublishNamed("calculator", newCalculator(t))
	if err != nil {
		t.Fatalf("PublishNamed() error: %v", err)
	}
	calculator := resolve(t, client, ref)
	requireAdd(t, calculator, 19, 23)

	// A second resolve reuses the live connection.
	again := resolve(t, client, ref)
	if again != calculator {
		t.Error("second Resolve did not reuse the connection's reference")
	}
	if brokers := client.Brokers(); len(brokers) != 1 {
		t.Errorf("client has %d brokers, want 1", len(brokers))
	}
}

func TestResolveChecksAuthority(t *testing.T) {
	server := newDirectory(t, "server", strictCalculator)
	client := newDirectory(t, "client", strictCalculator)
	ref := publish(t, server, newCalculator(t))
	connectPipe(t, client, server)

	impostor, err := sturdyref.GenerateAuthority()
	if err != nil {
		t.Fatalf("GenerateAuthority() error: %v", err)
	}
	forged := ref
	forged.Authority = impostor.ID()
	if _, err := client.Resolve(context.Background(), forged); !errors.Is(err, ErrAuthorityMismatch) {
		t.Errorf("Resolve(wrong authority) error = %v, want ErrAuthorityMismatch", err)
	}

	anonymous := ref
	anonymous.Authority = ""
	requireAdd(t, resolve(t, client, anonymous), 1, 1)
}

func TestResolveWithoutDialer(t *testing.T) {
	client := newDirectory(t, "client", strictCalculator)
	ref := sturdyref.New("elsewhere:1234", "abcdefghijklmnop")
	if _, err := client.Resolve(context.Background(), ref); !errors.Is(err, ErrNoDialer) {
		t.Errorf("Resolve() error = %v, want ErrNoDialer", err)
	}
	if _, err := client.Resolve(context.Background(), sturdyref.SturdyRef{}); err == nil {
		t.Error("Resolve(zero SturdyRef) succeeded")
	}
}

func TestPublish(t *testing.T) {
	authority, err := sturdyref.GenerateAuthority()
	if err != nil {
		t.Fatalf("GenerateAuthority() error: %v", err)
	}
	directory, err := NewDirectory(Options{Authority: authority, Location: "example:7000"})
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}
	calculator := newCalculator(t)

	random, err := directory.Publish(calculator)
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if random.Location != "example:7000" || random.Authority != authority.ID() || random.Name != "" {
		t.Errorf("Publish() = %+v", random)
	}

	named, err := directory.PublishNamed("calc", calculator)
	if err != nil {
		t.Fatalf("PublishNamed() error: %v", err)
	}
	derived, err := authority.DeriveSwissNumber("calc")
	if err != nil {
		t.Fatalf("DeriveSwissNumber() error: %v", err)
	}
	if named.SwissNumber != derived || named.Name != "calc" {
		t.Errorf("PublishNamed() = %+v, want swiss number %s", named, derived)
	}

	published := directory.Published()
	if len(published) != 2 || !published[0].Equal(random) || !published[1].Equal(named) {
		t.Errorf("Published() = %v", published)
	}
	if !directory.Unpublish(random) {
		t.Error("Unpublish() = false for a published ref")
	}
	if directory.Unpublish(random) {
		t.Error("Unpublish() = true for a withdrawn ref")
	}
	if _, ok := directory.lookup(random.SwissNumber); ok {
		t.Error("withdrawn object still reachable")
	}

	unlocated := newDirectory(t, "")
	if _, err := unlocated.Publish(calculator); !errors.Is(err, sturdyref.ErrMissingLocation) {
		t.Errorf("Publish() without a location error = %v, want ErrMissingLocation", err)
	}
}

func TestLifecycleEvents(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.Fake(start)
	client, err := NewDirectory(Options{Location: "client", Clock: fake})
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}
	t.Cleanup(client.Close)
	server := newDirectory(t, "server")

	events := make(chan Event, 8)
	cancel := client.Observe(func(event Event) { events <- event })

	clientBroker, _ := connectPipe(t, client, server)
	connected := testutil.RequireReceive(t, events, timeout, "connected event")
	if connected.Kind != EventConnected || connected.Broker != clientBroker.ID() ||
		connected.Location != "server" || !connected.At.Equal(start) {
		t.Errorf("connected event = %+v", connected)
	}

	fake.Advance(time.Minute)
	client.Close()
	disconnected := testutil.RequireReceive(t, events, timeout, "disconnected event")
	if disconnected.Kind != EventDisconnected || disconnected.Broker != clientBroker.ID() ||
		disconnected.Err != nil || !disconnected.At.Equal(start.Add(time.Minute)) {
		t.Errorf("disconnected event = %+v", disconnected)
	}
	if _, ok := client.Broker(clientBroker.ID()); ok {
		t.Error("closed broker still in the directory")
	}

	cancel()
	connectPipe(t, client, server)
	select {
	case event := <-events:
		t.Errorf("event %+v delivered after cancel", event)
	default:
	}
}

func TestConnectReusesInboundConnection(t *testing.T) {
	server := newDirectory(t, "server")
	client := newDirectory(t, "client")
	clientConn, serverConn := net.Pipe()
	client.Accept(clientConn, "")
	serverBroker := server.Accept(serverConn, "")

	// The server learns the client's location from its hello.
	var reused *Broker
	testutil.RequireEventually(t, timeout, func() bool {
		b, err := server.Connect(context.Background(), "client")
		if err != nil {
			return false
		}
		reused = b
		return true
	}, "client location announced")
	if reused != serverBroker {
		t.Error("Connect dialed instead of reusing the inbound connection")
	}
	authority, err := serverBroker.PeerAuthority(context.Background())
	if err != nil {
		t.Fatalf("PeerAuthority() error: %v", err)
	}
	if authority != client.Authority().ID() {
		t.Errorf("PeerAuthority() = %q, want %q", authority, client.Authority().ID())
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Broker.StateDir = filepath.Join(t.TempDir(), "state")
	cfg.Broker.Location = "127.0.0.1:7000"
	cfg.Limits.MaxDepth = 16

	options, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig() error: %v", err)
	}
	if options.Location != "127.0.0.1:7000" {
		t.Errorf("Location = %q", options.Location)
	}
	if options.SchemaLimits.MaxDepth != 16 || options.TokenLimits.MaxDepth != 16+token.EnvelopeDepth {
		t.Errorf("limits = %+v, %+v; want value depth 16", options.SchemaLimits, options.TokenLimits)
	}
	if options.Dialer == nil {
		t.Error("Dialer is nil")
	}

	again, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("second OptionsFromConfig() error: %v", err)
	}
	if again.Authority.ID() != options.Authority.ID() {
		t.Errorf("authority changed between loads: %s, %s", options.Authority.ID(), again.Authority.ID())
	}

	directory, err := NewDirectory(options)
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}
	ref, err := directory.PublishNamed("calculator", newCalculator(t))
	if err != nil {
		t.Fatalf("PublishNamed() error: %v", err)
	}
	restarted, err := NewDirectory(again)
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}
	same, err := restarted.PublishNamed("calculator", newCalculator(t))
	if err != nil {
		t.Fatalf("PublishNamed() error: %v", err)
	}
	if !same.Equal(ref) {
		t.Errorf("named SturdyRef changed across restart: %v, %v", ref, same)
	}
}

func TestListenFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Broker.StateDir = filepath.Join(t.TempDir(), "state")
	cfg.Broker.Listen = "127.0.0.1:0"
	cfg.Broker.Location = "server"

	options, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig() error: %v", err)
	}
	options.Interfaces = remoteinterface.NewRegistry(strictCalculator)
	server, err := NewDirectory(options)
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}
	defer server.Close()
	listener, err := server.Listen()
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer listener.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx, listener)

	ref := publish(t, server, newCalculator(t))
	client, err := NewDirectory(Options{
		Location:   "client",
		Interfaces: remoteinterface.NewRegistry(strictCalculator),
		Dialer:     &transport.TCPDialer{Timeout: timeout},
	})
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}
	defer client.Close()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), timeout)
	defer dialCancel()
	b, err := client.Connect(dialCtx, listener.Address())
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	calculator, err := b.Lookup(dialCtx, ref.SwissNumber)
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	requireAdd(t, calculator, 2, 3)

	if _, err := client.Listen(); !errors.Is(err, ErrNoListenAddress) {
		t.Errorf("Listen() without an address = %v, want ErrNoListenAddress", err)
	}
}
