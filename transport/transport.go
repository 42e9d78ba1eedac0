// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
)

// Listener accepts inbound connections from peers.
type Listener interface {
	// Serve accepts connections and passes each to accept, which must
	// not block. Serve blocks until ctx is cancelled or Close is
	// called, and returns nil on clean shutdown.
	Serve(ctx context.Context, accept func(net.Conn)) error

	// Address returns the location to advertise so peers can connect.
	// The format is transport-specific (e.g., "192.168.1.10:7891" for
	// TCP).
	Address() string

	// Close shuts down the listener. Subsequent calls to Serve return
	// immediately.
	Close() error
}

// Dialer opens connections to peers.
type Dialer interface {
	// DialContext opens a connection to the peer at address. The
	// address format matches what the peer's Listener.Address()
	// returns.
	DialContext(ctx context.Context, address string) (net.Conn, error)
}
