// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries broker connections between processes.
//
// The package defines two interfaces: [Listener] accepts inbound
// connections and hands each one to a callback, and [Dialer]
// establishes outbound connections to a peer's advertised location.
// A broker.Directory uses a Dialer to resolve SturdyRefs, and a
// Listener feeds it connections through Directory.Accept.
//
// [TCPListener] and [TCPDialer] are the TCP implementations. Locations
// are "host:port" strings.
package transport
