// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

func TestTCPListener_Address(t *testing.T) {
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	address := listener.Address()
	if address == "" {
		t.Error("Address() returned empty string")
	}
	if !strings.Contains(address, ":") {
		t.Errorf("Address() = %q, expected host:port format", address)
	}
}

func TestTCPRoundTrip(t *testing.T) {
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Echo one line back on every accepted connection.
	go listener.Serve(ctx, func(conn net.Conn) {
		go func() {
			defer conn.Close()
			io.Copy(conn, conn)
		}()
	})

	dialer := &TCPDialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, listener.Address())
	if err != nil {
		t.Fatalf("DialContext() error: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	buffer := make([]byte, 5)
	if _, err := io.ReadFull(conn, buffer); err != nil {
		t.Fatalf("ReadFull() error: %v", err)
	}
	if string(buffer) != "hello" {
		t.Errorf("echo = %q, want %q", string(buffer), "hello")
	}
}

func TestTCPDialer_ConnectionRefused(t *testing.T) {
	dialer := &TCPDialer{Timeout: time.Second}

	// Port 1 is almost certainly not listening.
	_, err := dialer.DialContext(context.Background(), "127.0.0.1:1")
	if err == nil {
		t.Error("expected error connecting to non-listening port")
	}
}

func TestTCPDialer_ContextCancellation(t *testing.T) {
	dialer := &TCPDialer{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dialer.DialContext(ctx, "127.0.0.1:1")
	if err == nil {
		t.Error("expected error with cancelled context")
	}
}

func TestTCPListener_ContextCancellation(t *testing.T) {
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- listener.Serve(ctx, func(conn net.Conn) { conn.Close() })
	}()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Serve() did not return after context cancellation")
	}
}

func TestTCPListener_CloseStopsServe(t *testing.T) {
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- listener.Serve(context.Background(), func(conn net.Conn) { conn.Close() })
	}()

	if err := listener.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := listener.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Serve() did not return after Close")
	}
}
