// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/abudulemusa/foolscap/lib/remoteinterface"
	"github.com/abudulemusa/foolscap/lib/schema"
	"github.com/abudulemusa/foolscap/lib/sturdyref"
	"github.com/abudulemusa/foolscap/lib/token"
)

const timeout = 5 * time.Second

// calculatorInterface declares the test interface. items is the
// constraint on echo's argument, so a peer can be given a looser
// version of the same interface than the side enforcing it.
func calculatorInterface(items schema.Constraint) *remoteinterface.RemoteInterface {
	return remoteinterface.MustNew("calculator",
		remoteinterface.Method{
			Name:     "add",
			Params:   []remoteinterface.Param{remoteinterface.Arg("a", schema.IntSpec), remoteinterface.Arg("b", schema.IntSpec)},
			Response: schema.IntSpec,
		},
		remoteinterface.Method{
			Name:     "echo",
			Params:   []remoteinterface.Param{remoteinterface.Arg("items", schema.Is(items))},
			Response: schema.Is(items),
		},
		remoteinterface.Method{
			Name:     "self",
			Response: schema.RemoteInterfaceSpec("calculator"),
		},
		remoteinterface.Method{
			Name:     "identify",
			Params:   []remoteinterface.Param{remoteinterface.Arg("object", schema.LocalInterfaceSpec[any]())},
			Response: schema.BoolSpec,
		},
		remoteinterface.Method{
			Name:     "fail",
			Response: schema.BoolSpec,
		},
		remoteinterface.Method{
			Name:     "wait",
			Response: schema.BoolSpec,
		},
	)
}

var (
	strictCalculator = calculatorInterface(schema.ListOf(schema.ByteString(schema.MaxLength(10)), schema.MaxLength(3)))
	looseCalculator  = calculatorInterface(schema.ListOf(schema.ByteString(), schema.MaxLength(10)))
)

// testCalculator is the server-side object. Calls to wait signal
// started and block until release is closed.
type testCalculator struct {
	*remoteinterface.Implementation
	started chan struct{}
	release chan struct{}
}

func newCalculator(t *testing.T) *testCalculator {
	t.Helper()
	calculator := &testCalculator{
		Implementation: remoteinterface.NewImplementation(strictCalculator),
		started:        make(chan struct{}, 1),
		release:        make(chan struct{}),
	}
	t.Cleanup(func() { close(calculator.release) })

	calculator.Handle("add", func(_ context.Context, call *remoteinterface.Call) (any, error) {
		a, _ := call.Arg("a")
		b, _ := call.Arg("b")
		return a.(int64) + b.(int64), nil
	})
	calculator.Handle("echo", func(_ context.Context, call *remoteinterface.Call) (any, error) {
		items, _ := call.Arg("items")
		return items, nil
	})
	calculator.Handle("self", func(context.Context, *remoteinterface.Call) (any, error) {
		return calculator, nil
	})
	calculator.Handle("identify", func(_ context.Context, call *remoteinterface.Call) (any, error) {
		object, _ := call.Arg("object")
		return object == any(calculator), nil
	})
	calculator.Handle("fail", func(context.Context, *remoteinterface.Call) (any, error) {
		return nil, errors.New("calculator is broken")
	})
	calculator.Handle("wait", func(context.Context, *remoteinterface.Call) (any, error) {
		calculator.started <- struct{}{}
		<-calculator.release
		return true, nil
	})
	return calculator
}

func newDirectory(t *testing.T, location string, interfaces ...*remoteinterface.RemoteInterface) *Directory {
	t.Helper()
	directory, err := NewDirectory(Options{
		Location:   location,
		Interfaces: remoteinterface.NewRegistry(interfaces...),
	})
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}
	t.Cleanup(directory.Close)
	return directory
}

// connectPipe joins client and server over an in-process connection.
// Each side registers the broker under the other's location.
func connectPipe(t *testing.T, client, server *Directory) (clientBroker, serverBroker *Broker) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	serverBroker = server.Accept(serverConn, client.Location())
	clientBroker = client.Accept(clientConn, server.Location())
	return clientBroker, serverBroker
}

func publish(t *testing.T, directory *Directory, object schema.Referenceable) sturdyref.SturdyRef {
	t.Helper()
	ref, err := directory.Publish(object)
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	return ref
}

func resolve(t *testing.T, directory *Directory, ref sturdyref.SturdyRef) *RemoteReference {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	reference, err := directory.Resolve(ctx, ref)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	return reference
}

func call(t *testing.T, reference *RemoteReference, method string, args ...any) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return reference.Call(ctx, method, args...)
}

func requireAdd(t *testing.T, reference *RemoteReference, a, b int) {
	t.Helper()
	result, err := call(t, reference, "add", a, b)
	if err != nil {
		t.Fatalf("add(%d, %d) error: %v", a, b, err)
	}
	if result != int64(a+b) {
		t.Fatalf("add(%d, %d) = %v, want %d", a, b, result, a+b)
	}
}

// readMessage reads one complete message from a raw peer, skipping
// hellos.
func readMessage(t *testing.T, reader *token.Reader) []token.Token {
	t.Helper()
	for {
		var message []token.Token
		for {
			next, err := reader.Next()
			if err != nil {
				t.Fatalf("reading message: %v", err)
			}
			message = append(message, next)
			if reader.Depth() == 0 {
				break
			}
		}
		if message[0].Text != messageHello {
			return message
		}
	}
}
