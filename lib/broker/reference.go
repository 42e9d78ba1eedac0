// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/abudulemusa/foolscap/lib/schema"
)

var _ schema.RemoteProxy = (*RemoteReference)(nil)

// ReferenceTracker stands for one object the peer exported on one
// broker. A broker creates at most one tracker per remote id, so two
// references to the same remote object through the same connection
// are the same *RemoteReference.
//
// The tracker names its broker by ID rather than holding it: calls look
// the broker up through the Directory, and a tracker whose broker has
// gone is dead forever.
type ReferenceTracker struct {
	brokerID  ulid.ULID
	lookup    func(ulid.ULID) (*Broker, bool)
	id        uint64
	iface     string
	dead      atomic.Bool
	released  atomic.Bool
	reference *RemoteReference

	received uint64 // times the peer sent this reference; guarded by the broker's mu
}

func newTracker(brokerID ulid.ULID, lookup func(ulid.ULID) (*Broker, bool), id uint64, iface string) *ReferenceTracker {
	tracker := &ReferenceTracker{
		brokerID: brokerID,
		lookup:   lookup,
		id:       id,
		iface:    iface,
	}
	tracker.reference = &RemoteReference{tracker: tracker}
	return tracker
}

// BrokerID returns the ID of the broker the reference arrived on.
func (t *ReferenceTracker) BrokerID() ulid.ULID { return t.brokerID }

// ID returns the peer's export id for the object.
func (t *ReferenceTracker) ID() uint64 { return t.id }

// Interface returns the interface name the peer declared.
func (t *ReferenceTracker) Interface() string { return t.iface }

// Alive reports whether calls through the tracker can still succeed.
func (t *ReferenceTracker) Alive() bool {
	return !t.dead.Load() && !t.released.Load()
}

// broker returns the tracker's broker if it is still connected.
func (t *ReferenceTracker) broker() (*Broker, error) {
	if t.released.Load() {
		return nil, ErrReleased
	}
	if !t.dead.Load() {
		if b, ok := t.lookup(t.brokerID); ok && b.Connected() {
			return b, nil
		}
		t.dead.Store(true)
	}
	return nil, t.deadError()
}

func (t *ReferenceTracker) deadError() error {
	return &DeadReferenceError{BrokerID: t.brokerID, ReferenceID: t.id, Interface: t.iface}
}

// RemoteReference is the application's handle on a remote object.
type RemoteReference struct {
	tracker *ReferenceTracker
}

// RemoteInterface returns the interface name the owner declared.
func (r *RemoteReference) RemoteInterface() string { return r.tracker.iface }

// Tracker returns the reference's tracker.
func (r *RemoteReference) Tracker() *ReferenceTracker { return r.tracker }

// Alive reports whether calls through the reference can still succeed.
func (r *RemoteReference) Alive() bool { return r.tracker.Alive() }

func (r *RemoteReference) String() string {
	return fmt.Sprintf("<remote %s %d on %s>", r.tracker.iface, r.tracker.id, r.tracker.brokerID)
}

// Call invokes method with positional arguments and waits for the
// result.
func (r *RemoteReference) Call(ctx context.Context, method string, args ...any) (any, error) {
	return r.CallKeyword(ctx, method, args, nil)
}

// CallKeyword invokes method with positional and keyword arguments.
// The arguments are checked against the method schema before anything
// is sent, and the answer is checked against the declared response
// before it is returned.
//
// Calls fail with a *DeadReferenceError once the reference's broker has
// disconnected, and with a *RemoteError when the peer rejects or fails
// the call.
func (r *RemoteReference) CallKeyword(ctx context.Context, method string, positional []any, keyword map[string]any) (any, error) {
	b, err := r.tracker.broker()
	if err != nil {
		return nil, err
	}
	iface, ok := b.directory.interfaces.Lookup(r.tracker.iface)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterface, r.tracker.iface)
	}
	methodSchema, ok := iface.Method(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, r.tracker.iface, method)
	}
	return b.call(ctx, r.tracker, methodSchema, positional, keyword)
}

// Release tells the peer this side no longer needs the object. Later
// calls through the reference fail with ErrReleased. Releasing a dead
// reference does nothing.
//
// The peer drops its export only once every copy it sent has been
// released. A copy still in flight when Release is called arrives as a
// new, live reference.
func (r *RemoteReference) Release() error {
	b, err := r.tracker.broker()
	if err != nil {
		return nil
	}
	if r.tracker.released.Swap(true) {
		return nil
	}
	return b.release(r.tracker)
}
