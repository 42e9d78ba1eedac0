// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/abudulemusa/foolscap/lib/remoteinterface"
	"github.com/abudulemusa/foolscap/lib/schema"
	"github.com/abudulemusa/foolscap/lib/token"
	"github.com/abudulemusa/foolscap/transport"
)

// State is a broker's position in its lifecycle. Transitions only move
// forward: Connected, then Disconnecting while the tables are torn
// down, then Disconnected for good.
type State int32

const (
	StateConnected State = iota
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Compile-time interface checks.
var (
	_ schema.ReferenceEncoder = (*Broker)(nil)
	_ schema.ReferenceDecoder = (*Broker)(nil)
)

// Broker owns the reference tables for one connection. Brokers are
// created by a Directory through Accept or Connect.
type Broker struct {
	id        ulid.ULID
	location  string
	directory *Directory
	conn      net.Conn
	reader    *token.Reader
	writer    *token.Writer
	limits    schema.Limits
	logger    *slog.Logger

	state atomic.Int32

	mu             sync.Mutex
	nextLocalID    uint64
	nextRequestID  uint64
	localObjects   map[uint64]schema.Referenceable
	localIDs       map[any]uint64
	sent           map[uint64]uint64 // times each export id was sent
	remoteTrackers map[uint64]*ReferenceTracker
	pending        map[uint64]*pendingRequest
	helloSeen      bool
	peerAuthority  string
	peerLocation   string
	cause          error

	hello        chan struct{}
	done         chan struct{}
	shutdownOnce sync.Once
}

// pendingRequest is an outbound call or lookup awaiting its answer.
type pendingRequest struct {
	response  schema.Constraint
	path      []string
	reference uint64
	iface     string
	result    chan outcome
}

type outcome struct {
	value any
	err   error
}

func newBroker(directory *Directory, conn net.Conn, location string) *Broker {
	id := ulid.Make()
	return &Broker{
		id:             id,
		location:       location,
		directory:      directory,
		conn:           conn,
		reader:         token.NewReader(conn, directory.tokenLimits),
		writer:         token.NewWriter(conn),
		limits:         directory.schemaLimits,
		logger:         directory.logger.With("broker", id.String(), "location", location),
		nextLocalID:    1,
		nextRequestID:  1,
		localObjects:   make(map[uint64]schema.Referenceable),
		localIDs:       make(map[any]uint64),
		sent:           make(map[uint64]uint64),
		remoteTrackers: make(map[uint64]*ReferenceTracker),
		pending:        make(map[uint64]*pendingRequest),
		hello:          make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// start runs the read loop and announces this side's identity. The
// hello is sent from its own goroutine: on a synchronous transport
// both peers would otherwise block writing before either reads.
func (b *Broker) start() {
	go b.receive()
	go func() {
		err := b.send(
			token.OpenMessage(messageHello),
			token.Text(b.directory.authority.ID()),
			token.Text(b.directory.location),
			token.Close(),
		)
		if err != nil {
			b.logger.Debug("hello not sent", "error", err)
		}
	}()
}

// ID returns the broker's identity, unique for the life of the process.
func (b *Broker) ID() ulid.ULID { return b.id }

// Location returns the routing hint the connection was made or
// accepted under.
func (b *Broker) Location() string { return b.location }

// State returns the current lifecycle state.
func (b *Broker) State() State { return State(b.state.Load()) }

// Connected reports whether the broker still accepts calls.
func (b *Broker) Connected() bool { return b.State() == StateConnected }

// Done is closed once the broker has disconnected.
func (b *Broker) Done() <-chan struct{} { return b.done }

// Err returns why the broker disconnected: nil for a clean close by
// either side, otherwise the framing or I/O error that ended it.
func (b *Broker) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cause
}

// PeerAuthority waits for the peer's hello and returns the authority
// ID it announced.
func (b *Broker) PeerAuthority(ctx context.Context) (string, error) {
	select {
	case <-b.hello:
	case <-b.done:
		return "", b.deadError(0, "")
	case <-ctx.Done():
		return "", ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peerAuthority, nil
}

// Exported returns the number of local objects the peer can currently
// reach through this broker.
func (b *Broker) Exported() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.localObjects)
}

// Tracked returns the number of live remote references.
func (b *Broker) Tracked() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.remoteTrackers)
}

// Close disconnects the broker. Every reference obtained through it
// becomes dead and pending calls fail.
func (b *Broker) Close() {
	b.shutdown(nil)
}

// shutdown moves the broker to Disconnected. Only the first call has
// any effect; cause is recorded as the reason.
func (b *Broker) shutdown(cause error) {
	b.shutdownOnce.Do(func() {
		b.state.Store(int32(StateDisconnecting))
		b.conn.Close()

		b.mu.Lock()
		trackers, pending := b.remoteTrackers, b.pending
		b.localObjects = make(map[uint64]schema.Referenceable)
		b.localIDs = make(map[any]uint64)
		b.sent = make(map[uint64]uint64)
		b.remoteTrackers = make(map[uint64]*ReferenceTracker)
		b.pending = make(map[uint64]*pendingRequest)
		for _, tracker := range trackers {
			tracker.dead.Store(true)
		}
		b.cause = cause
		b.state.Store(int32(StateDisconnected))
		b.mu.Unlock()

		for _, request := range pending {
			request.result <- outcome{err: b.deadError(request.reference, request.iface)}
		}
		close(b.done)

		if cause != nil {
			b.logger.Info("broker disconnected", "error", cause)
		} else {
			b.logger.Info("broker disconnected")
		}
		b.directory.detach(b, cause)
	})
}

func (b *Broker) deadError(reference uint64, iface string) error {
	return &DeadReferenceError{BrokerID: b.id, ReferenceID: reference, Interface: iface}
}

// EncodeReference turns a capability into a reference token, exporting
// local objects on first use. Exporting the same comparable object
// again reuses its id.
func (b *Broker) EncodeReference(value any) (token.Token, error) {
	switch v := value.(type) {
	case *RemoteReference:
		if v.tracker.brokerID != b.id {
			return token.Token{}, ErrUnsupportedGift
		}
		if !v.tracker.Alive() {
			return token.Token{}, v.tracker.deadError()
		}
		return token.YourReference(v.tracker.id), nil
	case schema.RemoteProxy:
		return token.Token{}, ErrUnsupportedGift
	case schema.Referenceable:
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.State() != StateConnected {
			return token.Token{}, b.deadError(0, v.ExportedInterface())
		}
		id := b.exportLocked(v)
		b.sent[id]++
		return token.MyReference(id, v.ExportedInterface()), nil
	}
	return token.Token{}, fmt.Errorf("broker: %T is not a capability", value)
}

func (b *Broker) exportLocked(object schema.Referenceable) uint64 {
	keyed := isComparable(object)
	if keyed {
		if id, ok := b.localIDs[object]; ok {
			return id
		}
	}
	id := b.nextLocalID
	b.nextLocalID++
	b.localObjects[id] = object
	if keyed {
		b.localIDs[object] = id
	}
	return id
}

// isComparable reports whether object can key the local id table.
func isComparable(object any) bool {
	return reflect.ValueOf(object).Comparable()
}

// DecodeReference resolves an inbound reference token. A my-reference
// yields the one RemoteReference tracking that remote id on this
// broker; a your-reference yields the local object exported under id.
func (b *Broker) DecodeReference(t token.Token) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State() != StateConnected {
		return nil, &schema.Violation{Reason: "connection closed"}
	}
	switch t.Kind {
	case token.KindMyReference:
		if tracker, ok := b.remoteTrackers[t.Reference]; ok {
			if tracker.iface != t.Text {
				return nil, &schema.Violation{Reason: fmt.Sprintf(
					"reference %d announced as %q, previously %q", t.Reference, t.Text, tracker.iface)}
			}
			tracker.received++
			return tracker.reference, nil
		}
		tracker := newTracker(b.id, b.directory.Broker, t.Reference, t.Text)
		tracker.received = 1
		b.remoteTrackers[t.Reference] = tracker
		return tracker.reference, nil
	case token.KindYourReference:
		object, ok := b.localObjects[t.Reference]
		if !ok {
			return nil, &schema.Violation{Reason: fmt.Sprintf("no object exported under id %d", t.Reference)}
		}
		return object, nil
	}
	return nil, &schema.Violation{Reason: "expected a reference, got " + t.String()}
}

// call checks and sends one method call, then waits for its answer.
func (b *Broker) call(ctx context.Context, tracker *ReferenceTracker, method *remoteinterface.MethodSchema, positional []any, keyword map[string]any) (any, error) {
	if err := method.CheckAllArgsWithLimits(positional, keyword, schema.Outbound, b.limits); err != nil {
		return nil, err
	}

	body := []token.Token{
		token.Int(int64(tracker.id)),
		token.Text(method.Name()),
		token.Open(token.ContainerTuple),
	}
	for _, argument := range positional {
		tokens, err := schema.FlattenWithLimits(argument, b, b.limits)
		if err != nil {
			return nil, fmt.Errorf("broker: encoding %s arguments: %w", method.Name(), err)
		}
		body = append(body, tokens...)
	}
	body = append(body, token.Close(), token.Open(token.ContainerMapping))
	for _, name := range slices.Sorted(maps.Keys(keyword)) {
		tokens, err := schema.FlattenWithLimits(keyword[name], b, b.limits)
		if err != nil {
			return nil, fmt.Errorf("broker: encoding %s argument %q: %w", method.Name(), name, err)
		}
		body = append(body, token.Text(name))
		body = append(body, tokens...)
	}
	body = append(body, token.Close())

	return b.request(ctx, messageCall, body, &pendingRequest{
		response:  method.Response(),
		path:      []string{schema.FieldSegment(method.Name()), schema.FieldSegment("<result>")},
		reference: tracker.id,
		iface:     tracker.iface,
	})
}

// Lookup asks the peer for the object it published under swissNumber.
func (b *Broker) Lookup(ctx context.Context, swissNumber string) (*RemoteReference, error) {
	value, err := b.request(ctx, messageLookup, []token.Token{token.Text(swissNumber)}, &pendingRequest{
		response: schema.RemoteInterfaceRef(""),
	})
	if err != nil {
		return nil, err
	}
	reference, ok := value.(*RemoteReference)
	if !ok {
		return nil, fmt.Errorf("broker: lookup answered with %T", value)
	}
	return reference, nil
}

// request registers p under a fresh request id, sends the message and
// waits for the answer, the broker's end, or ctx.
func (b *Broker) request(ctx context.Context, kind string, body []token.Token, p *pendingRequest) (any, error) {
	p.result = make(chan outcome, 1)

	b.mu.Lock()
	if b.State() != StateConnected {
		b.mu.Unlock()
		return nil, b.deadError(p.reference, p.iface)
	}
	id := b.nextRequestID
	b.nextRequestID++
	b.pending[id] = p
	b.mu.Unlock()

	message := make([]token.Token, 0, len(body)+3)
	message = append(message, token.OpenMessage(kind), token.Int(int64(id)))
	message = append(message, body...)
	message = append(message, token.Close())
	if err := b.send(message...); err != nil {
		b.forget(id)
		if b.State() != StateConnected {
			return nil, b.deadError(p.reference, p.iface)
		}
		return nil, err
	}

	select {
	case result := <-p.result:
		return result.value, result.err
	case <-ctx.Done():
		b.forget(id)
		return nil, ctx.Err()
	}
}

// forget drops a pending request whose caller stopped waiting.
func (b *Broker) forget(id uint64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// release stops tracking a remote object and tells the peer how many
// times the reference arrived, so the peer keeps the export alive for
// copies still in flight.
func (b *Broker) release(tracker *ReferenceTracker) error {
	b.mu.Lock()
	if current, ok := b.remoteTrackers[tracker.id]; ok && current == tracker {
		delete(b.remoteTrackers, tracker.id)
	}
	received := tracker.received
	b.mu.Unlock()
	return b.send(
		token.OpenMessage(messageDecref),
		token.Int(int64(tracker.id)),
		token.Int(int64(received)),
		token.Close(),
	)
}

// send writes one complete message. A write failure ends the
// connection.
func (b *Broker) send(tokens ...token.Token) error {
	if err := b.writer.Write(tokens...); err != nil {
		if b.Connected() {
			if transport.IsExpectedCloseError(err) {
				b.shutdown(nil)
			} else {
				b.logger.Error("write failed", "error", err)
				b.shutdown(err)
			}
		}
		return fmt.Errorf("broker: %w", err)
	}
	return nil
}
