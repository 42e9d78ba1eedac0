// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/abudulemusa/foolscap/lib/clock"
	"github.com/abudulemusa/foolscap/lib/config"
	"github.com/abudulemusa/foolscap/lib/remoteinterface"
	"github.com/abudulemusa/foolscap/lib/schema"
	"github.com/abudulemusa/foolscap/lib/sturdyref"
	"github.com/abudulemusa/foolscap/lib/token"
	"github.com/abudulemusa/foolscap/transport"
)

// EventKind identifies a broker lifecycle transition.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is delivered to Directory observers when a broker connects or
// disconnects. Err is the disconnect cause, nil for a clean close.
type Event struct {
	Kind     EventKind
	Broker   ulid.ULID
	Location string
	At       time.Time
	Err      error
}

// Options configures a Directory. Zero fields take defaults: a freshly
// generated authority, an empty interface registry, a discarding
// logger, the real clock and default limits.
type Options struct {
	// Authority identifies this process in the SturdyRefs it issues.
	Authority *sturdyref.Authority

	// Location is the routing hint peers use to reach this process. It
	// is written into issued SturdyRefs and announced on every
	// connection.
	Location string

	// Interfaces holds the remote interfaces this process can call.
	// References declaring an interface missing from it cannot be
	// called.
	Interfaces *remoteinterface.Registry

	// Listen is the TCP address Listen opens. Empty means the process
	// only makes outbound connections.
	Listen string

	// Dialer opens connections for Connect and Resolve.
	Dialer transport.Dialer

	Logger       *slog.Logger
	Clock        clock.Clock
	SchemaLimits schema.Limits
	TokenLimits  token.Limits
}

// OptionsFromConfig builds Options from a loaded configuration: the
// authority keypair is loaded from (or created in) the configured state
// directory and connections are dialed over TCP.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return Options{}, err
	}
	authority, _, err := sturdyref.LoadOrGenerateAuthority(cfg.Broker.StateDir)
	if err != nil {
		return Options{}, fmt.Errorf("broker: loading authority: %w", err)
	}
	return Options{
		Authority:    authority,
		Location:     cfg.Broker.Location,
		Listen:       cfg.Broker.Listen,
		Dialer:       &transport.TCPDialer{},
		SchemaLimits: cfg.SchemaLimits(),
		TokenLimits:  cfg.TokenLimits(),
	}, nil
}

// publication is one object reachable by swiss number.
type publication struct {
	ref    sturdyref.SturdyRef
	object schema.Referenceable
}

// Directory is the per-process registry of published objects and live
// brokers. It is safe for concurrent use.
type Directory struct {
	authority    *sturdyref.Authority
	location     string
	interfaces   *remoteinterface.Registry
	listen       string
	dialer       transport.Dialer
	logger       *slog.Logger
	clock        clock.Clock
	schemaLimits schema.Limits
	tokenLimits  token.Limits

	mu           sync.Mutex
	published    map[string]publication
	brokers      map[ulid.ULID]*Broker
	byLocation   map[string]*Broker
	observers    map[int]func(Event)
	nextObserver int
}

// NewDirectory returns a Directory configured by options.
func NewDirectory(options Options) (*Directory, error) {
	if options.Authority == nil {
		authority, err := sturdyref.GenerateAuthority()
		if err != nil {
			return nil, err
		}
		options.Authority = authority
	}
	if options.Interfaces == nil {
		options.Interfaces = remoteinterface.NewRegistry()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.SchemaLimits == (schema.Limits{}) {
		options.SchemaLimits = schema.DefaultLimits()
	}
	if options.TokenLimits == (token.Limits{}) {
		options.TokenLimits = token.DefaultLimits()
	}
	return &Directory{
		authority:    options.Authority,
		location:     options.Location,
		interfaces:   options.Interfaces,
		listen:       options.Listen,
		dialer:       options.Dialer,
		logger:       options.Logger,
		clock:        options.Clock,
		schemaLimits: options.SchemaLimits,
		tokenLimits:  options.TokenLimits,
		published:    make(map[string]publication),
		brokers:      make(map[ulid.ULID]*Broker),
		byLocation:   make(map[string]*Broker),
		observers:    make(map[int]func(Event)),
	}, nil
}

// Authority returns the directory's authority.
func (d *Directory) Authority() *sturdyref.Authority { return d.authority }

// Location returns the advertised routing hint.
func (d *Directory) Location() string { return d.location }

// Interfaces returns the registry used to check outbound calls.
func (d *Directory) Interfaces() *remoteinterface.Registry { return d.interfaces }

// Publish makes object reachable by a fresh random swiss number and
// returns the SturdyRef that grants access to it.
func (d *Directory) Publish(object schema.Referenceable) (sturdyref.SturdyRef, error) {
	swissNumber, err := sturdyref.NewSwissNumber()
	if err != nil {
		return sturdyref.SturdyRef{}, err
	}
	return d.publish(object, swissNumber, "")
}

// PublishNamed makes object reachable under a swiss number derived from
// the authority and name, so the same name yields the same SturdyRef
// across restarts.
func (d *Directory) PublishNamed(name string, object schema.Referenceable) (sturdyref.SturdyRef, error) {
	swissNumber, err := d.authority.DeriveSwissNumber(name)
	if err != nil {
		return sturdyref.SturdyRef{}, err
	}
	return d.publish(object, swissNumber, name)
}

func (d *Directory) publish(object schema.Referenceable, swissNumber, name string) (sturdyref.SturdyRef, error) {
	if object == nil {
		return sturdyref.SturdyRef{}, fmt.Errorf("broker: publishing a nil object")
	}
	ref := sturdyref.New(d.location, swissNumber)
	ref.Name = name
	ref.Authority = d.authority.ID()
	if err := ref.Validate(); err != nil {
		return sturdyref.SturdyRef{}, err
	}

	d.mu.Lock()
	d.published[swissNumber] = publication{ref: ref, object: object}
	d.mu.Unlock()

	d.logger.Info("published object", "interface", object.ExportedInterface(), "ref", ref.String())
	return ref, nil
}

// Unpublish withdraws the object published under ref's swiss number.
// References peers already hold keep working until released or
// disconnected.
func (d *Directory) Unpublish(ref sturdyref.SturdyRef) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.published[ref.SwissNumber]; !ok {
		return false
	}
	delete(d.published, ref.SwissNumber)
	return true
}

// Published returns the SturdyRefs of every published object, ordered
// by name and then swiss number.
func (d *Directory) Published() []sturdyref.SturdyRef {
	d.mu.Lock()
	refs := make([]sturdyref.SturdyRef, 0, len(d.published))
	for _, entry := range d.published {
		refs = append(refs, entry.ref)
	}
	d.mu.Unlock()
	slices.SortFunc(refs, func(a, b sturdyref.SturdyRef) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.SwissNumber, b.SwissNumber))
	})
	return refs
}

func (d *Directory) lookup(swissNumber string) (schema.Referenceable, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.published[swissNumber]
	return entry.object, ok
}

// Accept starts a broker on conn, which was established under
// location. The broker runs until either side closes the connection.
func (d *Directory) Accept(conn net.Conn, location string) *Broker {
	b := newBroker(d, conn, location)

	d.mu.Lock()
	d.brokers[b.id] = b
	if location != "" {
		d.indexLocked(b, location)
	}
	d.mu.Unlock()

	b.logger.Info("broker connected")
	d.notify(Event{Kind: EventConnected, Broker: b.id, Location: location, At: d.clock.Now()})
	b.start()
	return b
}

// Listen opens a TCP listener on the configured listen address. Pass it
// to Serve.
func (d *Directory) Listen() (*transport.TCPListener, error) {
	if d.listen == "" {
		return nil, ErrNoListenAddress
	}
	listener, err := transport.NewTCPListener(d.listen)
	if err != nil {
		return nil, fmt.Errorf("broker: %w", err)
	}
	d.logger.Info("listening", "address", listener.Address())
	return listener, nil
}

// Serve accepts connections from listener until ctx is done or the
// listener is closed, starting a broker for each.
func (d *Directory) Serve(ctx context.Context, listener transport.Listener) error {
	return listener.Serve(ctx, func(conn net.Conn) {
		d.Accept(conn, conn.RemoteAddr().String())
	})
}

// Connect returns a connected broker for location, reusing a live one
// when there is one and dialing otherwise.
func (d *Directory) Connect(ctx context.Context, location string) (*Broker, error) {
	d.mu.Lock()
	if b, ok := d.byLocation[location]; ok && b.Connected() {
		d.mu.Unlock()
		return b, nil
	}
	d.mu.Unlock()

	if d.dialer == nil {
		return nil, ErrNoDialer
	}
	conn, err := d.dialer.DialContext(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("broker: dialing %s: %w", location, err)
	}
	return d.Accept(conn, location), nil
}

// Resolve turns a SturdyRef into a live reference: it connects to the
// ref's location, checks the peer's authority when the ref names one,
// and looks up the swiss number.
func (d *Directory) Resolve(ctx context.Context, ref sturdyref.SturdyRef) (*RemoteReference, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	b, err := d.Connect(ctx, ref.Location)
	if err != nil {
		return nil, err
	}
	if ref.Authority != "" {
		announced, err := b.PeerAuthority(ctx)
		if err != nil {
			return nil, err
		}
		if announced != ref.Authority {
			return nil, fmt.Errorf("%w: %s announced %s, want %s", ErrAuthorityMismatch, ref.Location, announced, ref.Authority)
		}
	}
	return b.Lookup(ctx, ref.SwissNumber)
}

// Broker returns the live broker with id.
func (d *Directory) Broker(id ulid.ULID) (*Broker, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.brokers[id]
	return b, ok
}

// Brokers returns every live broker.
func (d *Directory) Brokers() []*Broker {
	d.mu.Lock()
	defer d.mu.Unlock()
	brokers := make([]*Broker, 0, len(d.brokers))
	for _, b := range d.brokers {
		brokers = append(brokers, b)
	}
	return brokers
}

// Observe registers observer for lifecycle events and returns a
// function that removes it. Observers run synchronously on the goroutine
// causing the transition and must not block.
func (d *Directory) Observe(observer func(Event)) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := d.nextObserver
	d.nextObserver++
	d.observers[key] = observer
	return func() {
		d.mu.Lock()
		delete(d.observers, key)
		d.mu.Unlock()
	}
}

// Close disconnects every broker.
func (d *Directory) Close() {
	for _, b := range d.Brokers() {
		b.Close()
	}
}

// announced records the location a peer said it listens on, so a later
// Connect to that location can reuse the connection it made to us.
func (d *Directory) announced(b *Broker, location string) {
	if location == "" || !b.Connected() {
		return
	}
	d.mu.Lock()
	d.indexLocked(b, location)
	d.mu.Unlock()
}

func (d *Directory) indexLocked(b *Broker, location string) {
	if current, ok := d.byLocation[location]; ok && current.Connected() {
		return
	}
	d.byLocation[location] = b
}

// detach forgets a disconnected broker.
func (d *Directory) detach(b *Broker, cause error) {
	d.mu.Lock()
	delete(d.brokers, b.id)
	for location, current := range d.byLocation {
		if current == b {
			delete(d.byLocation, location)
		}
	}
	d.mu.Unlock()

	d.notify(Event{Kind: EventDisconnected, Broker: b.id, Location: b.location, At: d.clock.Now(), Err: cause})
}

func (d *Directory) notify(event Event) {
	d.mu.Lock()
	keys := make([]int, 0, len(d.observers))
	for key := range d.observers {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	observers := make([]func(Event), 0, len(keys))
	for _, key := range keys {
		observers = append(observers, d.observers[key])
	}
	d.mu.Unlock()

	for _, observer := range observers {
		observer(event)
	}
}
