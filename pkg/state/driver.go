package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/go-logr/logr"

	"github.com/ipfs-shipyard/peer-locations/internal/channel"
	"github.com/ipfs-shipyard/peer-locations/internal/option"
	"github.com/ipfs-shipyard/peer-locations/pkg/locations"
	"github.com/ipfs-shipyard/peer-locations/pkg/metrics"
)

const DefaultConcurrency = 10

// Resolver resolves the location of a single peer address.
type Resolver interface {
	Resolve(ctx context.Context, peerID, addr string) (locations.Result, error)
}

var _ Resolver = &locations.Worker{}

type DriverConfig struct {
	Concurrency int
}

type DriverOption = option.Option[DriverConfig]

// WithConcurrency sets the maximum number of peers resolved at the same time.
func WithConcurrency(n int) DriverOption {
	return func(cfg *DriverConfig) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be at least 1, got %d", n)
		}
		cfg.Concurrency = n
		return nil
	}
}

type actionKind string

const (
	actionPeersUpdated      actionKind = "peers_updated"
	actionConnectionChanged actionKind = "connection_changed"
	actionResolveFinished   actionKind = "resolve_finished"
)

type action struct {
	err       error
	done      chan struct{}
	kind      actionKind
	key       locations.Key
	result    locations.Result
	peers     []locations.Peer
	connected bool
}

// Driver owns the location store. Every change is applied by Run one action at
// a time, after which new addresses are planned and queued work is started
// until the concurrency limit is reached.
type Driver struct {
	resolver  Resolver
	actionCh  chan action
	idle      *channel.Gate
	store     locations.Store
	peers     []locations.Peer
	limit     int
	mx        sync.RWMutex
	connected bool
}

func NewDriver(resolver Resolver, opts ...DriverOption) (*Driver, error) {
	cfg := DriverConfig{
		Concurrency: DefaultConcurrency,
	}
	err := option.Apply(&cfg, opts...)
	if err != nil {
		return nil, err
	}
	if resolver == nil {
		return nil, errors.New("resolver cannot be nil")
	}
	return &Driver{
		resolver: resolver,
		limit:    cfg.Concurrency,
		actionCh: make(chan action),
		idle:     channel.NewOpenGate(),
		store:    locations.NewStore(),
	}, nil
}

// Run applies actions until the context is cancelled. In flight resolutions
// are waited for on return and their results are dropped.
func (d *Driver) Run(ctx context.Context) error {
	log := logr.FromContextOrDiscard(ctx).WithName("driver")
	ctx = logr.NewContext(ctx, log)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping driver", "resolving", len(d.Snapshot().ResolvingPeers()))
			return nil
		case a := <-d.actionCh:
			d.apply(ctx, a)
			d.reconcile(ctx, &wg)
			if a.done != nil {
				close(a.done)
			}
		}
	}
}

// UpdatePeers replaces the visible peer set. It returns once the update has
// been applied.
func (d *Driver) UpdatePeers(ctx context.Context, peers []locations.Peer) error {
	return d.send(ctx, action{kind: actionPeersUpdated, peers: slices.Clone(peers)})
}

// SetConnected toggles scheduling. Nothing new is started while disconnected.
func (d *Driver) SetConnected(ctx context.Context, connected bool) error {
	return d.send(ctx, action{kind: actionConnectionChanged, connected: connected})
}

func (d *Driver) send(ctx context.Context, a action) error {
	a.done = make(chan struct{})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case d.actionCh <- a:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return nil
	}
}

// Snapshot returns the current store. The value is immutable and safe to
// read from any goroutine.
func (d *Driver) Snapshot() locations.Store {
	d.mx.RLock()
	defer d.mx.RUnlock()

	return d.store
}

// Peers returns the visible peer set.
func (d *Driver) Peers() []locations.Peer {
	d.mx.RLock()
	defer d.mx.RUnlock()

	return slices.Clone(d.peers)
}

func (d *Driver) Connected() bool {
	d.mx.RLock()
	defer d.mx.RUnlock()

	return d.connected
}

// Idle is open while nothing is resolving and no queued work can be started.
func (d *Driver) Idle() *channel.Gate {
	return d.idle
}

func (d *Driver) apply(ctx context.Context, a action) {
	log := logr.FromContextOrDiscard(ctx)

	d.mx.Lock()
	defer d.mx.Unlock()

	switch a.kind {
	case actionPeersUpdated:
		d.peers = a.peers
		metrics.VisiblePeers.Set(float64(len(d.peers)))
	case actionConnectionChanged:
		if d.connected != a.connected {
			log.Info("node connection changed", "connected", a.connected)
		}
		d.connected = a.connected
	case actionResolveFinished:
		var next locations.Store
		var err error
		if a.err != nil {
			next, err = d.store.FinishFailed(a.key.PeerID, a.key.Addr, a.err)
		} else {
			next, err = d.store.FinishResolved(a.key.PeerID, a.key.Addr, a.result.Location)
		}
		if err != nil {
			log.Error(err, "could not finish resolution", "peer", a.key.PeerID, "addr", a.key.Addr)
			metrics.InvalidTransitionsTotal.WithLabelValues(string(a.kind)).Inc()
			return
		}
		d.store = next
		if a.err != nil {
			reason := "lookup"
			if errors.Is(a.err, locations.ErrUnresolvableAddress) {
				reason = "unresolvable"
			}
			log.V(4).Info("resolution failed", "peer", a.key.PeerID, "addr", a.key.Addr, "err", a.err.Error())
			metrics.ResolutionsTotal.WithLabelValues("failed", reason).Inc()
			return
		}
		log.V(4).Info("resolved location", "peer", a.key.PeerID, "addr", a.key.Addr, "source", a.result.Source, "location", a.result.Location.String())
		metrics.ResolutionsTotal.WithLabelValues("resolved", string(a.result.Source)).Inc()
	}
}

// reconcile plans new addresses and starts as much queued work as allowed.
func (d *Driver) reconcile(ctx context.Context, wg *sync.WaitGroup) {
	log := logr.FromContextOrDiscard(ctx)

	d.mx.Lock()
	defer d.mx.Unlock()

	if req, ok := locations.Plan(d.peers, d.store); ok {
		d.store = d.store.Enqueue(req)
	}
	for d.connected {
		k, ok := locations.Next(d.store, d.limit)
		if !ok {
			break
		}
		next, err := d.store.BeginResolving(k.PeerID, k.Addr)
		if err != nil {
			log.Error(err, "could not begin resolution", "peer", k.PeerID, "addr", k.Addr)
			metrics.InvalidTransitionsTotal.WithLabelValues("begin_resolving").Inc()
			break
		}
		d.store = next
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := d.resolver.Resolve(ctx, k.PeerID, k.Addr)
			select {
			case <-ctx.Done():
			case d.actionCh <- action{kind: actionResolveFinished, key: k, result: res, err: err}:
			}
		}()
	}

	queuing := len(d.store.QueuingPeers())
	resolving := len(d.store.ResolvingPeers())
	metrics.QueuingPeers.Set(float64(queuing))
	metrics.ResolvingPeers.Set(float64(resolving))
	d.idle.Set(resolving == 0 && (queuing == 0 || !d.connected))
}
