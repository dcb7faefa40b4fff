package locations

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/go-logr/logr"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/ipfs-shipyard/peer-locations/internal/option"
	"github.com/ipfs-shipyard/peer-locations/pkg/cache"
	"github.com/ipfs-shipyard/peer-locations/pkg/geoip"
	"github.com/ipfs-shipyard/peer-locations/pkg/metrics"
)

const DefaultLookupTimeout = 10 * time.Second

type Source string

const (
	SourceCache  Source = "cache"
	SourceLookup Source = "lookup"
)

// Result is a resolved location and where it came from.
type Result struct {
	Source   Source
	Location geoip.Location
}

type WorkerConfig struct {
	LookupTimeout time.Duration
}

type WorkerOption = option.Option[WorkerConfig]

func WithLookupTimeout(d time.Duration) WorkerOption {
	return func(cfg *WorkerConfig) error {
		if d <= 0 {
			return fmt.Errorf("lookup timeout must be positive, got %s", d)
		}
		cfg.LookupTimeout = d
		return nil
	}
}

// Worker resolves a single peer address through the cache or the lookup
// service. It never touches the store, results are reported by the caller.
type Worker struct {
	cache         cache.Cache
	lookup        geoip.Lookuper
	lookupTimeout time.Duration
}

func NewWorker(c cache.Cache, lookup geoip.Lookuper, opts ...WorkerOption) (*Worker, error) {
	cfg := WorkerConfig{
		LookupTimeout: DefaultLookupTimeout,
	}
	err := option.Apply(&cfg, opts...)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.New("cache cannot be nil")
	}
	if lookup == nil {
		return nil, errors.New("lookuper cannot be nil")
	}
	return &Worker{
		cache:         c,
		lookup:        lookup,
		lookupTimeout: cfg.LookupTimeout,
	}, nil
}

// Resolve returns the location of the peer. A cached location for the peer
// wins over the address. On a miss the public IPv4 address embedded in addr is
// looked up and a successful result is written to the cache.
func (w *Worker) Resolve(ctx context.Context, peerID, addr string) (Result, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("peer", peerID, "addr", addr)

	loc, ok, err := w.cache.Get(ctx, peerID)
	if err != nil {
		log.Error(err, "could not read location cache, falling back to lookup")
	}
	if err == nil && ok {
		return Result{Location: loc, Source: SourceCache}, nil
	}

	ip, err := PublicIPv4(addr)
	if err != nil {
		return Result{}, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, w.lookupTimeout)
	defer cancel()
	start := time.Now()
	loc, err = w.lookup.Lookup(lookupCtx, ip)
	if err != nil {
		metrics.LookupDurHistogram.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		return Result{}, fmt.Errorf("%w for %s: %w", ErrLookupFailed, ip, err)
	}
	metrics.LookupDurHistogram.WithLabelValues("resolved").Observe(time.Since(start).Seconds())

	err = w.cache.Set(ctx, peerID, loc)
	if err != nil {
		log.Error(err, "could not write location cache")
	}
	return Result{Location: loc, Source: SourceLookup}, nil
}

// PublicIPv4 returns the first IPv4 component of a multiaddr. Loopback,
// private, link local, multicast and unspecified addresses are rejected.
func PublicIPv4(addr string) (netip.Addr, error) {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w %s: %w", ErrUnresolvableAddress, addr, err)
	}
	v, err := m.ValueForProtocol(ma.P_IP4)
	if errors.Is(err, ma.ErrProtocolNotFound) {
		return netip.Addr{}, fmt.Errorf("%w %s: no IPv4 component", ErrUnresolvableAddress, addr)
	}
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w %s: %w", ErrUnresolvableAddress, addr, err)
	}
	ip, err := netip.ParseAddr(v)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w %s: %w", ErrUnresolvableAddress, addr, err)
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsMulticast() || ip.IsUnspecified() {
		return netip.Addr{}, fmt.Errorf("%w %s: %s is not a public address", ErrUnresolvableAddress, addr, ip)
	}
	return ip, nil
}
