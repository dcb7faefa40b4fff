package geoip

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
)

var _ Lookuper = &Memory{}

// Memory is an in-memory lookup table that records every call.
type Memory struct {
	locations map[netip.Addr]Location
	failures  map[netip.Addr]error
	calls     []netip.Addr
	mx        sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{
		locations: map[netip.Addr]Location{},
		failures:  map[netip.Addr]error{},
	}
}

// Set makes lookups for ip succeed with loc.
func (m *Memory) Set(ip netip.Addr, loc Location) {
	m.mx.Lock()
	defer m.mx.Unlock()

	delete(m.failures, ip)
	m.locations[ip] = loc
}

// Fail makes lookups for ip fail with err.
func (m *Memory) Fail(ip netip.Addr, err error) {
	m.mx.Lock()
	defer m.mx.Unlock()

	delete(m.locations, ip)
	m.failures[ip] = err
}

func (m *Memory) Lookup(ctx context.Context, ip netip.Addr) (Location, error) {
	m.mx.Lock()
	defer m.mx.Unlock()

	m.calls = append(m.calls, ip)
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	if err, ok := m.failures[ip]; ok {
		return Location{}, err
	}
	loc, ok := m.locations[ip]
	if !ok {
		return Location{}, fmt.Errorf("%w %s", ErrNotFound, ip)
	}
	return loc, nil
}

// Calls returns the addresses looked up so far in call order.
func (m *Memory) Calls() []netip.Addr {
	m.mx.RLock()
	defer m.mx.RUnlock()

	calls := make([]netip.Addr, len(m.calls))
	copy(calls, m.calls)
	return calls
}
