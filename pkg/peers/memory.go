package peers

import (
	"context"
	"slices"
	"sync"

	"github.com/ipfs-shipyard/peer-locations/pkg/locations"
)

var _ Source = &Memory{}

type Memory struct {
	err   error
	peers []locations.Peer
	mx    sync.RWMutex
	ready bool
}

func NewMemory(peers ...locations.Peer) *Memory {
	return &Memory{
		peers: peers,
		ready: true,
	}
}

func (m *Memory) Set(peers ...locations.Peer) {
	m.mx.Lock()
	defer m.mx.Unlock()

	m.peers = peers
}

func (m *Memory) SetReady(ready bool) {
	m.mx.Lock()
	defer m.mx.Unlock()

	m.ready = ready
}

// SetError makes the node unreachable until it is reset with nil.
func (m *Memory) SetError(err error) {
	m.mx.Lock()
	defer m.mx.Unlock()

	m.err = err
}

func (m *Memory) Ready(ctx context.Context) (bool, error) {
	m.mx.RLock()
	defer m.mx.RUnlock()

	if m.err != nil {
		return false, m.err
	}
	return m.ready, nil
}

func (m *Memory) Peers(ctx context.Context) ([]locations.Peer, error) {
	m.mx.RLock()
	defer m.mx.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.peers), nil
}
