package cache

import (
	"context"
	"errors"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ipfs-shipyard/peer-locations/pkg/geoip"
)

var _ Cache = &Memory{}

// Memory is a bounded in-process cache. Entries are evicted on expiry or when
// the size limit is reached. Expiry uses wall clock time.
type Memory struct {
	lru   *expirable.LRU[string, geoip.Location]
	scope string
}

func NewMemory(opts ...Option) (*Memory, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Clock != nil {
		return nil, errors.New("memory cache expires on wall clock time and does not accept a clock")
	}
	return &Memory{
		lru:   expirable.NewLRU[string, geoip.Location](cfg.Size, nil, cfg.TTL),
		scope: cfg.scope(),
	}, nil
}

func (m *Memory) Get(_ context.Context, peerID string) (geoip.Location, bool, error) {
	loc, ok := m.lru.Get(m.scope + "/" + peerID)
	return loc, ok, nil
}

func (m *Memory) Set(_ context.Context, peerID string, loc geoip.Location) error {
	m.lru.Add(m.scope+"/"+peerID, loc)
	return nil
}

func (m *Memory) Len() int {
	return m.lru.Len()
}
