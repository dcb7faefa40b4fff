package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ipfs-shipyard/peer-locations/internal/option"
	"github.com/ipfs-shipyard/peer-locations/pkg/geoip"
)

const (
	DefaultNamespace = "peerLocations"
	DefaultVersion   = 1
	DefaultTTL       = 7 * 24 * time.Hour
	DefaultSize      = 4096
)

// Cache stores resolved locations keyed by peer id. Entries older than the
// configured TTL are reported as absent.
type Cache interface {
	Get(ctx context.Context, peerID string) (geoip.Location, bool, error)
	Set(ctx context.Context, peerID string, loc geoip.Location) error
}

type Config struct {
	Clock     clock.Clock
	Namespace string
	Version   int
	TTL       time.Duration
	Size      int
}

type Option = option.Option[Config]

func WithNamespace(namespace string) Option {
	return func(cfg *Config) error {
		if namespace == "" {
			return errors.New("cache namespace cannot be empty")
		}
		if strings.ContainsAny(namespace, "/:") {
			return fmt.Errorf("cache namespace %q cannot contain '/' or ':'", namespace)
		}
		cfg.Namespace = namespace
		return nil
	}
}

// WithVersion scopes entries to a schema version. Bumping it hides every entry
// written under another version.
func WithVersion(version int) Option {
	return func(cfg *Config) error {
		if version < 0 {
			return fmt.Errorf("cache version cannot be negative, got %d", version)
		}
		cfg.Version = version
		return nil
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(cfg *Config) error {
		if ttl <= 0 {
			return fmt.Errorf("cache ttl must be positive, got %s", ttl)
		}
		cfg.TTL = ttl
		return nil
	}
}

// WithClock sets the time source used for expiry. Only the bolt backend keeps
// its own expiry times, the other backends reject a clock.
func WithClock(c clock.Clock) Option {
	return func(cfg *Config) error {
		if c == nil {
			return errors.New("cache clock cannot be nil")
		}
		cfg.Clock = c
		return nil
	}
}

// WithSize bounds the number of entries held by in-process caches.
func WithSize(size int) Option {
	return func(cfg *Config) error {
		if size < 1 {
			return fmt.Errorf("cache size must be positive, got %d", size)
		}
		cfg.Size = size
		return nil
	}
}

func newConfig(opts ...Option) (Config, error) {
	cfg := Config{
		Namespace: DefaultNamespace,
		Version:   DefaultVersion,
		TTL:       DefaultTTL,
		Size:      DefaultSize,
	}
	err := option.Apply(&cfg, opts...)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) scope() string {
	return fmt.Sprintf("%s/v%d", cfg.Namespace, cfg.Version)
}
