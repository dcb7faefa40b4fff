package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ipfs-shipyard/peer-locations/pkg/geoip"
)

var _ Cache = &Redis{}

// Redis stores locations in a shared redis instance with native key expiry.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisFromURL connects using a redis:// or rediss:// URL and verifies the
// connection with a ping.
func NewRedisFromURL(ctx context.Context, uri string, opts ...Option) (*Redis, error) {
	redisOpts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("could not reach redis at %s: %w", redisOpts.Addr, err), client.Close())
	}
	return NewRedis(client, opts...)
}

func NewRedis(client *redis.Client, opts ...Option) (*Redis, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Clock != nil {
		return nil, errors.New("redis cache expires keys on the server and does not accept a clock")
	}
	return &Redis{
		client: client,
		prefix: strings.ReplaceAll(cfg.scope(), "/", ":"),
		ttl:    cfg.TTL,
	}, nil
}

func (r *Redis) key(peerID string) string {
	return r.prefix + ":" + peerID
}

func (r *Redis) Get(ctx context.Context, peerID string) (geoip.Location, bool, error) {
	b, err := r.client.Get(ctx, r.key(peerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return geoip.Location{}, false, nil
	}
	if err != nil {
		return geoip.Location{}, false, err
	}
	loc := geoip.Location{}
	err = json.Unmarshal(b, &loc)
	if err != nil {
		return geoip.Location{}, false, fmt.Errorf("could not decode cached location for %s: %w", peerID, err)
	}
	return loc, true, nil
}

func (r *Redis) Set(ctx context.Context, peerID string, loc geoip.Location) error {
	b, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(peerID), b, r.ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
