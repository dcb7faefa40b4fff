package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-logr/logr"
	bolt "go.etcd.io/bbolt"

	"github.com/ipfs-shipyard/peer-locations/pkg/geoip"
)

var _ Cache = &Bolt{}

type boltEntry struct {
	ExpiresAt time.Time      `json:"expires_at"`
	Location  geoip.Location `json:"location"`
}

// Bolt persists locations in a bbolt database, one bucket per namespace and
// version.
type Bolt struct {
	db     *bolt.DB
	clock  clock.Clock
	bucket []byte
	ttl    time.Duration
}

// NewBolt opens the database at path. Buckets belonging to other versions of
// the same namespace are dropped and expired entries are pruned.
func NewBolt(ctx context.Context, path string, opts ...Option) (*Bolt, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open cache database %s: %w", path, err)
	}
	b := &Bolt{
		db:     db,
		clock:  cfg.Clock,
		bucket: []byte(cfg.scope()),
		ttl:    cfg.TTL,
	}
	err = b.migrate(ctx, []byte(cfg.Namespace+"/"))
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	pruned, err := b.Prune()
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	logr.FromContextOrDiscard(ctx).WithName("cache").Info("opened location cache", "path", path, "bucket", string(b.bucket), "pruned", pruned)
	return b, nil
}

func (b *Bolt) migrate(ctx context.Context, namespacePrefix []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		stale := [][]byte{}
		err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if bytes.HasPrefix(name, namespacePrefix) && !bytes.Equal(name, b.bucket) {
				stale = append(stale, bytes.Clone(name))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, name := range stale {
			logr.FromContextOrDiscard(ctx).WithName("cache").Info("dropping cache bucket from other version", "bucket", string(name))
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		_, err = tx.CreateBucketIfNotExists(b.bucket)
		return err
	})
}

func (b *Bolt) Get(ctx context.Context, peerID string) (geoip.Location, bool, error) {
	var entry *boltEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(b.bucket).Get([]byte(peerID))
		if v == nil {
			return nil
		}
		entry = &boltEntry{}
		return json.Unmarshal(v, entry)
	})
	if err != nil {
		return geoip.Location{}, false, fmt.Errorf("could not read cached location for %s: %w", peerID, err)
	}
	if entry == nil || !b.clock.Now().Before(entry.ExpiresAt) {
		return geoip.Location{}, false, nil
	}
	return entry.Location, true, nil
}

func (b *Bolt) Set(ctx context.Context, peerID string, loc geoip.Location) error {
	v, err := json.Marshal(boltEntry{
		Location:  loc,
		ExpiresAt: b.clock.Now().Add(b.ttl),
	})
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(peerID), v)
	})
}

// Prune deletes expired entries and returns how many were removed.
func (b *Bolt) Prune() (int, error) {
	now := b.clock.Now()
	pruned := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(b.bucket)
		expired := [][]byte{}
		err := bkt.ForEach(func(k, v []byte) error {
			entry := boltEntry{}
			if err := json.Unmarshal(v, &entry); err != nil || !now.Before(entry.ExpiresAt) {
				expired = append(expired, bytes.Clone(k))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := bkt.Delete(k); err != nil {
				return err
			}
		}
		pruned = len(expired)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
