package state

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/ipfs-shipyard/peer-locations/internal/channel"
	"github.com/ipfs-shipyard/peer-locations/internal/option"
	"github.com/ipfs-shipyard/peer-locations/pkg/peers"
)

const DefaultPollInterval = 5 * time.Second

type TrackConfig struct {
	Interval time.Duration
}

type TrackOption = option.Option[TrackConfig]

func WithInterval(d time.Duration) TrackOption {
	return func(cfg *TrackConfig) error {
		if d < 100*time.Millisecond {
			return fmt.Errorf("poll interval must be at least 100ms, got %s", d)
		}
		cfg.Interval = d
		return nil
	}
}

// Track polls the peer source and feeds connection state and visible peers
// into the driver until the context is cancelled.
func Track(ctx context.Context, source peers.Source, driver *Driver, opts ...TrackOption) error {
	cfg := TrackConfig{
		Interval: DefaultPollInterval,
	}
	err := option.Apply(&cfg, opts...)
	if err != nil {
		return err
	}

	log := logr.FromContextOrDiscard(ctx).WithName("tracker")
	immediateCh := make(chan time.Time, 1)
	immediateCh <- time.Now()
	close(immediateCh)
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	tickerCh := channel.Merge(immediateCh, ticker.C)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tickerCh:
			err := tick(ctx, source, driver)
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				log.Error(err, "could not update visible peers")
				continue
			}
		}
	}
}

func tick(ctx context.Context, source peers.Source, driver *Driver) error {
	ready, err := source.Ready(ctx)
	if err != nil {
		// An unreachable node is treated as disconnected.
		setErr := driver.SetConnected(ctx, false)
		if setErr != nil {
			return setErr
		}
		return err
	}
	err = driver.SetConnected(ctx, ready)
	if err != nil {
		return err
	}
	if !ready {
		return nil
	}
	visible, err := source.Peers(ctx)
	if err != nil {
		return err
	}
	logr.FromContextOrDiscard(ctx).V(4).Info("polled visible peers", "count", len(visible))
	return driver.UpdatePeers(ctx, visible)
}
