package state

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ipfs-shipyard/peer-locations/pkg/locations"
	"github.com/ipfs-shipyard/peer-locations/pkg/peers"
)

func TestTrack(t *testing.T) {
	t.Parallel()

	r := newBlockingResolver()
	close(r.release)
	d, err := NewDriver(r)
	require.NoError(t, err)
	ctx, _, g := runDriver(t, d)

	source := peers.NewMemory(locations.Peer{ID: "P1", Addr: "a1"}, locations.Peer{ID: "P2", Addr: "b1"})
	g.Go(func() error {
		return Track(ctx, source, d, WithInterval(100*time.Millisecond))
	})

	require.Eventually(t, func() bool {
		return len(locations.Locations(d.Snapshot())) == 2
	}, 5*time.Second, 10*time.Millisecond)
	require.True(t, d.Connected())

	source.SetError(errors.New("api down"))
	require.Eventually(t, func() bool {
		return !d.Connected()
	}, 5*time.Second, 10*time.Millisecond)

	source.SetError(nil)
	source.Set(locations.Peer{ID: "P3", Addr: "c1"})
	require.Eventually(t, func() bool {
		return len(locations.Locations(d.Snapshot())) == 3
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []locations.Peer{{ID: "P3", Addr: "c1"}}, d.Peers())

	source.SetReady(false)
	require.Eventually(t, func() bool {
		return !d.Connected()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTrackInvalidInterval(t *testing.T) {
	t.Parallel()

	d, err := NewDriver(newBlockingResolver())
	require.NoError(t, err)
	err = Track(t.Context(), peers.NewMemory(), d, WithInterval(time.Millisecond))
	require.EqualError(t, err, "poll interval must be at least 100ms, got 1ms")
}
