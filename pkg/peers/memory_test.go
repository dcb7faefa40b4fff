package peers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ipfs-shipyard/peer-locations/pkg/locations"
)

func TestMemory(t *testing.T) {
	t.Parallel()

	m := NewMemory(locations.Peer{ID: "P1", Addr: "a1"})
	ready, err := m.Ready(t.Context())
	require.NoError(t, err)
	require.True(t, ready)
	peers, err := m.Peers(t.Context())
	require.NoError(t, err)
	require.Equal(t, []locations.Peer{{ID: "P1", Addr: "a1"}}, peers)

	peers[0].ID = "changed"
	peers, err = m.Peers(t.Context())
	require.NoError(t, err)
	require.Equal(t, "P1", peers[0].ID)

	m.Set()
	peers, err = m.Peers(t.Context())
	require.NoError(t, err)
	require.Empty(t, peers)

	m.SetReady(false)
	ready, err = m.Ready(t.Context())
	require.NoError(t, err)
	require.False(t, ready)

	m.SetError(errors.New("api down"))
	_, err = m.Peers(t.Context())
	require.EqualError(t, err, "api down")
	_, err = m.Ready(t.Context())
	require.EqualError(t, err, "api down")
}
