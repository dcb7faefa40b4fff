package locations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	t.Parallel()

	known := NewStore().Enqueue(EnqueueRequest{{PeerID: "P1", Addrs: []string{"a1"}}})

	tests := []struct {
		name     string
		peers    []Peer
		store    Store
		expected EnqueueRequest
	}{
		{
			name:  "no peers",
			store: NewStore(),
		},
		{
			name: "new peers grouped in discovery order",
			peers: []Peer{
				{ID: "P2", Addr: "b1"},
				{ID: "P1", Addr: "a1"},
				{ID: "P2", Addr: "b2"},
				{ID: "P3", Addr: "c1"},
			},
			store: NewStore(),
			expected: EnqueueRequest{
				{PeerID: "P2", Addrs: []string{"b1", "b2"}},
				{PeerID: "P1", Addrs: []string{"a1"}},
				{PeerID: "P3", Addrs: []string{"c1"}},
			},
		},
		{
			name: "known addresses are skipped",
			peers: []Peer{
				{ID: "P1", Addr: "a1"},
				{ID: "P1", Addr: "a2"},
			},
			store: known,
			expected: EnqueueRequest{
				{PeerID: "P1", Addrs: []string{"a2"}},
			},
		},
		{
			name: "everything known",
			peers: []Peer{
				{ID: "P1", Addr: "a1"},
			},
			store: known,
		},
		{
			name: "duplicates and empty values collapse",
			peers: []Peer{
				{ID: "P4", Addr: "d1"},
				{ID: "P4", Addr: "d1"},
				{ID: "", Addr: "x"},
				{ID: "P5", Addr: ""},
			},
			store: NewStore(),
			expected: EnqueueRequest{
				{PeerID: "P4", Addrs: []string{"d1"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req, ok := Plan(tt.peers, tt.store)
			require.Equal(t, len(tt.expected) > 0, ok)
			require.Equal(t, tt.expected, req)
		})
	}
}

func TestPlanIdempotent(t *testing.T) {
	t.Parallel()

	peers := []Peer{
		{ID: "P1", Addr: "a1"},
		{ID: "P1", Addr: "a2"},
		{ID: "P2", Addr: "b1"},
	}
	s := NewStore()
	first, ok := Plan(peers, s)
	require.True(t, ok)
	second, ok := Plan(peers, s)
	require.True(t, ok)
	require.Equal(t, first, second, "same inputs must give the same request")

	s = s.Enqueue(first)
	req, ok := Plan(peers, s)
	require.False(t, ok)
	require.Empty(t, req)

	// Enqueueing a duplicate request is harmless.
	dup := s.Enqueue(second)
	require.Equal(t, s.QueuingPeers(), dup.QueuingPeers())
	require.Equal(t, s.Raw(), dup.Raw())
}
