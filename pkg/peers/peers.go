package peers

import (
	"context"

	"github.com/ipfs-shipyard/peer-locations/pkg/locations"
)

// Source reports the peers currently connected to a node.
type Source interface {
	// Ready returns true when the node can be queried.
	Ready(ctx context.Context) (bool, error)
	// Peers returns one entry per connected peer address.
	Peers(ctx context.Context) ([]locations.Peer, error)
}
