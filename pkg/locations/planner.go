package locations

// Peer is one visible peer address.
type Peer struct {
	ID   string `json:"peer_id"`
	Addr string `json:"address"`
}

// PeerAddrs groups the new addresses of a single peer.
type PeerAddrs struct {
	PeerID string
	Addrs  []string
}

// EnqueueRequest lists new peer addresses in the order peers were first seen.
type EnqueueRequest []PeerAddrs

// Plan returns the visible peer addresses that the store does not know about,
// grouped by peer. The second return value is false when there is nothing to
// enqueue. Calling Plan again with the store returned by Enqueue yields nothing.
func Plan(known []Peer, s Store) (EnqueueRequest, bool) {
	req := EnqueueRequest{}
	peerIdx := map[string]int{}
	seen := map[Key]struct{}{}
	for _, p := range known {
		if p.ID == "" || p.Addr == "" {
			continue
		}
		k := Key{PeerID: p.ID, Addr: p.Addr}
		if _, ok := s.records[k]; ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		i, ok := peerIdx[p.ID]
		if !ok {
			i = len(req)
			peerIdx[p.ID] = i
			req = append(req, PeerAddrs{PeerID: p.ID})
		}
		req[i].Addrs = append(req[i].Addrs, p.Addr)
	}
	if len(req) == 0 {
		return nil, false
	}
	return req, true
}
