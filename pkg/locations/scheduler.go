package locations

// Next picks the next peer address to resolve. Work is only handed out while
// fewer than limit peers are resolving. The peer at the head of the queue is
// chosen and within it the lowest queued address.
func Next(s Store, limit int) (Key, bool) {
	if len(s.queuing) == 0 || len(s.resolving) >= limit {
		return Key{}, false
	}
	peerID := s.queuing[0]
	for _, addr := range s.addrs[peerID] {
		k := Key{PeerID: peerID, Addr: addr}
		if s.records[k].State == Queued {
			return k, true
		}
	}
	return Key{}, false
}
