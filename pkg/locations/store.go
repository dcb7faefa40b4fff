package locations

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/ipfs-shipyard/peer-locations/pkg/geoip"
)

var (
	// ErrUnresolvableAddress is returned when an address has no usable public IPv4 component.
	ErrUnresolvableAddress = errors.New("unresolvable address")
	// ErrLookupFailed is returned when the lookup service fails or times out.
	ErrLookupFailed = errors.New("location lookup failed")
	// ErrInvalidTransition is returned when a store transition does not match the current record state.
	ErrInvalidTransition = errors.New("invalid transition")
)

type State int

const (
	Queued State = iota
	Resolving
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Key identifies a single peer address.
type Key struct {
	PeerID string
	Addr   string
}

func (k Key) String() string {
	return k.PeerID + " " + k.Addr
}

// Record is the resolution status of one peer address. Data is only set when
// resolved and Err only when failed.
type Record struct {
	Err   error
	Data  geoip.Location
	State State
}

func (r Record) MarshalJSON() ([]byte, error) {
	v := struct {
		Data  *geoip.Location `json:"data,omitempty"`
		State State           `json:"state"`
		Error string          `json:"error,omitempty"`
	}{
		State: r.State,
	}
	if r.State == Resolved {
		v.Data = &r.Data
	}
	if r.State == Failed && r.Err != nil {
		v.Error = r.Err.Error()
	}
	return json.Marshal(v)
}

// Store holds the resolution state of every observed peer address together
// with the queue of peers waiting to be scheduled and the set of peers being
// resolved. Store is a value: every transition returns a new Store and leaves
// the receiver untouched, so snapshots can be shared freely between goroutines.
type Store struct {
	records map[Key]Record
	// Addresses per peer kept in ascending order.
	addrs     map[string][]string
	queuing   []string
	resolving []string
}

func NewStore() Store {
	return Store{
		records: map[Key]Record{},
		addrs:   map[string][]string{},
	}
}

func (s Store) clone() Store {
	records := make(map[Key]Record, len(s.records))
	maps.Copy(records, s.records)
	addrs := make(map[string][]string, len(s.addrs))
	maps.Copy(addrs, s.addrs)
	return Store{
		records:   records,
		addrs:     addrs,
		queuing:   slices.Clone(s.queuing),
		resolving: slices.Clone(s.resolving),
	}
}

// Enqueue records every address not seen before as queued. Peers that gained a
// queued address are appended to the queue unless they are already queued or
// resolving. Known addresses are left as they are.
func (s Store) Enqueue(req EnqueueRequest) Store {
	next := s.clone()
	for _, pa := range req {
		added := false
		for _, addr := range pa.Addrs {
			k := Key{PeerID: pa.PeerID, Addr: addr}
			if _, ok := next.records[k]; ok {
				continue
			}
			next.records[k] = Record{State: Queued}
			peerAddrs := slices.Clone(next.addrs[pa.PeerID])
			i, _ := slices.BinarySearch(peerAddrs, addr)
			next.addrs[pa.PeerID] = slices.Insert(peerAddrs, i, addr)
			added = true
		}
		if !added {
			continue
		}
		// A resolving peer is queued again once its current address finishes.
		if slices.Contains(next.queuing, pa.PeerID) || slices.Contains(next.resolving, pa.PeerID) {
			continue
		}
		next.queuing = append(next.queuing, pa.PeerID)
	}
	return next
}

// BeginResolving moves a queued address to resolving and the peer from the
// queue to the resolving set.
func (s Store) BeginResolving(peerID, addr string) (Store, error) {
	k := Key{PeerID: peerID, Addr: addr}
	if err := s.expect(k, Queued); err != nil {
		return s, err
	}
	if slices.Contains(s.resolving, peerID) {
		return s, fmt.Errorf("%w: peer %s is already resolving another address", ErrInvalidTransition, peerID)
	}
	next := s.clone()
	next.queuing = slices.DeleteFunc(next.queuing, func(id string) bool { return id == peerID })
	next.resolving = append(next.resolving, peerID)
	next.records[k] = Record{State: Resolving}
	return next, nil
}

// FinishResolved marks a resolving address as resolved with loc. Addresses
// enqueued while the peer was resolving put it back at the end of the queue.
func (s Store) FinishResolved(peerID, addr string, loc geoip.Location) (Store, error) {
	k := Key{PeerID: peerID, Addr: addr}
	if err := s.expect(k, Resolving); err != nil {
		return s, err
	}
	next := s.clone()
	next.resolving = slices.DeleteFunc(next.resolving, func(id string) bool { return id == peerID })
	next.records[k] = Record{State: Resolved, Data: loc}
	next.requeue(peerID)
	return next, nil
}

// FinishFailed marks a resolving address as failed. If the peer has another
// queued address it is appended to the back of the queue. The failed address
// itself is never retried.
func (s Store) FinishFailed(peerID, addr string, err error) (Store, error) {
	k := Key{PeerID: peerID, Addr: addr}
	if expectErr := s.expect(k, Resolving); expectErr != nil {
		return s, expectErr
	}
	next := s.clone()
	next.resolving = slices.DeleteFunc(next.resolving, func(id string) bool { return id == peerID })
	next.records[k] = Record{State: Failed, Err: err}
	next.requeue(peerID)
	return next, nil
}

// requeue appends a peer that still has queued addresses to the queue. Only
// call on a store returned by clone.
func (s *Store) requeue(peerID string) {
	if s.hasQueued(peerID) && !slices.Contains(s.queuing, peerID) {
		s.queuing = append(s.queuing, peerID)
	}
}

func (s Store) expect(k Key, state State) error {
	rec, ok := s.records[k]
	if !ok {
		return fmt.Errorf("%w: no record for %s", ErrInvalidTransition, k)
	}
	if rec.State != state {
		return fmt.Errorf("%w: %s is %s, expected %s", ErrInvalidTransition, k, rec.State, state)
	}
	return nil
}

func (s Store) hasQueued(peerID string) bool {
	for _, addr := range s.addrs[peerID] {
		if s.records[Key{PeerID: peerID, Addr: addr}].State == Queued {
			return true
		}
	}
	return false
}

// Record returns the record for a peer address.
func (s Store) Record(peerID, addr string) (Record, bool) {
	rec, ok := s.records[Key{PeerID: peerID, Addr: addr}]
	return rec, ok
}

// Addrs returns the known addresses of a peer in ascending order.
func (s Store) Addrs(peerID string) []string {
	return slices.Clone(s.addrs[peerID])
}

// QueuingPeers returns the peers waiting to be scheduled, oldest first.
func (s Store) QueuingPeers() []string {
	return slices.Clone(s.queuing)
}

// ResolvingPeers returns the peers with an address being resolved.
func (s Store) ResolvingPeers() []string {
	return slices.Clone(s.resolving)
}

// Len returns the number of peer address records.
func (s Store) Len() int {
	return len(s.records)
}

// Raw returns every record keyed by peer id and then address.
func (s Store) Raw() map[string]map[string]Record {
	raw := make(map[string]map[string]Record, len(s.addrs))
	for peerID, addrs := range s.addrs {
		byAddr := make(map[string]Record, len(addrs))
		for _, addr := range addrs {
			byAddr[addr] = s.records[Key{PeerID: peerID, Addr: addr}]
		}
		raw[peerID] = byAddr
	}
	return raw
}
