package channel

import "sync"

// Gate is a latch that can be opened and closed repeatedly. Waiters block on
// the channel returned by Wait until the gate is opened.
type Gate struct {
	ch   chan any
	mu   sync.RWMutex
	open bool
}

// NewGate returns a closed gate.
func NewGate() *Gate {
	return &Gate{
		ch: make(chan any),
	}
}

// NewOpenGate returns an open gate.
func NewOpenGate() *Gate {
	g := NewGate()
	g.Set(true)
	return g
}

func (g *Gate) IsOpen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.open
}

// Set opens or closes the gate. Setting the current state is a no-op.
// Opening closes the wait channel and closing replaces it.
func (g *Gate) Set(open bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open == open {
		return
	}
	g.open = open
	if open {
		close(g.ch)
		return
	}
	g.ch = make(chan any)
}

// Wait returns a channel that is closed once the gate is open. The channel is
// replaced every time the gate closes so it must not be cached across calls.
func (g *Gate) Wait() <-chan any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.ch
}
