package testutil

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/mbiss10/secure-aggregation/protocol"
	"github.com/mbiss10/secure-aggregation/relay"
)

// MemPeer is an in-memory relay.Peer that queues everything the relay sends.
type MemPeer struct {
	mu     sync.Mutex
	inbox  [][]byte
	closed bool
}

// Send queues data, failing once the peer is closed.
func (p *MemPeer) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("peer closed")
	}
	p.inbox = append(p.inbox, append([]byte(nil), data...))
	return nil
}

// Close marks the peer closed.
func (p *MemPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether the relay closed the peer.
func (p *MemPeer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Drain returns and clears the queued messages.
func (p *MemPeer) Drain() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.inbox
	p.inbox = nil
	return out
}

// Harness runs participants against an in-memory relay, delivering
// messages synchronously until the system is quiescent.
type Harness struct {
	Relay        *relay.Relay
	IDs          []string
	Peers        []*MemPeer
	Dispatchers  []*protocol.Dispatcher
	Participants []*protocol.Participant
}

// NewHarness creates a relay from cfg and connects n participants, each
// with a deterministic perturbation source.
func NewHarness(cfg *relay.Config, n int) (*Harness, error) {
	r, err := relay.New(cfg, DiscardLogger())
	if err != nil {
		return nil, err
	}

	h := &Harness{Relay: r}
	for i := 0; i < n; i++ {
		if _, err := h.Connect(fmt.Sprintf("participant-%d", i)); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Connect joins one more participant and returns its index.
func (h *Harness) Connect(seed string) (int, error) {
	peer := &MemPeer{}
	id, err := h.Relay.Join(peer)
	if err != nil {
		return -1, err
	}

	p := protocol.NewParticipant(NewKeyedPRNG(seed), DiscardLogger())
	h.IDs = append(h.IDs, id)
	h.Peers = append(h.Peers, peer)
	h.Participants = append(h.Participants, p)
	h.Dispatchers = append(h.Dispatchers, protocol.NewDispatcher(p, DiscardLogger()))
	return len(h.IDs) - 1, nil
}

// SubmitValue supplies participant i's private value and forwards whatever
// it emits to the relay.
func (h *Harness) SubmitValue(i int, v int64) error {
	out, err := h.Dispatchers[i].SubmitValue(big.NewInt(v))
	if err != nil {
		return err
	}
	return h.forward(i, out)
}

// Disconnect simulates participant i dropping its connection.
func (h *Harness) Disconnect(i int) {
	h.Peers[i].Close()
	h.Relay.Leave(h.IDs[i])
}

// Pump delivers queued relay messages to participants, and their replies to
// the relay, until nothing is left in flight.
func (h *Harness) Pump() error {
	for {
		delivered := false
		for i, peer := range h.Peers {
			for _, raw := range peer.Drain() {
				delivered = true
				out, err := h.Dispatchers[i].Dispatch(raw)
				if err != nil {
					return fmt.Errorf("participant %d: %w", i, err)
				}
				if err := h.forward(i, out); err != nil {
					return err
				}
			}
		}
		if !delivered {
			return nil
		}
	}
}

// Run submits values in order, pumps to completion and returns each
// participant's view of the result.
func (h *Harness) Run(values ...int64) ([]*big.Int, error) {
	if len(values) > len(h.Participants) {
		return nil, fmt.Errorf("%d values for %d participants", len(values), len(h.Participants))
	}
	if err := h.Pump(); err != nil {
		return nil, err
	}
	for i, v := range values {
		if err := h.SubmitValue(i, v); err != nil {
			return nil, err
		}
		if err := h.Pump(); err != nil {
			return nil, err
		}
	}

	results := make([]*big.Int, len(h.Participants))
	for i, p := range h.Participants {
		results[i] = p.Result()
	}
	return results, nil
}

func (h *Harness) forward(i int, out [][]byte) error {
	for _, raw := range out {
		if err := h.Relay.Handle(h.IDs[i], raw); err != nil {
			return fmt.Errorf("relay rejected message from participant %d: %w", i, err)
		}
	}
	return nil
}
