package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"sync"

	"github.com/mbiss10/secure-aggregation/crypto"
	"github.com/mbiss10/secure-aggregation/metrics"
	"github.com/mbiss10/secure-aggregation/protocol"
	uuid "github.com/satori/go.uuid"
)

var (
	// ErrRoundFull is returned by Join once enough participants are ready.
	ErrRoundFull = errors.New("round is full")

	// ErrUnknownParticipant is returned for messages from a connection the
	// relay does not track.
	ErrUnknownParticipant = errors.New("unknown participant")
)

// RoundFullNotice is sent to connections turned away by Join.
const RoundFullNotice = "Enough clients have already joined."

// Peer is one participant connection as seen by the relay.
type Peer interface {
	Send(data []byte) error
	Close() error
}

// RoundResult describes a completed round.
type RoundResult struct {
	Round       uint64
	Fingerprint string
	Members     []string
	Sum         *big.Int
}

// Relay coordinates secure-sum rounds: it assigns identifiers, waits for a
// threshold of ready participants, routes pairwise perturbations and sums
// the masked values modulo the base. It sees only masked values.
//
// All methods are safe for concurrent use; sends happen under the relay
// lock so every peer observes messages in protocol order.
type Relay struct {
	log       *slog.Logger
	threshold int
	base      *big.Int
	onResult  func(RoundResult)
	metrics   *metrics.RelayMetrics

	mu    sync.Mutex
	round uint64
	peers map[string]Peer

	ready   []string
	members []string // peer set, fixed once the threshold is reached

	// to -> from -> mask
	perturbations     map[string]map[string]*big.Int
	perturbationsFrom map[string]struct{}

	sum        *big.Int
	valuesFrom map[string]struct{}

	lastResult *RoundResult
}

// New creates a relay from cfg.
func New(cfg *Config, log *slog.Logger) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, _ := cfg.ParseBase()
	if log == nil {
		log = slog.Default()
	}

	r := &Relay{
		log:       log.With("component", "relay"),
		threshold: cfg.Threshold,
		base:      base,
		peers:     make(map[string]Peer),
	}
	r.resetRound()
	return r, nil
}

// OnResult registers a callback invoked, under the relay lock, whenever a
// round completes.
func (r *Relay) OnResult(fn func(RoundResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResult = fn
}

// SetMetrics instruments the relay. A nil m disables metrics.
func (r *Relay) SetMetrics(m *metrics.RelayMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
	r.metrics.SetConnected(len(r.peers))
}

// Join registers a new connection, sends it the base and its identifier
// and returns the identifier. Once the round is full the connection gets a
// notice, is closed and ErrRoundFull is returned.
func (r *Relay) Join(peer Peer) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ready) >= r.threshold {
		if data, err := protocol.EncodeMessage(&protocol.Notice{Message: RoundFullNotice}); err == nil {
			_ = peer.Send(data)
		}
		_ = peer.Close()
		return "", ErrRoundFull
	}

	id := uuid.NewV4().String()
	r.peers[id] = peer
	r.metrics.SetConnected(len(r.peers))
	r.log.Info("Participant connected", "participant", id, "connected", len(r.peers))

	if err := r.send(id, &protocol.InitBaseParam{Base: r.base}); err != nil {
		delete(r.peers, id)
		r.metrics.SetConnected(len(r.peers))
		return "", err
	}
	if err := r.send(id, &protocol.YourID{ID: id}); err != nil {
		delete(r.peers, id)
		r.metrics.SetConnected(len(r.peers))
		return "", err
	}

	return id, nil
}

// Leave forgets a disconnected participant. Losing a round member after
// the peer set was announced makes the round impossible to finish, so the
// remaining members are notified and the round is reset.
func (r *Relay) Leave(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[id]; !ok {
		return
	}
	delete(r.peers, id)
	r.metrics.SetConnected(len(r.peers))
	r.log.Info("Participant disconnected", "participant", id)

	if r.members != nil && slices.Contains(r.members, id) {
		r.log.Warn("Round member left mid-round, aborting round", "participant", id, "round", r.round)
		r.broadcast(&protocol.Notice{Message: fmt.Sprintf("Participant %s disconnected, round aborted.", id)})
		r.metrics.RoundAborted()
		r.closeAndReset()
		return
	}

	r.ready = slices.DeleteFunc(r.ready, func(p string) bool { return p == id })
}

// Handle processes one raw message from participant id.
func (r *Relay) Handle(id string, raw []byte) error {
	msg, err := protocol.DecodeMessage(raw)
	if err != nil {
		r.metrics.MessageRejected("undecodable")
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.handle(id, msg); err != nil {
		r.metrics.MessageRejected(string(msg.Tag()))
		return err
	}
	return nil
}

func (r *Relay) handle(id string, msg protocol.Message) error {
	if _, ok := r.peers[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}

	switch m := msg.(type) {
	case *protocol.Ready:
		return r.handleReady(id)
	case *protocol.Perturbations:
		return r.handlePerturbations(id, m.Perturbations)
	case *protocol.Value:
		return r.handleValue(id, m.Value)
	default:
		return fmt.Errorf("%w: %s is not accepted by the relay", protocol.ErrProtocolSequence, msg.Tag())
	}
}

func (r *Relay) handleReady(id string) error {
	if slices.Contains(r.ready, id) {
		return fmt.Errorf("%w: duplicate ready from %s", protocol.ErrProtocolSequence, id)
	}
	if len(r.ready) >= r.threshold {
		return fmt.Errorf("%w: round already full", protocol.ErrProtocolSequence)
	}

	r.ready = append(r.ready, id)
	r.log.Info("Participant ready", "participant", id, "ready", len(r.ready), "threshold", r.threshold)

	if len(r.ready) < r.threshold {
		return nil
	}

	r.members = slices.Clone(r.ready)
	slices.Sort(r.members)
	for _, m := range r.members {
		r.perturbations[m] = make(map[string]*big.Int)
	}

	r.log.Info("Peer set complete, broadcasting identifiers",
		"round", r.round,
		"fingerprint", crypto.RoundFingerprint(r.base, r.members))
	r.broadcast(&protocol.UserIDBroadcast{UserIDs: slices.Clone(r.members)})
	return nil
}

func (r *Relay) handlePerturbations(id string, masks map[string]*big.Int) error {
	if !slices.Contains(r.members, id) {
		return fmt.Errorf("%w: %s is not a round member", protocol.ErrProtocolSequence, id)
	}
	if _, ok := r.perturbationsFrom[id]; ok {
		return fmt.Errorf("%w: duplicate perturbations from %s", protocol.ErrProtocolSequence, id)
	}
	if len(masks) != len(r.members)-1 {
		return fmt.Errorf("%w: %s sent %d perturbations for %d peers", protocol.ErrDataConsistency, id, len(masks), len(r.members)-1)
	}
	for to, mask := range masks {
		if to == id || !slices.Contains(r.members, to) {
			return fmt.Errorf("%w: perturbation from %s addressed to %s", protocol.ErrDataConsistency, id, to)
		}
		if !crypto.InRange(mask, r.base) {
			return fmt.Errorf("%w: perturbation from %s for %s outside [0, %s)", protocol.ErrDataConsistency, id, to, r.base)
		}
	}

	for to, mask := range masks {
		r.perturbations[to][id] = new(big.Int).Set(mask)
	}
	r.perturbationsFrom[id] = struct{}{}
	r.log.Info("Received perturbations", "participant", id, "received", len(r.perturbationsFrom), "threshold", r.threshold)

	if len(r.perturbationsFrom) < len(r.members) {
		return nil
	}

	r.log.Info("All perturbations received, distributing", "round", r.round)
	for _, m := range r.members {
		if err := r.send(m, &protocol.Perturbations{Perturbations: r.perturbations[m]}); err != nil {
			r.log.Error("Could not deliver perturbations", "participant", m, "err", err)
		}
	}
	return nil
}

func (r *Relay) handleValue(id string, value *big.Int) error {
	if !slices.Contains(r.members, id) || len(r.perturbationsFrom) < len(r.members) {
		return fmt.Errorf("%w: value from %s before perturbations were distributed", protocol.ErrProtocolSequence, id)
	}
	if _, ok := r.valuesFrom[id]; ok {
		return fmt.Errorf("%w: duplicate value from %s", protocol.ErrProtocolSequence, id)
	}

	crypto.FieldAddInplace(r.sum, crypto.Mod(value, r.base), r.base)
	r.valuesFrom[id] = struct{}{}
	r.log.Info("Received masked value", "participant", id, "received", len(r.valuesFrom), "threshold", r.threshold)

	if len(r.valuesFrom) < len(r.members) {
		return nil
	}

	result := RoundResult{
		Round:       r.round,
		Fingerprint: crypto.RoundFingerprint(r.base, r.members),
		Members:     slices.Clone(r.members),
		Sum:         new(big.Int).Set(r.sum),
	}
	r.log.Info("Secure aggregation complete", "round", result.Round, "result", result.Sum.String(), "fingerprint", result.Fingerprint)

	r.broadcast(&protocol.AggregationResult{AggregationResult: result.Sum})
	r.lastResult = &result
	r.metrics.RoundCompleted()
	if r.onResult != nil {
		r.onResult(result)
	}

	r.closeAndReset()
	return nil
}

// LastResult returns the most recently completed round, if any.
func (r *Relay) LastResult() (RoundResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastResult == nil {
		return RoundResult{}, false
	}
	res := *r.lastResult
	res.Sum = new(big.Int).Set(res.Sum)
	res.Members = slices.Clone(res.Members)
	return res, true
}

// Status is a snapshot of the relay's current round.
type Status struct {
	Round     uint64 `json:"round"`
	Threshold int    `json:"threshold"`
	Base      string `json:"base"`
	Connected int    `json:"connected"`
	Ready     int    `json:"ready"`
	Started   bool   `json:"started"`
}

// Status reports the current round's progress.
func (r *Relay) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Round:     r.round,
		Threshold: r.threshold,
		Base:      r.base.String(),
		Connected: len(r.peers),
		Ready:     len(r.ready),
		Started:   r.members != nil,
	}
}

func (r *Relay) send(id string, msg protocol.Message) error {
	peer, ok := r.peers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return err
	}
	return peer.Send(data)
}

// broadcast sends msg to the round members, or to every connection before
// the peer set is fixed.
func (r *Relay) broadcast(msg protocol.Message) {
	targets := r.members
	if targets == nil {
		targets = make([]string, 0, len(r.peers))
		for id := range r.peers {
			targets = append(targets, id)
		}
		slices.Sort(targets)
	}
	for _, id := range targets {
		if _, ok := r.peers[id]; !ok {
			continue
		}
		if err := r.send(id, msg); err != nil {
			r.log.Warn("Broadcast failed", "participant", id, "type", string(msg.Tag()), "err", err)
		}
	}
}

func (r *Relay) closeAndReset() {
	for id, peer := range r.peers {
		if err := peer.Close(); err != nil {
			r.log.Debug("Close failed", "participant", id, "err", err)
		}
	}
	r.peers = make(map[string]Peer)
	r.metrics.SetConnected(0)
	r.resetRound()
	r.round++
	r.log.Info("Relay reset, ready for a new round", "round", r.round)
}

func (r *Relay) resetRound() {
	r.ready = nil
	r.members = nil
	r.perturbations = make(map[string]map[string]*big.Int)
	r.perturbationsFrom = make(map[string]struct{})
	r.sum = big.NewInt(0)
	r.valuesFrom = make(map[string]struct{})
}
