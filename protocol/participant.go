package protocol

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/big"
	"slices"

	"github.com/mbiss10/secure-aggregation/crypto"
)

// Participant is one peer's view of a single aggregation round. It owns all
// round state (base, identity, peer set, sent masks, private value) and
// advances only through Handle and SetPrivateValue. It is not safe for
// concurrent use; the transport feeds it one event at a time.
type Participant struct {
	log  *slog.Logger
	prng crypto.PRNG

	phase Phase
	err   error

	base  *big.Int
	id    string
	peers []string

	value        *big.Int
	deferredPeer []string // peer set received before the private value

	sent        map[string]*big.Int
	maskedValue *big.Int
	result      *big.Int
}

// NewParticipant creates a participant in AwaitingBase. A nil prng selects
// the system CSPRNG, a nil logger the default logger.
func NewParticipant(prng crypto.PRNG, log *slog.Logger) *Participant {
	if prng == nil {
		prng = crypto.NewSystemPRNG()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Participant{
		log:   log,
		prng:  prng,
		phase: AwaitingBase,
	}
}

// Reset discards all round state, including the private value, and returns
// to AwaitingBase.
func (p *Participant) Reset() {
	*p = Participant{
		log:   p.log,
		prng:  p.prng,
		phase: AwaitingBase,
	}
}

// SetPrivateValue supplies the local contribution. It emits Ready, and if
// the peer set already arrived, the deferred perturbations as well.
func (p *Participant) SetPrivateValue(v *big.Int) ([]Message, error) {
	if v == nil {
		return nil, ErrMissingPrivateValue
	}
	if p.phase.IsTerminal() {
		return nil, fmt.Errorf("%w: round is %s", ErrProtocolSequence, p.phase)
	}
	if p.value != nil {
		return nil, ErrValueAlreadySet
	}

	p.value = new(big.Int).Set(v)
	out := []Message{&Ready{}}

	if p.deferredPeer != nil {
		peers := p.deferredPeer
		p.deferredPeer = nil
		perturbations, err := p.sendPerturbations(peers)
		if err != nil {
			return out, err
		}
		out = append(out, perturbations...)
	}

	return out, nil
}

// Handle applies one inbound message and returns the messages to send in
// response. Out-of-phase messages return an error wrapping
// ErrProtocolSequence and invalid payloads one wrapping ErrMalformedPayload;
// both leave the state untouched.
func (p *Participant) Handle(msg Message) ([]Message, error) {
	if p.phase == Aborted {
		return nil, fmt.Errorf("%w: %v", ErrRoundAborted, p.err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformedPayload)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if !p.phase.Accepts(msg.Tag()) {
		return nil, fmt.Errorf("%w: %s not accepted in %s", ErrProtocolSequence, msg.Tag(), p.phase)
	}

	switch m := msg.(type) {
	case *InitBaseParam:
		p.base = new(big.Int).Set(m.Base)
		p.transition(AwaitingIdentity)
		return nil, nil

	case *YourID:
		p.id = m.ID
		p.log = p.log.With("participant", p.id)
		p.transition(AwaitingPeerSet)
		return nil, nil

	case *UserIDBroadcast:
		if p.deferredPeer != nil {
			return nil, fmt.Errorf("%w: peer set already announced", ErrProtocolSequence)
		}
		if p.value == nil {
			p.deferredPeer = slices.Clone(m.UserIDs)
			p.log.Warn("Peer set arrived before private value, deferring perturbations", "err", ErrMissingPrivateValue)
			return nil, nil
		}
		return p.sendPerturbations(m.UserIDs)

	case *Perturbations:
		return p.sendMaskedValue(m.Perturbations)

	case *AggregationResult:
		p.result = new(big.Int).Set(m.AggregationResult)
		p.transition(Terminated)
		p.log.Info("Aggregation result received", "result", p.result.String())
		return nil, nil

	case *Notice:
		p.log.Info("Relay notice", "message", m.Message)
		return nil, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownTag, msg.Tag())
}

func (p *Participant) sendPerturbations(userIDs []string) ([]Message, error) {
	peers := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != p.id {
			peers = append(peers, id)
		}
	}

	sent, err := crypto.GeneratePerturbations(p.prng, p.base, p.id, peers)
	if err != nil {
		return nil, err
	}

	p.peers = peers
	p.sent = sent
	p.transition(PerturbationsSent)

	// Masks travel through the relay, which only forwards them once every
	// peer has sent its own; nothing else can happen in between.
	p.transition(AwaitingPeerPerturbations)

	return []Message{&Perturbations{Perturbations: cloneInts(sent)}}, nil
}

func (p *Participant) sendMaskedValue(received map[string]*big.Int) ([]Message, error) {
	masked, err := ComputeMaskedValue(p.base, p.value, p.id, p.sent, received)
	if err != nil {
		if errors.Is(err, ErrDataConsistency) {
			p.err = err
			p.transition(Aborted)
		}
		return nil, err
	}

	p.maskedValue = masked
	p.transition(MaskedValueSent)
	return []Message{&Value{Value: new(big.Int).Set(masked)}}, nil
}

func (p *Participant) transition(to Phase) {
	p.log.Info("Phase transition", "from", p.phase.String(), "to", to.String())
	p.phase = to
}

// Phase returns the current phase.
func (p *Participant) Phase() Phase { return p.phase }

// Err returns the error that aborted the round, if any.
func (p *Participant) Err() error { return p.err }

// ID returns the identifier assigned by the relay, empty until known.
func (p *Participant) ID() string { return p.id }

// Base returns a copy of the round modulus, nil until announced.
func (p *Participant) Base() *big.Int { return cloneInt(p.base) }

// Peers returns the peer set, excluding self.
func (p *Participant) Peers() []string { return slices.Clone(p.peers) }

// HasPrivateValue reports whether the local value was supplied.
func (p *Participant) HasPrivateValue() bool { return p.value != nil }

// AwaitingPrivateValue reports whether a peer set is waiting on the value.
func (p *Participant) AwaitingPrivateValue() bool { return p.deferredPeer != nil }

// SentPerturbations returns a copy of the masks generated for each peer.
func (p *Participant) SentPerturbations() map[string]*big.Int { return cloneInts(p.sent) }

// MaskedValue returns the disclosed value, nil until computed.
func (p *Participant) MaskedValue() *big.Int { return cloneInt(p.maskedValue) }

// Result returns the aggregation result, nil until the round terminates.
func (p *Participant) Result() *big.Int { return cloneInt(p.result) }

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func cloneInts(m map[string]*big.Int) map[string]*big.Int {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = cloneInt(v)
	}
	return out
}
