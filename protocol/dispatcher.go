package protocol

import (
	"fmt"
	"log/slog"
	"math/big"
)

// Dispatcher sits between the transport and a Participant: it decodes raw
// inbound messages, drives the state machine and encodes whatever the
// transition emits. Recoverable errors (unknown tags, malformed payloads,
// out-of-phase messages) are logged and swallowed; anything else is
// returned and ends the round.
type Dispatcher struct {
	participant *Participant
	log         *slog.Logger
}

// NewDispatcher wraps participant.
func NewDispatcher(participant *Participant, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{participant: participant, log: log}
}

// Participant returns the wrapped state machine.
func (d *Dispatcher) Participant() *Participant {
	return d.participant
}

// Dispatch handles one raw inbound message and returns the encoded
// outbound messages, in send order.
func (d *Dispatcher) Dispatch(raw []byte) ([][]byte, error) {
	msg, err := DecodeMessage(raw)
	if err != nil {
		d.log.Warn("Ignoring undecodable message", "err", err, "size", len(raw))
		return nil, nil
	}
	return d.DispatchMessage(msg)
}

// DispatchMessage is Dispatch for an already decoded message.
func (d *Dispatcher) DispatchMessage(msg Message) ([][]byte, error) {
	out, err := d.participant.Handle(msg)
	if err != nil {
		var tag Tag
		if msg != nil {
			tag = msg.Tag()
		}
		if IsRecoverable(err) {
			d.log.Warn("Ignoring message", "type", string(tag), "phase", d.participant.Phase().String(), "err", err)
			return nil, nil
		}
		d.log.Error("Round failed", "type", string(tag), "err", err)
		return nil, err
	}

	return d.encode(out)
}

// SubmitValue supplies the private value and returns the encoded messages
// it releases (ready, plus deferred perturbations if any).
func (d *Dispatcher) SubmitValue(v *big.Int) ([][]byte, error) {
	out, err := d.participant.SetPrivateValue(v)
	if err != nil && len(out) == 0 {
		return nil, err
	}

	encoded, encErr := d.encode(out)
	if encErr != nil {
		return nil, encErr
	}
	return encoded, err
}

func (d *Dispatcher) encode(msgs []Message) ([][]byte, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	encoded := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		data, err := EncodeMessage(m)
		if err != nil {
			return nil, fmt.Errorf("could not encode %s: %w", m.Tag(), err)
		}
		encoded = append(encoded, data)
	}
	return encoded, nil
}
