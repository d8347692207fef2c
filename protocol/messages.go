package protocol

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
)

// Tag names the kind of a protocol message. It travels in the "type" field
// of every JSON message exchanged with the relay.
type Tag string

const (
	// relay -> participant
	TagInitBaseParam     Tag = "init_base_param"
	TagYourID            Tag = "your_id"
	TagUserIDBroadcast   Tag = "user_id_broadcast"
	TagAggregationResult Tag = "aggregation_result"
	TagNotice            Tag = "message"

	// both directions
	TagPerturbations Tag = "perturbations"

	// participant -> relay
	TagReady Tag = "ready"
	TagValue Tag = "value"
)

// Message is a tagged protocol record.
type Message interface {
	Tag() Tag
	// Validate checks that all required fields are present and sane.
	Validate() error
}

// InitBaseParam announces the modulus for the round.
type InitBaseParam struct {
	Base *big.Int `json:"base"`
}

func (*InitBaseParam) Tag() Tag { return TagInitBaseParam }

func (m *InitBaseParam) Validate() error {
	if m.Base == nil {
		return fmt.Errorf("%w: missing base", ErrMalformedPayload)
	}
	if m.Base.Sign() <= 0 {
		return fmt.Errorf("%w: base must be positive, got %s", ErrMalformedPayload, m.Base)
	}
	return nil
}

// YourID assigns the participant its identifier.
type YourID struct {
	ID string `json:"id"`
}

func (*YourID) Tag() Tag { return TagYourID }

func (m *YourID) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedPayload)
	}
	return nil
}

// UserIDBroadcast announces every participant of the round, self included.
type UserIDBroadcast struct {
	UserIDs []string `json:"user_ids"`
}

func (*UserIDBroadcast) Tag() Tag { return TagUserIDBroadcast }

func (m *UserIDBroadcast) Validate() error {
	if m.UserIDs == nil {
		return fmt.Errorf("%w: missing user_ids", ErrMalformedPayload)
	}
	for i, id := range m.UserIDs {
		if id == "" {
			return fmt.Errorf("%w: empty user id at index %d", ErrMalformedPayload, i)
		}
	}
	return nil
}

// Perturbations carries masks keyed by peer identifier. Outbound it holds
// the masks this participant generated for each peer; inbound it holds the
// masks each peer generated for this participant.
type Perturbations struct {
	Perturbations map[string]*big.Int `json:"perturbations"`
}

func (*Perturbations) Tag() Tag { return TagPerturbations }

func (m *Perturbations) Validate() error {
	if m.Perturbations == nil {
		return fmt.Errorf("%w: missing perturbations", ErrMalformedPayload)
	}
	for peer, v := range m.Perturbations {
		if v == nil {
			return fmt.Errorf("%w: null perturbation for %s", ErrMalformedPayload, peer)
		}
	}
	return nil
}

// AggregationResult is the final sum announced by the relay.
type AggregationResult struct {
	AggregationResult *big.Int `json:"aggregation_result"`
}

func (*AggregationResult) Tag() Tag { return TagAggregationResult }

func (m *AggregationResult) Validate() error {
	if m.AggregationResult == nil {
		return fmt.Errorf("%w: missing aggregation_result", ErrMalformedPayload)
	}
	return nil
}

// Notice is a free-form informational message from the relay, for example
// when a round is already full.
type Notice struct {
	Message string `json:"message"`
}

func (*Notice) Tag() Tag { return TagNotice }

func (m *Notice) Validate() error { return nil }

// Ready tells the relay the local value has been collected.
type Ready struct{}

func (*Ready) Tag() Tag { return TagReady }

func (*Ready) Validate() error { return nil }

// Value carries the participant's masked contribution.
type Value struct {
	Value *big.Int `json:"value"`
}

func (*Value) Tag() Tag { return TagValue }

func (m *Value) Validate() error {
	if m.Value == nil {
		return fmt.Errorf("%w: missing value", ErrMalformedPayload)
	}
	return nil
}

func newMessageForTag(tag Tag) (Message, error) {
	switch tag {
	case TagInitBaseParam:
		return &InitBaseParam{}, nil
	case TagYourID:
		return &YourID{}, nil
	case TagUserIDBroadcast:
		return &UserIDBroadcast{}, nil
	case TagPerturbations:
		return &Perturbations{}, nil
	case TagAggregationResult:
		return &AggregationResult{}, nil
	case TagNotice:
		return &Notice{}, nil
	case TagReady:
		return &Ready{}, nil
	case TagValue:
		return &Value{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
}

// DecodeMessage parses a JSON message, dispatching on its "type" field, and
// validates the payload. Unrecognized tags yield ErrUnknownTag, anything
// else that cannot be turned into a well-formed message yields
// ErrMalformedPayload.
func DecodeMessage(data []byte) (Message, error) {
	var envelope struct {
		Type Tag `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("%w: message type not specified", ErrMalformedPayload)
	}

	msg, err := newMessageForTag(envelope.Type)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, envelope.Type, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return msg, nil
}

// EncodeMessage serializes msg as a flat JSON object with its tag in the
// "type" field, e.g. {"type":"value","value":17}.
func EncodeMessage(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"] = json.RawMessage(strconv.Quote(string(msg.Tag())))

	return json.Marshal(fields)
}
