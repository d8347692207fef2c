package protocol

// Phase is a participant's position in the aggregation round.
type Phase int

const (
	AwaitingBase Phase = iota
	AwaitingIdentity
	AwaitingPeerSet
	PerturbationsSent
	AwaitingPeerPerturbations
	MaskedValueSent
	Terminated
	// Aborted is terminal; a data-consistency failure ended the round.
	Aborted
)

var phaseNames = map[Phase]string{
	AwaitingBase:              "AwaitingBase",
	AwaitingIdentity:          "AwaitingIdentity",
	AwaitingPeerSet:           "AwaitingPeerSet",
	PerturbationsSent:         "PerturbationsSent",
	AwaitingPeerPerturbations: "AwaitingPeerPerturbations",
	MaskedValueSent:           "MaskedValueSent",
	Terminated:                "Terminated",
	Aborted:                   "Aborted",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "Unknown"
}

// IsTerminal reports whether no further transitions are possible.
func (p Phase) IsTerminal() bool {
	return p == Terminated || p == Aborted
}

// Accepts reports whether a message with the given tag may drive a
// transition out of p.
func (p Phase) Accepts(tag Tag) bool {
	switch tag {
	case TagInitBaseParam:
		return p == AwaitingBase
	case TagYourID:
		return p == AwaitingIdentity
	case TagUserIDBroadcast:
		return p == AwaitingPeerSet
	case TagPerturbations:
		return p == PerturbationsSent || p == AwaitingPeerPerturbations
	case TagAggregationResult:
		return p == MaskedValueSent
	case TagNotice:
		return true
	}
	return false
}
