// Package protocol implements the participant side of a secure-sum round
// coordinated by a relay.
//
// Every participant holds a private integer. The relay announces a base
// (modulus), assigns identifiers and broadcasts the peer set. Each
// participant then draws a uniform mask in [0, base) for every peer, sends
// those masks through the relay, and receives the masks its peers drew for
// it. Its disclosed value is
//
//	mod(v + Σ_peer mod(S[peer] - R[peer], base), base)
//
// where S are the masks it sent and R the masks it received. The pairwise
// terms cancel across all participants, so the relay's sum of disclosed
// values mod base is the sum of private values mod base, while each
// disclosed value on its own is uniformly distributed.
//
// # Round phases
//
//	AwaitingBase -> AwaitingIdentity -> AwaitingPeerSet -> PerturbationsSent
//	  -> AwaitingPeerPerturbations -> MaskedValueSent -> Terminated
//
// A data-consistency failure (sent and received masks covering different
// peers) moves the participant to Aborted instead.
//
// # Components
//
//   - messages.go: tagged JSON wire messages with required-field validation
//   - participant.go: the per-round state machine
//   - masking.go: the masked-value computation
//   - dispatcher.go: decode, transition, encode; recoverable errors are
//     logged and ignored
//
// # Security Considerations
//
//   - Participants are assumed honest; malicious peers, dropped or
//     duplicated messages and peer churn mid-round are not handled.
//   - Masks travel in the clear through the relay. A relay that reads them
//     can unmask every participant; the design only protects against a relay
//     that forwards without inspecting.
package protocol
