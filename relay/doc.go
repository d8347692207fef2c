// Package relay implements the coordinating service of a secure-sum round.
//
// The relay announces the base and an identifier to every connection,
// waits for a threshold of participants to report ready, broadcasts the
// peer set, forwards each participant the masks its peers generated for it
// and finally sums the masked values modulo the base. The pairwise masks
// cancel in that sum, so the relay learns the aggregate without seeing any
// individual value. After announcing the result it closes every connection
// and starts a fresh round.
//
// Relay is transport agnostic; Handler serves it over websockets.
package relay
