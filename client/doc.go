// Package client connects a participant to a relay.
//
// Client dials the relay's websocket endpoint and runs a single event loop
// that feeds inbound frames and the locally submitted private value to a
// protocol.Dispatcher, writing whatever it emits back to the relay. The
// private value can be configured up front or submitted later through
// ClientHandler's local HTTP API.
//
// When a Reporter is set, the client also posts to the audit side channel.
// Reports are sent asynchronously and failures are only logged.
package client
