/*
Package testutil provides fixtures for testing secure aggregation rounds.

# Configuration Generators

	cfg := testutil.NewTestRelayConfig(
	    testutil.WithThreshold(3),
	    testutil.WithBase(10),
	)

# In-memory rounds

Harness wires participants to a relay.Relay through MemPeer queues and
delivers messages synchronously, so a complete round runs without sockets
or goroutines:

	h, err := testutil.NewHarness(cfg, 3)
	require.NoError(t, err)

	results, err := h.Run(2, 5, 9)
	require.NoError(t, err)
	require.Equal(t, int64(6), results[0].Int64())

Perturbations are drawn from testutil.NewKeyedPRNG, so rounds are
reproducible.

This package is intended for testing purposes only and should not be used in
production code.
*/
package testutil
