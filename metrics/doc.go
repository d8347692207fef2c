// Package metrics exposes Prometheus metrics for the secure aggregation
// services.
//
// MetricsServer owns a registry and serves it on its own listen address,
// separate from the service API. Components register their collectors on
// Registry():
//
//	srv, err := metrics.New(":9090")
//	rm := metrics.NewRelayMetrics(srv.Registry())
//	r.SetMetrics(rm)
//
// All RelayMetrics methods are no-ops on a nil receiver, so instrumented
// code does not need to check whether metrics are enabled.
package metrics
