// Package httpserver provides the HTTP server shared by the relay,
// participant and audit binaries.
//
// BaseServer wires a chi router with request IDs, real-IP detection, panic
// recovery and structured request logging, and adds the standard
// diagnostic endpoints:
//
//   - /livez: liveness
//   - /readyz: readiness, toggled by /drain and /undrain
//   - /debug: pprof, when enabled
//
// With MetricsAddr set, a separate listener serves Prometheus metrics at
// /metrics; components register collectors on Metrics().Registry().
//
// Components plug in by implementing RouteRegistrar. Registrars whose
// routes hijack the connection, such as the relay's websocket endpoint,
// also implement ConnectionHijacker so their routes skip the request
// logger.
//
//	srv, err := httpserver.New(cfg, relay.NewHandler(r, log))
//	if err != nil {
//	    return err
//	}
//	srv.RunInBackground()
//	defer srv.Shutdown()
package httpserver
