// Package cmd holds the secure aggregation binaries.
//
// # Commands
//
// relay: coordinates rounds. Assigns identifiers, waits for the configured
// number of ready participants, routes pairwise masks and announces the
// sum of the masked values.
//
//	go run ./cmd/relay -n 3 -b 1000000007
//
// participant: joins one round with a private value.
//
//	go run ./cmd/participant --relay=ws://localhost:8001/ws --value=17
//
// audit: demo side channel collecting what participants disclose, with and
// without masking. Insecure by construction.
//
//	go run ./cmd/audit --store=bolt --bolt-path=audit.db
//
// demo: runs a relay, an optional audit service and n participants in one
// process and compares each round's result with the true sum.
//
//	go run ./cmd/demo -n 5 -rounds 3 --audit
//
// # Configuration
//
// All commands support a shared YAML file via the --config flag; each reads
// its own section. Command-line flags override config file values.
//
//	log_level: info
//	relay:
//	  listen_addr: ":8001"
//	  threshold: 3
//	  metrics_addr: ":9090"
//	  base: "1000000007"
//	participant:
//	  relay_url: "ws://localhost:8001/ws"
//	  api_addr: ":8083"
//	audit:
//	  listen_addr: ":8002"
//	  store: memory
package cmd
