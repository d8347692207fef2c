// Command participant takes part in one secure-sum round.
//
// The private value comes from --value, the config file, or a later
// POST /client/value on the local API. The aggregation result is printed
// when the round completes.
//
// # Configuration File
//
//	participant:
//	  relay_url: "ws://localhost:8001/ws"
//	  name: "alice"
//	  value: ""            # submit later through the local API if empty
//	  api_addr: ":8083"    # empty disables the local API
//	  audit_url: ""        # insecure side channel, disabled if empty
//
// # Usage
//
//	go run ./cmd/participant --relay=ws://localhost:8001/ws --value=17
//	curl -X POST localhost:8083/client/value -d '{"name":"alice","value":17}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbiss10/secure-aggregation/api/httpserver"
	"github.com/mbiss10/secure-aggregation/audit"
	"github.com/mbiss10/secure-aggregation/client"
	"github.com/mbiss10/secure-aggregation/cmd/common"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		relayURL   = flag.String("relay", "ws://localhost:8001/ws", "Relay websocket URL")
		name       = flag.String("name", "", "Display name (audit reports only)")
		value      = flag.String("value", "", "Private value (decimal); submit via API if empty")
		apiAddr    = flag.String("addr", ":8083", "Local API listen address, empty to disable")
		auditURL   = flag.String("audit", "", "Audit service URL (insecure, demo only)")
		seed       = flag.String("prng-seed", "", "Hex seed for deterministic masks (testing only)")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logJSON    = flag.Bool("log-json", false, "Log in JSON format")
	)
	flag.Parse()

	cfg, err := common.LoadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	pc := &cfg.Participant
	common.OverrideString(&pc.RelayURL, "relay", *relayURL)
	common.OverrideString(&pc.Name, "name", *name)
	common.OverrideString(&pc.Value, "value", *value)
	common.OverrideString(&pc.APIAddr, "addr", *apiAddr)
	common.OverrideString(&pc.AuditURL, "audit", *auditURL)
	common.OverrideString(&pc.PRNGSeed, "prng-seed", *seed)
	common.OverrideString(&cfg.LogLevel, "log-level", *logLevel)
	if *logJSON {
		cfg.LogJSON = true
	}

	log, err := common.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		fmt.Printf("Logger error: %v\n", err)
		os.Exit(1)
	}

	c, err := client.New(pc, log)
	if err != nil {
		fmt.Printf("Create client error: %v\n", err)
		os.Exit(1)
	}
	if pc.AuditURL != "" {
		log.Warn("Audit side channel enabled, the private value will be disclosed", "url", pc.AuditURL)
		c.SetReporter(audit.NewHTTPReporter(pc.AuditURL))
	}

	if pc.APIAddr != "" {
		srv, err := httpserver.New(httpserver.DefaultHTTPServerConfig(pc.APIAddr, log), client.NewClientHandler(c))
		if err != nil {
			fmt.Printf("Create server error: %v\n", err)
			os.Exit(1)
		}
		srv.RunInBackground()
		defer srv.Shutdown()
	} else if pc.Value == "" {
		fmt.Println("Error: no value configured and local API disabled")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := c.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Interrupted before the round completed")
			return
		}
		log.Error("Round failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("Aggregation result: %s\n", result.String())
}
