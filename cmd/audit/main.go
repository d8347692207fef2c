// Command audit runs the demo reporting side channel.
//
// It stores what participants choose to disclose: raw values posted to
// /report-insecure and masked values posted to /report-secure, listed at
// /big-brother and /secure-view respectively. Never point real
// participants at it.
//
// # Configuration File
//
//	audit:
//	  listen_addr: ":8002"
//	  store: bolt            # memory, bolt or postgres
//	  bolt_path: audit.db
//	  postgres:
//	    host: localhost
//	    port: 5432
//	    user: postgres
//	    password: ""
//	    database: audit
//
// # Usage
//
//	go run ./cmd/audit --config=audit.yaml
//	go run ./cmd/audit --store=bolt --bolt-path=audit.db
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbiss10/secure-aggregation/api/httpserver"
	"github.com/mbiss10/secure-aggregation/audit"
	"github.com/mbiss10/secure-aggregation/cmd/common"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		addr       = flag.String("addr", ":8002", "HTTP listen address")
		store      = flag.String("store", audit.StoreMemory, "Report store: memory, bolt or postgres")
		boltPath   = flag.String("bolt-path", "audit.db", "Bolt database file")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logJSON    = flag.Bool("log-json", false, "Log in JSON format")
	)
	flag.Parse()

	cfg, err := common.LoadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	common.OverrideString(&cfg.Audit.ListenAddr, "addr", *addr)
	common.OverrideString(&cfg.Audit.Store, "store", *store)
	common.OverrideString(&cfg.Audit.BoltPath, "bolt-path", *boltPath)
	common.OverrideString(&cfg.LogLevel, "log-level", *logLevel)
	if *logJSON {
		cfg.LogJSON = true
	}

	log, err := common.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		fmt.Printf("Logger error: %v\n", err)
		os.Exit(1)
	}

	reports, err := audit.NewStore(&cfg.Audit)
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	defer reports.Close()

	srv, err := httpserver.New(httpserver.DefaultHTTPServerConfig(cfg.Audit.ListenAddr, log), audit.NewHandler(reports, log))
	if err != nil {
		fmt.Printf("Create server error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Warn("Audit side channel stores raw values in the clear; demo use only", "store", cfg.Audit.Store)
	srv.RunInBackground()

	<-ctx.Done()
	log.Info("Shutting down audit service")
	srv.Shutdown()
}
