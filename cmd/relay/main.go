// Command relay runs the coordinator of secure-sum rounds.
//
// # Configuration File
//
//	log_level: info
//	relay:
//	  listen_addr: ":8001"
//	  threshold: 3
//	  base: "1000000007"
//
// # Usage
//
//	go run ./cmd/relay --config=relay.yaml
//	go run ./cmd/relay -n 3 -b 1000000007 --addr=:8001
//
// Participants connect to ws://<addr>/ws. Round progress is available at
// /relay/status, Prometheus metrics at <metrics-addr>/metrics when enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbiss10/secure-aggregation/api/httpserver"
	"github.com/mbiss10/secure-aggregation/cmd/common"
	"github.com/mbiss10/secure-aggregation/metrics"
	"github.com/mbiss10/secure-aggregation/relay"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		addr        = flag.String("addr", ":8001", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Prometheus metrics listen address (disabled if empty)")
		threshold   = flag.Int("n", 3, "Number of participants per round")
		base        = flag.String("b", "1000000007", "Round modulus (decimal)")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logJSON     = flag.Bool("log-json", false, "Log in JSON format")
		pprof       = flag.Bool("pprof", false, "Enable pprof endpoints")
	)
	flag.Parse()

	cfg, err := common.LoadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file
	common.OverrideString(&cfg.Relay.ListenAddr, "addr", *addr)
	common.OverrideString(&cfg.Relay.MetricsAddr, "metrics-addr", *metricsAddr)
	common.OverrideString(&cfg.Relay.Base, "b", *base)
	common.OverrideString(&cfg.LogLevel, "log-level", *logLevel)
	if common.IsFlagSet("n") {
		cfg.Relay.Threshold = *threshold
	}
	if *logJSON {
		cfg.LogJSON = true
	}

	log, err := common.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		fmt.Printf("Logger error: %v\n", err)
		os.Exit(1)
	}

	r, err := relay.New(&cfg.Relay, log)
	if err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}
	r.OnResult(func(res relay.RoundResult) {
		log.Info("Round result", "round", res.Round, "members", len(res.Members), "fingerprint", res.Fingerprint)
	})

	httpCfg := httpserver.DefaultHTTPServerConfig(cfg.Relay.ListenAddr, log)
	httpCfg.EnablePprof = *pprof
	httpCfg.MetricsAddr = cfg.Relay.MetricsAddr
	srv, err := httpserver.New(httpCfg, relay.NewHandler(r, log))
	if err != nil {
		fmt.Printf("Create server error: %v\n", err)
		os.Exit(1)
	}
	if m := srv.Metrics(); m != nil {
		r.SetMetrics(metrics.NewRelayMetrics(m.Registry()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Relay running", "threshold", cfg.Relay.Threshold, "base", cfg.Relay.Base)
	srv.RunInBackground()

	<-ctx.Done()
	log.Info("Shutting down relay")
	srv.Shutdown()
}
