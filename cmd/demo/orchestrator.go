package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mbiss10/secure-aggregation/api/httpserver"
	"github.com/mbiss10/secure-aggregation/audit"
	"github.com/mbiss10/secure-aggregation/client"
	"github.com/mbiss10/secure-aggregation/protocol"
	"github.com/mbiss10/secure-aggregation/relay"
)

// OrchestratorConfig contains deployment configuration.
type OrchestratorConfig struct {
	NumParticipants int
	Base            string
	Host            string

	// WithAudit deploys the audit side channel and points every
	// participant at it.
	WithAudit bool
}

// Orchestrator runs a relay, an optional audit service and participants
// in one process.
type Orchestrator struct {
	config *OrchestratorConfig
	log    *slog.Logger
	base   *big.Int

	relay    *relay.Relay
	relayURL string

	store    audit.Store
	auditURL string

	servers []*http.Server
}

// NewOrchestrator creates a deployment orchestrator.
func NewOrchestrator(config *OrchestratorConfig, log *slog.Logger) (*Orchestrator, error) {
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	relayCfg := &relay.Config{Threshold: config.NumParticipants, Base: config.Base}
	r, err := relay.New(relayCfg, log)
	if err != nil {
		return nil, err
	}
	base, _ := relayCfg.ParseBase()

	return &Orchestrator{
		config: config,
		log:    log,
		base:   base,
		relay:  r,
	}, nil
}

// Deploy starts the relay and, if configured, the audit service.
func (o *Orchestrator) Deploy() error {
	addr, err := o.serve(relay.NewHandler(o.relay, o.log))
	if err != nil {
		return fmt.Errorf("deploy relay: %w", err)
	}
	o.relayURL = fmt.Sprintf("ws://%s/ws", addr)

	if o.config.WithAudit {
		o.store = audit.NewInMemoryStore()
		addr, err := o.serve(audit.NewHandler(o.store, o.log))
		if err != nil {
			return fmt.Errorf("deploy audit: %w", err)
		}
		o.auditURL = fmt.Sprintf("http://%s", addr)
	}

	o.log.Info("Deployment complete", "relay", o.relayURL, "audit", o.auditURL, "participants", o.config.NumParticipants)
	return nil
}

func (o *Orchestrator) serve(registrar httpserver.RouteRegistrar) (string, error) {
	base, err := httpserver.New(httpserver.DefaultHTTPServerConfig("", o.log), registrar)
	if err != nil {
		return "", err
	}

	l, err := net.Listen("tcp", net.JoinHostPort(o.config.Host, "0"))
	if err != nil {
		return "", err
	}

	srv := &http.Server{Handler: base.Handler(), ReadHeaderTimeout: 5 * time.Second}
	o.servers = append(o.servers, srv)

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.log.Error("Server failed", "addr", l.Addr().String(), "err", err)
		}
	}()

	return l.Addr().String(), nil
}

// RunRound connects one participant per value, runs a round and returns
// the aggregate every participant agreed on.
func (o *Orchestrator) RunRound(ctx context.Context, values []*big.Int) (*big.Int, error) {
	if len(values) != o.config.NumParticipants {
		return nil, fmt.Errorf("need %d values, got %d", o.config.NumParticipants, len(values))
	}

	clients := make([]*client.Client, len(values))
	for i, v := range values {
		c, err := client.New(&protocol.ParticipantConfig{
			RelayURL: o.relayURL,
			Name:     fmt.Sprintf("participant-%d", i),
			Value:    v.String(),
			AuditURL: o.auditURL,
		}, o.log.With("participant_index", i))
		if err != nil {
			return nil, err
		}
		if o.auditURL != "" {
			c.SetReporter(audit.NewHTTPReporter(o.auditURL))
		}
		clients[i] = c
	}

	results := make([]*big.Int, len(clients))
	errs := make([]error, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *client.Client) {
			defer wg.Done()
			results[i], errs[i] = c.Run(ctx)
		}(i, c)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	for i, res := range results[1:] {
		if res.Cmp(results[0]) != 0 {
			return nil, fmt.Errorf("participant %d saw %s, participant 0 saw %s", i+1, res, results[0])
		}
	}
	return results[0], nil
}

// Store returns the audit store, nil when the audit service is disabled.
func (o *Orchestrator) Store() audit.Store {
	return o.store
}

// Shutdown stops all servers.
func (o *Orchestrator) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for _, srv := range o.servers {
		errs = append(errs, srv.Shutdown(ctx))
	}
	if o.store != nil {
		errs = append(errs, o.store.Close())
	}
	return errors.Join(errs...)
}
