package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aluiziolira/go-bookshop-client/api"
	"github.com/aluiziolira/go-bookshop-client/devserver"
)

func runServe(ctx context.Context, env *cliEnv, args []string) error {
	cfg := env.cfg
	fs := newFlagSet("serve", env)
	fs.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "Listen address")
	fs.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "Backend origin that /api is forwarded to")
	fs.BoolVar(&cfg.ProxyInsecure, "insecure", cfg.ProxyInsecure, "Skip TLS verification of the backend")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := setup(env)

	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Server-rendered pages talk to the backend directly, not through the proxy.
	backendCfg := *cfg
	backendCfg.APIBaseURL = cfg.BackendURL
	client, err := api.NewClient(&backendCfg, api.NewMetrics(registry))
	if err != nil {
		return err
	}

	srv, err := devserver.New(cfg, client, registry, logger)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}
