// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

// Package main is the entry point for the dashboard backend.
//
// The server aggregates GitLab groups, projects, merge requests,
// pipelines, and activity events into a locally cached normalized store,
// continuously refreshed by a demand-driven sync engine and served to the
// dashboard frontend over a read-only HTTP API.
//
// Startup order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML file,
//     environment variables)
//  2. Persistence: BadgerDB snapshot store, restored into the cache so
//     widgets render before the first bootstrap finishes
//  3. GitLab client: rate-limited, circuit-broken HTTP client
//  4. Sync orchestrator: bootstrap plus short/long polling loops
//  5. HTTP server: read API, widget and command endpoints, Prometheus
//     metrics
//
// The orchestrator and the HTTP server run under a suture supervisor
// tree and shut down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/Oxedos/devops-dashboard-sub000/internal/api"
	"github.com/Oxedos/devops-dashboard-sub000/internal/config"
	"github.com/Oxedos/devops-dashboard-sub000/internal/gitlab"
	"github.com/Oxedos/devops-dashboard-sub000/internal/logging"
	"github.com/Oxedos/devops-dashboard-sub000/internal/persist"
	"github.com/Oxedos/devops-dashboard-sub000/internal/store"
	"github.com/Oxedos/devops-dashboard-sub000/internal/supervisor"
	syncengine "github.com/Oxedos/devops-dashboard-sub000/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("gitlab_url", cfg.GitLab.URL).Msg("Starting devops-dashboard")

	st := store.New()

	var saver syncengine.Saver
	if cfg.Persist.Enabled {
		snapStore, perr := persist.Open(cfg.Persist.Path, cfg.Persist.Key)
		if perr != nil {
			logging.Fatal().Err(perr).Msg("Failed to open snapshot store")
		}
		defer snapStore.Close()
		saver = snapStore

		if snap, ok, lerr := snapStore.Load(context.Background()); lerr != nil {
			logging.Warn().Err(lerr).Msg("Snapshot restore failed; starting cold")
		} else if ok {
			st.Restore(snap)
			logging.Info().Msg("Cache restored from snapshot")
		}
	}

	client := gitlab.NewClient(gitlab.Options{
		BaseURL:         cfg.GitLab.URL,
		Token:           func() string { return cfg.GitLab.Token },
		PerPage:         cfg.GitLab.PerPage,
		Timeout:         cfg.GitLab.Timeout,
		RateLimitRPS:    cfg.GitLab.RateLimitRPS,
		BreakerDisabled: cfg.GitLab.BreakerDisabled,
	})

	orch := syncengine.New(cfg.Sync, client, st, saver)

	widgets, err := config.LoadWidgets(cfg.Widgets.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Widgets.Path).Msg("Failed to load widget configuration")
	}

	handler := api.NewHandler(orch)
	router := api.NewRouter(cfg.Server, handler)
	server := api.NewServer(cfg.Server, router.Setup())

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(orch)
	tree.AddAPIService(server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Widget configuration computes the listened scopes and kicks off the
	// first bootstrap once the orchestrator starts serving.
	orch.SetWidgets(ctx, widgets)

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Err(err).Msg("Supervisor tree exited")
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown complete")
}
