// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

/*
Package sync is the demand-driven synchronization engine.

The Orchestrator is the single scheduler coordinating:

  - Bootstrap: dependency-ordered full load (auth probe, groups, then
    projects and merge requests in parallel, then pipelines and events in
    parallel), run on startup and re-run on any configuration change or
    explicit reload.
  - Long poll (default hourly): groups, user profile, projects.
  - Short poll (default 60s): merge requests, events, pipelines, the
    missing-projects reconciliation, and the retry queue drain.

Within one cycle all listened scopes are fetched concurrently and joined;
one scope's failure becomes a notification and never aborts its siblings or
the persist step. The store is mutated only here and in the retry drain, at
most one writer per scope at a time by construction.
*/
package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Oxedos/devops-dashboard-sub000/internal/config"
	"github.com/Oxedos/devops-dashboard-sub000/internal/listener"
	"github.com/Oxedos/devops-dashboard-sub000/internal/logging"
	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
	"github.com/Oxedos/devops-dashboard-sub000/internal/store"
)

// API is the upstream resource client consumed by the orchestrator.
// Implemented by *gitlab.Client.
type API interface {
	CurrentUser(ctx context.Context) (models.User, error)
	Groups(ctx context.Context) ([]models.Group, error)
	GroupProjects(ctx context.Context, group string) ([]models.Project, error)
	Project(ctx context.Context, id int) (models.Project, error)
	GroupMergeRequests(ctx context.Context, group string) ([]models.MergeRequest, error)
	UserMergeRequests(ctx context.Context, scope string) ([]models.MergeRequest, error)
	ProjectPipelines(ctx context.Context, projectID int) ([]models.Pipeline, error)
	ProjectLatestPipeline(ctx context.Context, projectID int, ref string) (*models.Pipeline, error)
	PipelineJobs(ctx context.Context, projectID, pipelineID int) ([]models.Job, error)
	ProjectEvents(ctx context.Context, projectID int) ([]models.Event, error)
	CreatePipeline(ctx context.Context, projectID int, ref string) (models.Pipeline, error)
	RerunMRPipeline(ctx context.Context, projectID, mrIID int) (models.Pipeline, error)
	PlayJob(ctx context.Context, projectID, jobID int) (models.Job, error)
}

// Saver persists store snapshots for session continuity. Failures are
// best-effort: the orchestrator logs and continues.
type Saver interface {
	Save(ctx context.Context, snap store.Snapshot) error
}

// Orchestrator owns the store and runs all background synchronization.
type Orchestrator struct {
	cfg    config.SyncConfig
	client API
	store  *store.Store
	saver  Saver

	mu            sync.RWMutex
	widgets       []models.WidgetConfig
	scopes        listener.Scopes
	notConfigured bool
	lastSync      time.Time

	// bootstrapping provides leading-edge coalescing of reactive triggers:
	// two rapid reloads run one bootstrap. An in-flight cycle is never
	// canceled.
	bootstrapping atomic.Bool

	queues  *Queues
	missing *missingProjects
	notes   *Notifications

	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates an orchestrator. saver may be nil to disable persistence.
func New(cfg config.SyncConfig, client API, st *store.Store, saver Saver) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		client:   client,
		store:    st,
		saver:    saver,
		queues:   NewQueues(),
		missing:  newMissingProjects(cfg.MissingProjectMaxAttempts, cfg.MissingProjectBackoff),
		notes:    NewNotifications(notificationLimit),
		stopChan: make(chan struct{}),
	}
}

// Store returns the store owned by this orchestrator.
func (o *Orchestrator) Store() *store.Store { return o.store }

// Queues returns the retry command queues.
func (o *Orchestrator) Queues() *Queues { return o.queues }

// Notifications returns the user-facing notification buffer.
func (o *Orchestrator) Notifications() *Notifications { return o.notes }

// Widgets returns the current widget configuration.
func (o *Orchestrator) Widgets() []models.WidgetConfig {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.WidgetConfig, len(o.widgets))
	copy(out, o.widgets)
	return out
}

// Scopes returns the currently listened scopes.
func (o *Orchestrator) Scopes() listener.Scopes {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.scopes
}

// LastSyncTime returns the start time of the last completed cycle.
func (o *Orchestrator) LastSyncTime() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastSync
}

// NotConfigured reports whether polling is suppressed pending
// re-authentication.
func (o *Orchestrator) NotConfigured() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.notConfigured
}

// Start launches the polling loops and the initial bootstrap.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return
	}
	o.running = true
	o.stopChan = make(chan struct{})
	o.mu.Unlock()

	logging.Info().
		Dur("short_poll", o.cfg.ShortPollInterval).
		Dur("long_poll", o.cfg.LongPollInterval).
		Msg("Starting sync orchestrator")

	o.triggerBootstrap(ctx)

	o.wg.Add(2)
	go o.pollLoop(ctx, o.cfg.ShortPollInterval, "short_poll", o.shortPoll)
	go o.pollLoop(ctx, o.cfg.LongPollInterval, "long_poll", o.longPoll)
}

// Stop stops the polling loops and waits for in-flight cycles.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	close(o.stopChan)
	o.mu.Unlock()

	o.wg.Wait()
	logging.Info().Msg("Sync orchestrator stopped")
}

// Serve implements suture.Service.
func (o *Orchestrator) Serve(ctx context.Context) error {
	o.Start(ctx)
	<-ctx.Done()
	o.Stop()
	return ctx.Err()
}

// SetWidgets replaces the widget configuration, evicts scopes that lost
// their last listener, and re-runs bootstrap for the new scope set.
func (o *Orchestrator) SetWidgets(ctx context.Context, widgets []models.WidgetConfig) {
	o.mu.Lock()
	oldScopes := o.scopes
	o.widgets = make([]models.WidgetConfig, len(widgets))
	copy(o.widgets, widgets)
	o.scopes = listener.ComputeListenedScopes(o.widgets)
	newScopes := o.scopes
	o.mu.Unlock()

	for _, group := range oldScopes.AllGroups() {
		if !newScopes.ListensGroup(group) {
			logging.Info().Str("group", group).Msg("Evicting unlistened group scope")
			o.store.EvictScope(models.GroupScope(group))
		}
	}
	for _, id := range oldScopes.ProjectIDs() {
		if _, ok := newScopes.PipelineProjects[id]; !ok {
			logging.Info().Int("project_id", id).Msg("Evicting unlistened project scope")
			o.store.EvictScope(models.ProjectScope(id))
		}
	}
	if oldScopes.UserMRs && !newScopes.UserMRs {
		o.store.EvictScope(models.AssignedMRScope())
		o.store.EvictScope(models.ReviewMRScope())
	}

	o.triggerBootstrap(ctx)
}

// Reload re-runs a full bootstrap on user request.
func (o *Orchestrator) Reload(ctx context.Context) {
	o.triggerBootstrap(ctx)
}

// triggerBootstrap starts a bootstrap unless one is already in flight.
func (o *Orchestrator) triggerBootstrap(ctx context.Context) {
	if !o.bootstrapping.CompareAndSwap(false, true) {
		logging.Debug().Msg("Bootstrap already in flight; trigger coalesced")
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.bootstrapping.Store(false)
		o.runBootstrap(ctx)
	}()
}

// pollLoop runs one polling cadence until stopped.
func (o *Orchestrator) pollLoop(ctx context.Context, interval time.Duration, kind string, cycle func(context.Context)) {
	defer o.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopChan:
			return
		case <-ticker.C:
			if o.NotConfigured() {
				logging.Debug().Str("kind", kind).Msg("Polling suppressed until re-authentication")
				continue
			}
			cycle(ctx)
		}
	}
}

// finishCycle records cycle completion and runs the debounced persist step
// (once per cycle, not once per mutation).
func (o *Orchestrator) finishCycle(ctx context.Context, started time.Time) {
	o.mu.Lock()
	o.lastSync = started
	o.mu.Unlock()
	o.persist(ctx)
}
