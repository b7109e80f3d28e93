// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package sync

import (
	"context"
	"time"

	"github.com/Oxedos/devops-dashboard-sub000/internal/gitlab"
	"github.com/Oxedos/devops-dashboard-sub000/internal/logging"
	"github.com/Oxedos/devops-dashboard-sub000/internal/metrics"
)

// runBootstrap performs the dependency-ordered full load:
//
//	probe auth; groups; then per listened group projects alongside merge
//	requests; then pipelines alongside events, which both need the
//	project and merge request records of the previous phase.
//
// Only a failed auth probe halts the bootstrap (and suppresses polling);
// any other failure, the probe's included, is scope-local: it is reported
// and the remaining phases still run.
func (o *Orchestrator) runBootstrap(ctx context.Context) {
	started := time.Now()
	scopes := o.Scopes()
	o.missing.reset()

	err := retryWithBackoff(ctx, o.cfg.RetryAttempts, o.cfg.RetryDelay, func() error {
		user, uerr := o.client.CurrentUser(ctx)
		if uerr != nil {
			return uerr
		}
		o.store.SetUser(user)
		return nil
	})
	switch {
	case gitlab.IsAuth(err):
		o.setNotConfigured(true)
		o.notes.Push(SeverityError, "GitLab rejected the configured token; update credentials and reload")
		logging.Err(err).Msg("Bootstrap halted: authentication failed")
		return
	case err != nil:
		o.handleScopeError(err, "user")
	default:
		o.setNotConfigured(false)
	}

	o.syncGroups(ctx)

	// Phase 1: project membership and merge requests have no mutual
	// dependency and load concurrently.
	var phase1 []func()
	for _, group := range scopes.AllGroups() {
		g := group
		phase1 = append(phase1, func() { o.syncGroupProjects(ctx, g) })
	}
	for _, group := range scopes.MRGroups {
		g := group
		phase1 = append(phase1, func() { o.syncGroupMRs(ctx, g) })
	}
	if scopes.UserMRs {
		phase1 = append(phase1, func() { o.syncUserMRs(ctx) })
	}
	for _, id := range scopes.ProjectIDs() {
		pid := id
		phase1 = append(phase1, func() { o.syncDirectProject(ctx, pid) })
	}
	runParallel(phase1...)

	// Phase 2: pipelines and events both walk the project records loaded
	// above; pipelines additionally resolve head pipelines of the cached
	// merge requests.
	var phase2 []func()
	for group, flags := range scopes.PipelineGroups {
		g, f := group, flags
		phase2 = append(phase2, func() { o.syncGroupPipelines(ctx, g, f) })
	}
	for id, flags := range scopes.PipelineProjects {
		pid, f := id, flags
		phase2 = append(phase2, func() { o.syncProjectPipelinesDirect(ctx, pid, f) })
	}
	for _, group := range scopes.EventGroups {
		g := group
		phase2 = append(phase2, func() { o.syncGroupEvents(ctx, g) })
	}
	runParallel(phase2...)

	o.fillMissingProjects(ctx)
	o.finishCycle(ctx, started)
	metrics.ObserveCycle("bootstrap", time.Since(started))
	logging.Info().Dur("elapsed", time.Since(started)).Msg("Bootstrap complete")
}
