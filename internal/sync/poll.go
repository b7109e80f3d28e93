// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package sync

import (
	"context"
	"time"

	"github.com/Oxedos/devops-dashboard-sub000/internal/metrics"
)

// shortPoll refreshes the volatile collections: merge requests first so
// the pipeline pass resolves head pipelines against current data, then
// pipelines and events concurrently, then the missing-projects repair and
// the queued user commands.
func (o *Orchestrator) shortPoll(ctx context.Context) {
	started := time.Now()
	scopes := o.Scopes()

	var mrTasks []func()
	for _, group := range scopes.MRGroups {
		g := group
		mrTasks = append(mrTasks, func() { o.syncGroupMRs(ctx, g) })
	}
	if scopes.UserMRs {
		mrTasks = append(mrTasks, func() { o.syncUserMRs(ctx) })
	}
	runParallel(mrTasks...)

	var tasks []func()
	for group, flags := range scopes.PipelineGroups {
		g, f := group, flags
		tasks = append(tasks, func() { o.syncGroupPipelines(ctx, g, f) })
	}
	for id, flags := range scopes.PipelineProjects {
		pid, f := id, flags
		tasks = append(tasks, func() { o.syncProjectPipelinesDirect(ctx, pid, f) })
	}
	for _, group := range scopes.EventGroups {
		g := group
		tasks = append(tasks, func() { o.syncGroupEvents(ctx, g) })
	}
	runParallel(tasks...)

	o.fillMissingProjects(ctx)
	o.drainQueues(ctx)
	o.finishCycle(ctx, started)
	metrics.ObserveCycle("short_poll", time.Since(started))
}

// longPoll refreshes the slow-moving collections: the group catalog, the
// user profile, and per-group project membership.
func (o *Orchestrator) longPoll(ctx context.Context) {
	started := time.Now()
	scopes := o.Scopes()

	o.syncGroups(ctx)
	o.syncUser(ctx)

	var tasks []func()
	for _, group := range scopes.AllGroups() {
		g := group
		tasks = append(tasks, func() { o.syncGroupProjects(ctx, g) })
	}
	for _, id := range scopes.ProjectIDs() {
		pid := id
		tasks = append(tasks, func() { o.syncDirectProject(ctx, pid) })
	}
	runParallel(tasks...)

	o.finishCycle(ctx, started)
	metrics.ObserveCycle("long_poll", time.Since(started))
}
