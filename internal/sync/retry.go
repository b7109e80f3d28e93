// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package sync

import (
	"context"
	"sync"

	"github.com/Oxedos/devops-dashboard-sub000/internal/correlate"
	"github.com/Oxedos/devops-dashboard-sub000/internal/logging"
	"github.com/Oxedos/devops-dashboard-sub000/internal/metrics"
	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
)

// PipelineReload requests creating (or re-running) a pipeline on a ref.
// The struct is its own natural key: enqueueing the same command twice
// before a drain collapses to one upstream call.
type PipelineReload struct {
	Group     string `json:"group"      validate:"required"`
	ProjectID int    `json:"project_id" validate:"required,gt=0"`
	Ref       string `json:"ref"        validate:"required"`
}

// JobPlay requests triggering a manual job inside a merge request pipeline.
type JobPlay struct {
	Group     string `json:"group"      validate:"required"`
	ProjectID int    `json:"project_id" validate:"required,gt=0"`
	JobID     int    `json:"job_id"     validate:"required,gt=0"`
	MRIID     int    `json:"mr_iid"     validate:"required,gt=0"`
}

// Queues holds pending user commands until the next short poll. Commands
// are removed before their network call runs, so a failing command is
// attempted exactly once and reported rather than retried forever.
type Queues struct {
	mu        sync.Mutex
	pipelines map[PipelineReload]struct{}
	jobs      map[JobPlay]struct{}
}

// NewQueues creates empty retry queues.
func NewQueues() *Queues {
	return &Queues{
		pipelines: make(map[PipelineReload]struct{}),
		jobs:      make(map[JobPlay]struct{}),
	}
}

// EnqueuePipelineReload adds a pipeline command; duplicates coalesce.
func (q *Queues) EnqueuePipelineReload(cmd PipelineReload) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pipelines[cmd] = struct{}{}
	metrics.RetryQueueDepth.WithLabelValues("pipeline").Set(float64(len(q.pipelines)))
}

// EnqueueJobPlay adds a job command; duplicates coalesce.
func (q *Queues) EnqueueJobPlay(cmd JobPlay) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[cmd] = struct{}{}
	metrics.RetryQueueDepth.WithLabelValues("job").Set(float64(len(q.jobs)))
}

// takePipelines removes and returns all queued pipeline commands.
func (q *Queues) takePipelines() []PipelineReload {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PipelineReload, 0, len(q.pipelines))
	for cmd := range q.pipelines {
		out = append(out, cmd)
	}
	q.pipelines = make(map[PipelineReload]struct{})
	metrics.RetryQueueDepth.WithLabelValues("pipeline").Set(0)
	return out
}

// takeJobs removes and returns all queued job commands.
func (q *Queues) takeJobs() []JobPlay {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]JobPlay, 0, len(q.jobs))
	for cmd := range q.jobs {
		out = append(out, cmd)
	}
	q.jobs = make(map[JobPlay]struct{})
	metrics.RetryQueueDepth.WithLabelValues("job").Set(0)
	return out
}

// Depths reports the current queue sizes.
func (q *Queues) Depths() (pipelines, jobs int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pipelines), len(q.jobs)
}

// drainQueues executes all queued commands. Each command is taken off its
// queue before the call; failures become notifications and are dropped.
func (o *Orchestrator) drainQueues(ctx context.Context) {
	for _, cmd := range o.queues.takePipelines() {
		o.runPipelineReload(ctx, cmd)
	}
	for _, cmd := range o.queues.takeJobs() {
		o.runJobPlay(ctx, cmd)
	}
}

// runPipelineReload creates or re-runs one pipeline and merges the fresh
// result into the store by its natural key (project + ref).
func (o *Orchestrator) runPipelineReload(ctx context.Context, cmd PipelineReload) {
	var (
		p   models.Pipeline
		err error
	)
	if iid, ok := correlate.ParseMRRef(cmd.Ref); ok {
		p, err = o.client.RerunMRPipeline(ctx, cmd.ProjectID, iid)
	} else {
		p, err = o.client.CreatePipeline(ctx, cmd.ProjectID, cmd.Ref)
	}
	if err != nil {
		metrics.RetryCommands.WithLabelValues("pipeline", "error").Inc()
		logging.Err(err).Int("project_id", cmd.ProjectID).Str("ref", cmd.Ref).
			Msg("Pipeline reload failed")
		o.notes.Push(SeverityError, "Could not start pipeline for %s: %v", cmd.Ref, err)
		return
	}

	p.ProjectID = cmd.ProjectID
	if jobs, jerr := o.client.PipelineJobs(ctx, cmd.ProjectID, p.ID); jerr == nil {
		p.Jobs = jobs
	}
	o.store.UpdatePipeline(models.GroupScope(cmd.Group), p)
	metrics.RetryCommands.WithLabelValues("pipeline", "success").Inc()
	logging.Info().Int("project_id", cmd.ProjectID).Str("ref", cmd.Ref).
		Int("pipeline_id", p.ID).Msg("Pipeline reloaded")
}

// runJobPlay triggers one manual job, then refreshes the merge request
// pipeline it belongs to so the store reflects the new job state.
func (o *Orchestrator) runJobPlay(ctx context.Context, cmd JobPlay) {
	if _, err := o.client.PlayJob(ctx, cmd.ProjectID, cmd.JobID); err != nil {
		metrics.RetryCommands.WithLabelValues("job", "error").Inc()
		logging.Err(err).Int("project_id", cmd.ProjectID).Int("job_id", cmd.JobID).
			Msg("Job play failed")
		o.notes.Push(SeverityError, "Could not start job %d: %v", cmd.JobID, err)
		return
	}

	p, err := o.client.ProjectLatestPipeline(ctx, cmd.ProjectID, correlate.MRRef(cmd.MRIID))
	if err != nil || p == nil {
		// The job ran; the next short poll picks up the pipeline state.
		metrics.RetryCommands.WithLabelValues("job", "success").Inc()
		return
	}
	p.ProjectID = cmd.ProjectID
	if jobs, jerr := o.client.PipelineJobs(ctx, cmd.ProjectID, p.ID); jerr == nil {
		p.Jobs = jobs
	}
	o.store.UpdatePipeline(models.GroupScope(cmd.Group), *p)
	metrics.RetryCommands.WithLabelValues("job", "success").Inc()
}
