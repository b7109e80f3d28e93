// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package sync

import (
	"context"
	"sync"

	"github.com/Oxedos/devops-dashboard-sub000/internal/correlate"
	"github.com/Oxedos/devops-dashboard-sub000/internal/listener"
	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
)

// runParallel executes tasks concurrently and waits for all of them.
func runParallel(tasks ...func()) {
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for _, task := range tasks {
		go func(fn func()) {
			defer wg.Done()
			fn()
		}(task)
	}
	wg.Wait()
}

// syncGroups refreshes the group catalog wholesale.
func (o *Orchestrator) syncGroups(ctx context.Context) {
	groups, ok := fetch(ctx, o, "groups", o.client.Groups)
	if !ok {
		return
	}
	o.store.Groups().Upsert(models.CatalogScope(), groups)
}

// syncUser refreshes the authenticated user's profile.
func (o *Orchestrator) syncUser(ctx context.Context) {
	err := retryWithBackoff(ctx, o.cfg.RetryAttempts, o.cfg.RetryDelay, func() error {
		user, uerr := o.client.CurrentUser(ctx)
		if uerr != nil {
			return uerr
		}
		o.store.SetUser(user)
		return nil
	})
	if err != nil {
		o.handleScopeError(err, "user")
	}
}

// syncGroupProjects refreshes the project membership of one group.
func (o *Orchestrator) syncGroupProjects(ctx context.Context, group string) {
	projects, ok := fetch(ctx, o, "projects", func(ctx context.Context) ([]models.Project, error) {
		return o.client.GroupProjects(ctx, group)
	})
	if !ok {
		return
	}
	o.store.Projects().Upsert(models.GroupScope(group), projects)
}

// syncGroupMRs refreshes the open merge requests of one group.
func (o *Orchestrator) syncGroupMRs(ctx context.Context, group string) {
	mrs, ok := fetch(ctx, o, "merge_requests", func(ctx context.Context) ([]models.MergeRequest, error) {
		return o.client.GroupMergeRequests(ctx, group)
	})
	if !ok {
		return
	}
	o.store.MergeRequests().Upsert(models.GroupScope(group), mrs)
}

// syncUserMRs refreshes the user-centric merge request scopes.
func (o *Orchestrator) syncUserMRs(ctx context.Context) {
	assigned, ok := fetch(ctx, o, "merge_requests", func(ctx context.Context) ([]models.MergeRequest, error) {
		return o.client.UserMergeRequests(ctx, "assigned_to_me")
	})
	if ok {
		o.store.MergeRequests().Upsert(models.AssignedMRScope(), assigned)
	}

	reviewing, ok := fetch(ctx, o, "merge_requests", func(ctx context.Context) ([]models.MergeRequest, error) {
		return o.client.UserMergeRequests(ctx, "reviewer")
	})
	if ok {
		o.store.MergeRequests().Upsert(models.ReviewMRScope(), reviewing)
	}
}

// syncDirectProject refreshes the metadata of a directly watched project.
func (o *Orchestrator) syncDirectProject(ctx context.Context, projectID int) {
	var p models.Project
	err := retryWithBackoff(ctx, o.cfg.RetryAttempts, o.cfg.RetryDelay, func() error {
		var ferr error
		p, ferr = o.client.Project(ctx, projectID)
		return ferr
	})
	if err != nil {
		o.handleScopeError(err, "projects")
		return
	}
	o.store.Projects().Upsert(models.ProjectScope(projectID), []models.Project{p})
}

// syncProjectPipelinesDirect refreshes the pipelines of a directly watched
// project. MR head pipelines are resolved against whatever merge requests of
// the project are cached under any scope.
func (o *Orchestrator) syncProjectPipelinesDirect(ctx context.Context, projectID int, flags listener.PipelineFlags) {
	project, ok := o.store.Projects().Get(projectID)
	if !ok {
		return
	}
	if project.Archived || !project.JobsEnabled {
		return
	}

	var mrs []models.MergeRequest
	for _, mr := range o.store.MergeRequests().All() {
		if mr.ProjectID == projectID {
			mrs = append(mrs, mr)
		}
	}

	pipelines, ok := o.fetchProjectPipelines(ctx, project, mrs, flags)
	if !ok {
		return
	}
	o.store.Pipelines().Upsert(models.ProjectScope(projectID), pipelines)
}

// syncGroupEvents refreshes the activity feed of one group by fanning out
// over its projects. The replacement is all-or-nothing: one project's
// failure keeps the whole group's stale events rather than silently
// evicting that project's share.
func (o *Orchestrator) syncGroupEvents(ctx context.Context, group string) {
	scope := models.GroupScope(group)
	var events []models.Event
	for _, p := range o.store.Projects().ByScope(scope) {
		page, ok := fetch(ctx, o, "events", func(ctx context.Context) ([]models.Event, error) {
			return o.client.ProjectEvents(ctx, p.ID)
		})
		if !ok {
			return
		}
		events = append(events, page...)
	}
	o.store.Events().Upsert(scope, events)
}

// syncGroupPipelines refreshes the pipelines of one group. Per project two
// sources are merged: the newest pipeline per branch ref, and the head
// pipeline of each cached open merge request. Which sources run and which
// statuses survive is driven by the union of the group's widget flags.
func (o *Orchestrator) syncGroupPipelines(ctx context.Context, group string, flags listener.PipelineFlags) {
	scope := models.GroupScope(group)
	mrsByProject := make(map[int][]models.MergeRequest)
	for _, mr := range o.store.MergeRequests().ByScope(scope) {
		mrsByProject[mr.ProjectID] = append(mrsByProject[mr.ProjectID], mr)
	}

	var (
		mu        sync.Mutex
		pipelines []models.Pipeline
		failed    bool
	)
	var wg sync.WaitGroup
	for _, p := range o.store.Projects().ByScope(scope) {
		if p.Archived || !p.JobsEnabled {
			continue
		}
		wg.Add(1)
		go func(project models.Project) {
			defer wg.Done()
			got, ok := o.fetchProjectPipelines(ctx, project, mrsByProject[project.ID], flags)
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				failed = true
				return
			}
			pipelines = append(pipelines, got...)
		}(p)
	}
	wg.Wait()

	if failed {
		return
	}
	o.store.Pipelines().Upsert(scope, pipelines)
}

// fetchProjectPipelines collects one project's pipelines from the branch
// and merge request sources, merged by id and filtered by status.
func (o *Orchestrator) fetchProjectPipelines(ctx context.Context, project models.Project, mrs []models.MergeRequest, flags listener.PipelineFlags) ([]models.Pipeline, bool) {
	byID := make(map[int]models.Pipeline)

	if flags.ForBranches {
		page, ok := fetch(ctx, o, "pipelines", func(ctx context.Context) ([]models.Pipeline, error) {
			return o.client.ProjectPipelines(ctx, project.ID)
		})
		if !ok {
			return nil, false
		}
		for _, p := range latestPerRef(page) {
			if _, isMR := correlate.ParseMRRef(p.Ref); isMR {
				continue
			}
			byID[p.ID] = p
		}
	}

	if flags.ForMRs {
		for _, mr := range mrs {
			p, err := o.client.ProjectLatestPipeline(ctx, project.ID, correlate.MRRef(mr.IID))
			if err != nil {
				o.handleScopeError(err, "pipelines")
				return nil, false
			}
			if p == nil {
				continue
			}
			p.ProjectID = project.ID
			byID[p.ID] = *p
		}
	}

	var out []models.Pipeline
	for _, p := range byID {
		if !flags.Allows(p.Status) {
			continue
		}
		if jobs, err := o.client.PipelineJobs(ctx, project.ID, p.ID); err == nil {
			p.Jobs = jobs
		}
		out = append(out, p)
	}
	return out, true
}

// latestPerRef reduces a newest-first pipeline page to the most recent
// pipeline of each ref.
func latestPerRef(pipelines []models.Pipeline) []models.Pipeline {
	seen := make(map[string]struct{})
	var out []models.Pipeline
	for _, p := range pipelines {
		if _, ok := seen[p.Ref]; ok {
			continue
		}
		seen[p.Ref] = struct{}{}
		out = append(out, p)
	}
	return out
}
