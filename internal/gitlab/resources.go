// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package gitlab

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
)

// CurrentUser fetches the authenticated user. Used as the bootstrap auth
// probe: a KindAuth failure here suppresses all further polling.
func (c *Client) CurrentUser(ctx context.Context) (models.User, error) {
	var u models.User
	err := c.get(ctx, "/user", "user", nil, &u)
	return u, err
}

// Groups fetches every group the token has at least reporter access to.
func (c *Client) Groups(ctx context.Context) ([]models.Group, error) {
	q := url.Values{}
	q.Set("min_access_level", "20")
	q.Set("all_available", "false")
	return getPaginated[models.Group](ctx, c, "/groups", "groups", q)
}

// GroupProjects fetches all projects of a group including subgroups.
func (c *Client) GroupProjects(ctx context.Context, group string) ([]models.Project, error) {
	q := url.Values{}
	q.Set("include_subgroups", "true")
	path := "/groups/" + url.PathEscape(group) + "/projects"
	return getPaginated[models.Project](ctx, c, path, "projects", q)
}

// Project fetches a single project by id. Used by the missing-projects
// reconciliation pass.
func (c *Client) Project(ctx context.Context, id int) (models.Project, error) {
	var p models.Project
	err := c.get(ctx, "/projects/"+strconv.Itoa(id), "project", nil, &p)
	return p, err
}

// GroupMergeRequests fetches the open merge requests of a group.
func (c *Client) GroupMergeRequests(ctx context.Context, group string) ([]models.MergeRequest, error) {
	q := url.Values{}
	q.Set("state", "opened")
	path := "/groups/" + url.PathEscape(group) + "/merge_requests"
	return getPaginated[models.MergeRequest](ctx, c, path, "merge_requests", q)
}

// UserMergeRequests fetches the authenticated user's open merge requests.
// scope is "assigned_to_me" or "reviewer".
func (c *Client) UserMergeRequests(ctx context.Context, scope string) ([]models.MergeRequest, error) {
	q := url.Values{}
	q.Set("state", "opened")
	q.Set("scope", scope)
	return getPaginated[models.MergeRequest](ctx, c, "/merge_requests", "merge_requests", q)
}

// ProjectPipelines fetches the most recent pipelines of a project (one
// page, newest first). Reduction to latest-per-ref happens in the caller.
func (c *Client) ProjectPipelines(ctx context.Context, projectID int) ([]models.Pipeline, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("order_by", "updated_at")
	q.Set("sort", "desc")

	var pipelines []models.Pipeline
	path := fmt.Sprintf("/projects/%d/pipelines", projectID)
	if err := c.get(ctx, path, "pipelines", q, &pipelines); err != nil {
		return nil, err
	}
	// Older API versions omit project_id from the list payload.
	for i := range pipelines {
		pipelines[i].ProjectID = projectID
	}
	return pipelines, nil
}

// ProjectLatestPipeline fetches the newest pipeline for a specific ref, or
// nil when the ref has none.
func (c *Client) ProjectLatestPipeline(ctx context.Context, projectID int, ref string) (*models.Pipeline, error) {
	q := url.Values{}
	q.Set("ref", ref)
	q.Set("per_page", "1")
	q.Set("order_by", "id")
	q.Set("sort", "desc")

	var pipelines []models.Pipeline
	path := fmt.Sprintf("/projects/%d/pipelines", projectID)
	if err := c.get(ctx, path, "pipelines", q, &pipelines); err != nil {
		return nil, err
	}
	if len(pipelines) == 0 {
		return nil, nil
	}
	p := pipelines[0]
	p.ProjectID = projectID
	return &p, nil
}

// PipelineJobs fetches the jobs of a pipeline.
func (c *Client) PipelineJobs(ctx context.Context, projectID, pipelineID int) ([]models.Job, error) {
	path := fmt.Sprintf("/projects/%d/pipelines/%d/jobs", projectID, pipelineID)
	return getPaginated[models.Job](ctx, c, path, "jobs", nil)
}

// ProjectEvents fetches the recent activity events of a project.
func (c *Client) ProjectEvents(ctx context.Context, projectID int) ([]models.Event, error) {
	var events []models.Event
	path := fmt.Sprintf("/projects/%d/events", projectID)
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.perPage))
	if err := c.get(ctx, path, "events", q, &events); err != nil {
		return nil, err
	}
	for i := range events {
		events[i].ProjectID = projectID
	}
	return events, nil
}

// CreatePipeline starts a new pipeline for a branch ref.
func (c *Client) CreatePipeline(ctx context.Context, projectID int, ref string) (models.Pipeline, error) {
	q := url.Values{}
	q.Set("ref", ref)
	var p models.Pipeline
	path := fmt.Sprintf("/projects/%d/pipeline", projectID)
	if err := c.post(ctx, path, "create_pipeline", q, &p); err != nil {
		return models.Pipeline{}, err
	}
	p.ProjectID = projectID
	return p, nil
}

// RerunMRPipeline starts a new merge request pipeline. The new pipeline has
// a fresh id for the same logical ref.
func (c *Client) RerunMRPipeline(ctx context.Context, projectID, mrIID int) (models.Pipeline, error) {
	var p models.Pipeline
	path := fmt.Sprintf("/projects/%d/merge_requests/%d/pipelines", projectID, mrIID)
	if err := c.post(ctx, path, "rerun_mr_pipeline", nil, &p); err != nil {
		return models.Pipeline{}, err
	}
	p.ProjectID = projectID
	return p, nil
}

// PlayJob runs a manual job. Playing a job can change downstream job
// statuses, so callers reload the whole pipeline afterwards.
func (c *Client) PlayJob(ctx context.Context, projectID, jobID int) (models.Job, error) {
	var j models.Job
	path := fmt.Sprintf("/projects/%d/jobs/%d/play", projectID, jobID)
	err := c.post(ctx, path, "play_job", nil, &j)
	return j, err
}
