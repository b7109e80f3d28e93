// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oxedos/devops-dashboard-sub000/internal/config"
	"github.com/Oxedos/devops-dashboard-sub000/internal/gitlab"
	"github.com/Oxedos/devops-dashboard-sub000/internal/listener"
	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
	"github.com/Oxedos/devops-dashboard-sub000/internal/store"
)

// fakeAPI is an in-memory API implementation with per-method overrides.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	user      models.User
	userErr   error
	groups    []models.Group
	projects  map[string][]models.Project
	mrs       map[string][]models.MergeRequest
	userMRs   map[string][]models.MergeRequest
	pipelines map[int][]models.Pipeline
	latest    map[string]*models.Pipeline
	jobs      map[int][]models.Job
	events    map[int][]models.Event

	createErr    error
	created      models.Pipeline
	rerun        models.Pipeline
	playErr      error
	projectErr   error
	projectsByID map[int]models.Project
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls:        make(map[string]int),
		user:         models.User{ID: 1, Username: "dev"},
		projects:     make(map[string][]models.Project),
		mrs:          make(map[string][]models.MergeRequest),
		userMRs:      make(map[string][]models.MergeRequest),
		pipelines:    make(map[int][]models.Pipeline),
		latest:       make(map[string]*models.Pipeline),
		jobs:         make(map[int][]models.Job),
		events:       make(map[int][]models.Event),
		projectsByID: make(map[int]models.Project),
	}
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeAPI) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) CurrentUser(ctx context.Context) (models.User, error) {
	f.record("CurrentUser")
	return f.user, f.userErr
}

func (f *fakeAPI) Groups(ctx context.Context) ([]models.Group, error) {
	f.record("Groups")
	return f.groups, nil
}

func (f *fakeAPI) GroupProjects(ctx context.Context, group string) ([]models.Project, error) {
	f.record("GroupProjects")
	return f.projects[group], nil
}

func (f *fakeAPI) Project(ctx context.Context, id int) (models.Project, error) {
	f.record("Project")
	if f.projectErr != nil {
		return models.Project{}, f.projectErr
	}
	p, ok := f.projectsByID[id]
	if !ok {
		return models.Project{}, &gitlab.Error{Kind: gitlab.KindUpstream, Op: "project", Status: 404}
	}
	return p, nil
}

func (f *fakeAPI) GroupMergeRequests(ctx context.Context, group string) ([]models.MergeRequest, error) {
	f.record("GroupMergeRequests")
	return f.mrs[group], nil
}

func (f *fakeAPI) UserMergeRequests(ctx context.Context, scope string) ([]models.MergeRequest, error) {
	f.record("UserMergeRequests")
	return f.userMRs[scope], nil
}

func (f *fakeAPI) ProjectPipelines(ctx context.Context, projectID int) ([]models.Pipeline, error) {
	f.record("ProjectPipelines")
	return f.pipelines[projectID], nil
}

func (f *fakeAPI) ProjectLatestPipeline(ctx context.Context, projectID int, ref string) (*models.Pipeline, error) {
	f.record("ProjectLatestPipeline")
	return f.latest[ref], nil
}

func (f *fakeAPI) PipelineJobs(ctx context.Context, projectID, pipelineID int) ([]models.Job, error) {
	f.record("PipelineJobs")
	return f.jobs[pipelineID], nil
}

func (f *fakeAPI) ProjectEvents(ctx context.Context, projectID int) ([]models.Event, error) {
	f.record("ProjectEvents")
	return f.events[projectID], nil
}

func (f *fakeAPI) CreatePipeline(ctx context.Context, projectID int, ref string) (models.Pipeline, error) {
	f.record("CreatePipeline")
	return f.created, f.createErr
}

func (f *fakeAPI) RerunMRPipeline(ctx context.Context, projectID, mrIID int) (models.Pipeline, error) {
	f.record("RerunMRPipeline")
	return f.rerun, f.createErr
}

func (f *fakeAPI) PlayJob(ctx context.Context, projectID, jobID int) (models.Job, error) {
	f.record("PlayJob")
	return models.Job{ID: jobID, Status: "pending"}, f.playErr
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		ShortPollInterval:         time.Minute,
		LongPollInterval:          time.Hour,
		RetryAttempts:             1,
		RetryDelay:                time.Millisecond,
		MissingProjectMaxAttempts: 2,
		MissingProjectBackoff:     0,
	}
}

func newTestOrchestrator(api *fakeAPI) *Orchestrator {
	return New(testSyncConfig(), api, store.New(), nil)
}

func dashboardWidgets() []models.WidgetConfig {
	return []models.WidgetConfig{
		{Type: models.WidgetMRTable, MRTable: &models.MRTableConfig{Group: "platform"}},
		{Type: models.WidgetPipelines, Pipelines: &models.PipelineWidgetConfig{
			Group:                       "platform",
			DisplayPipelinesForMRs:      true,
			DisplayPipelinesForBranches: true,
		}},
		{Type: models.WidgetEvents, Events: &models.EventsWidgetConfig{Group: "platform"}},
		{Type: models.WidgetUserMRs, UserMRs: &models.UserMRConfig{}},
	}
}

func setScopes(o *Orchestrator, widgets []models.WidgetConfig) {
	o.mu.Lock()
	o.widgets = widgets
	o.scopes = listener.ComputeListenedScopes(widgets)
	o.mu.Unlock()
}

func TestBootstrapPopulatesStore(t *testing.T) {
	api := newFakeAPI()
	api.groups = []models.Group{{ID: 1, FullName: "platform"}}
	api.projects["platform"] = []models.Project{
		{ID: 7, NameWithNamespace: "platform / svc", JobsEnabled: true},
	}
	api.mrs["platform"] = []models.MergeRequest{
		{ID: 100, IID: 3, ProjectID: 7, Title: "fix race"},
	}
	api.userMRs["assigned_to_me"] = []models.MergeRequest{{ID: 100, IID: 3, ProjectID: 7}}
	api.pipelines[7] = []models.Pipeline{
		{ID: 200, ProjectID: 7, Ref: "main", Status: "success"},
	}
	api.latest["refs/merge-requests/3/head"] = &models.Pipeline{
		ID: 201, Ref: "refs/merge-requests/3/head", Status: "running",
	}
	api.jobs[201] = []models.Job{{ID: 300, Name: "build"}}
	api.events[7] = []models.Event{{ID: 400, ProjectID: 7, ActionName: "pushed"}}

	o := newTestOrchestrator(api)
	setScopes(o, dashboardWidgets())
	o.runBootstrap(context.Background())

	st := o.Store()
	group := models.GroupScope("platform")
	assert.Equal(t, "dev", st.User().Username)
	assert.False(t, o.NotConfigured())
	assert.Len(t, st.Groups().ByScope(models.CatalogScope()), 1)
	assert.Len(t, st.Projects().ByScope(group), 1)
	assert.Len(t, st.MergeRequests().ByScope(group), 1)
	assert.Len(t, st.MergeRequests().ByScope(models.AssignedMRScope()), 1)
	assert.Len(t, st.Events().ByScope(group), 1)

	pipelines := st.Pipelines().ByScope(group)
	require.Len(t, pipelines, 2)
	mrPipeline, ok := st.Pipelines().Get(201)
	require.True(t, ok)
	assert.Equal(t, 7, mrPipeline.ProjectID)
	assert.Len(t, mrPipeline.Jobs, 1)
	assert.False(t, o.LastSyncTime().IsZero())
}

func TestBootstrapHaltsOnAuthFailure(t *testing.T) {
	api := newFakeAPI()
	api.userErr = &gitlab.Error{Kind: gitlab.KindAuth, Op: "user", Status: 401}
	api.groups = []models.Group{{ID: 1, FullName: "platform"}}

	o := newTestOrchestrator(api)
	setScopes(o, dashboardWidgets())
	o.runBootstrap(context.Background())

	assert.True(t, o.NotConfigured())
	assert.Equal(t, 0, api.callCount("Groups"), "auth failure halts the bootstrap")
	notes := o.Notifications().All()
	require.NotEmpty(t, notes)
	assert.Equal(t, SeverityError, notes[0].Severity)
}

func TestBootstrapContinuesOnUnreachableProbe(t *testing.T) {
	api := newFakeAPI()
	api.userErr = &gitlab.Error{Kind: gitlab.KindNetwork, Op: "user", Err: errors.New("connection refused")}
	api.groups = []models.Group{{ID: 1, FullName: "platform"}}
	api.projects["platform"] = []models.Project{{ID: 7, JobsEnabled: true}}

	o := newTestOrchestrator(api)
	setScopes(o, dashboardWidgets())
	o.runBootstrap(context.Background())

	// A network failure on the probe is scope-local, not a halt.
	assert.False(t, o.NotConfigured())
	assert.Equal(t, 1, api.callCount("Groups"))
	assert.Len(t, o.Store().Projects().ByScope(models.GroupScope("platform")), 1)
}

func TestBootstrapSkipsArchivedAndJobless(t *testing.T) {
	api := newFakeAPI()
	api.groups = []models.Group{{ID: 1, FullName: "platform"}}
	api.projects["platform"] = []models.Project{
		{ID: 7, JobsEnabled: true},
		{ID: 8, Archived: true, JobsEnabled: true},
		{ID: 9, JobsEnabled: false},
	}
	api.pipelines[7] = []models.Pipeline{{ID: 200, ProjectID: 7, Ref: "main", Status: "success"}}
	api.pipelines[8] = []models.Pipeline{{ID: 201, ProjectID: 8, Ref: "main", Status: "success"}}
	api.pipelines[9] = []models.Pipeline{{ID: 202, ProjectID: 9, Ref: "main", Status: "success"}}

	o := newTestOrchestrator(api)
	setScopes(o, []models.WidgetConfig{
		{Type: models.WidgetPipelines, Pipelines: &models.PipelineWidgetConfig{
			Group:                       "platform",
			DisplayPipelinesForBranches: true,
		}},
	})
	o.runBootstrap(context.Background())

	pipelines := o.Store().Pipelines().ByScope(models.GroupScope("platform"))
	require.Len(t, pipelines, 1)
	assert.Equal(t, 200, pipelines[0].ID)
}

func TestBootstrapSyncsDirectProjects(t *testing.T) {
	api := newFakeAPI()
	api.projectsByID[42] = models.Project{ID: 42, NameWithNamespace: "solo / repo", JobsEnabled: true}
	api.pipelines[42] = []models.Pipeline{
		{ID: 600, ProjectID: 42, Ref: "main", Status: "failed"},
		{ID: 601, ProjectID: 42, Ref: "main", Status: "success"},
	}

	o := newTestOrchestrator(api)
	setScopes(o, []models.WidgetConfig{
		{Type: models.WidgetPipelines, Pipelines: &models.PipelineWidgetConfig{
			ProjectID:                   42,
			DisplayPipelinesForBranches: true,
		}},
	})
	o.runBootstrap(context.Background())

	scope := models.ProjectScope(42)
	projects := o.Store().Projects().ByScope(scope)
	require.Len(t, projects, 1)
	assert.Equal(t, "solo / repo", projects[0].NameWithNamespace)

	pipelines := o.Store().Pipelines().ByScope(scope)
	require.Len(t, pipelines, 1, "one newest pipeline per ref")
	assert.Equal(t, 600, pipelines[0].ID)
}

func TestSetWidgetsEvictsDroppedScopes(t *testing.T) {
	api := newFakeAPI()
	o := newTestOrchestrator(api)
	st := o.Store()

	setScopes(o, dashboardWidgets())
	st.MergeRequests().Upsert(models.GroupScope("platform"), []models.MergeRequest{{ID: 1}})
	st.MergeRequests().Upsert(models.AssignedMRScope(), []models.MergeRequest{{ID: 2}})

	// Drop every widget; both scopes lose their last listener.
	o.SetWidgets(context.Background(), nil)
	o.wg.Wait()

	assert.Equal(t, 0, st.MergeRequests().Len())
}

func TestShortPollDrainsQueues(t *testing.T) {
	api := newFakeAPI()
	api.created = models.Pipeline{ID: 500, Ref: "main", Status: "pending"}

	o := newTestOrchestrator(api)
	setScopes(o, nil)

	cmd := PipelineReload{Group: "platform", ProjectID: 7, Ref: "main"}
	o.Queues().EnqueuePipelineReload(cmd)
	o.Queues().EnqueuePipelineReload(cmd) // duplicate coalesces

	o.shortPoll(context.Background())

	assert.Equal(t, 1, api.callCount("CreatePipeline"), "duplicate commands collapse to one call")
	p, jobs := o.Queues().Depths()
	assert.Zero(t, p)
	assert.Zero(t, jobs)

	got, ok := o.Store().Pipelines().Get(500)
	require.True(t, ok)
	assert.Equal(t, "pending", got.Status)
}

func TestFailedCommandIsNotRequeued(t *testing.T) {
	api := newFakeAPI()
	api.createErr = errors.New("upstream exploded")

	o := newTestOrchestrator(api)
	setScopes(o, nil)
	o.Queues().EnqueuePipelineReload(PipelineReload{Group: "g", ProjectID: 7, Ref: "main"})

	o.shortPoll(context.Background())
	o.shortPoll(context.Background())

	assert.Equal(t, 1, api.callCount("CreatePipeline"),
		"a failing command runs once and is dropped")
	require.NotEmpty(t, o.Notifications().All())
}

func TestPipelineReloadUsesMRRerunForMRRefs(t *testing.T) {
	api := newFakeAPI()
	api.rerun = models.Pipeline{ID: 501, Ref: "refs/merge-requests/3/head", Status: "pending"}

	o := newTestOrchestrator(api)
	o.Queues().EnqueuePipelineReload(PipelineReload{
		Group: "g", ProjectID: 7, Ref: "refs/merge-requests/3/head",
	})
	o.drainQueues(context.Background())

	assert.Equal(t, 1, api.callCount("RerunMRPipeline"))
	assert.Equal(t, 0, api.callCount("CreatePipeline"))
}

func TestMissingProjectsRepair(t *testing.T) {
	api := newFakeAPI()
	api.projectsByID[99] = models.Project{ID: 99, NameWithNamespace: "other / repo"}

	o := newTestOrchestrator(api)
	st := o.Store()
	st.MergeRequests().Upsert(models.AssignedMRScope(), []models.MergeRequest{
		{ID: 1, IID: 2, ProjectID: 99},
	})

	o.fillMissingProjects(context.Background())

	got, ok := st.Projects().Get(99)
	require.True(t, ok)
	assert.Equal(t, "other / repo", got.NameWithNamespace)
	assert.Contains(t, st.Projects().ScopesOf(99), models.AssignedMRScope())
}

func TestMissingProjectsNegativeCacheBounds(t *testing.T) {
	api := newFakeAPI()
	api.projectErr = &gitlab.Error{Kind: gitlab.KindUpstream, Op: "project", Status: 404}

	o := newTestOrchestrator(api)
	o.Store().MergeRequests().Upsert(models.AssignedMRScope(), []models.MergeRequest{
		{ID: 1, IID: 2, ProjectID: 99},
	})

	for i := 0; i < 5; i++ {
		o.fillMissingProjects(context.Background())
	}

	assert.Equal(t, 2, api.callCount("Project"),
		"lookups stop after the configured attempt budget")
}

func TestTriggerBootstrapCoalesces(t *testing.T) {
	api := newFakeAPI()
	o := newTestOrchestrator(api)

	require.True(t, o.bootstrapping.CompareAndSwap(false, true))
	o.triggerBootstrap(context.Background())
	o.bootstrapping.Store(false)

	assert.Equal(t, 0, api.callCount("CurrentUser"),
		"trigger during an in-flight bootstrap is coalesced")
}
