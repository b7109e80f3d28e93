// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oxedos/devops-dashboard-sub000/internal/config"
	"github.com/Oxedos/devops-dashboard-sub000/internal/correlate"
	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
	"github.com/Oxedos/devops-dashboard-sub000/internal/store"
	syncengine "github.com/Oxedos/devops-dashboard-sub000/internal/sync"
)

// stubAPI satisfies the sync engine's upstream interface with inert
// responses; handler tests seed the store directly.
type stubAPI struct{}

func (stubAPI) CurrentUser(context.Context) (models.User, error) { return models.User{ID: 1}, nil }
func (stubAPI) Groups(context.Context) ([]models.Group, error)   { return nil, nil }
func (stubAPI) GroupProjects(context.Context, string) ([]models.Project, error) {
	return nil, nil
}
func (stubAPI) Project(context.Context, int) (models.Project, error) {
	return models.Project{}, nil
}
func (stubAPI) GroupMergeRequests(context.Context, string) ([]models.MergeRequest, error) {
	return nil, nil
}
func (stubAPI) UserMergeRequests(context.Context, string) ([]models.MergeRequest, error) {
	return nil, nil
}
func (stubAPI) ProjectPipelines(context.Context, int) ([]models.Pipeline, error) {
	return nil, nil
}
func (stubAPI) ProjectLatestPipeline(context.Context, int, string) (*models.Pipeline, error) {
	return nil, nil
}
func (stubAPI) PipelineJobs(context.Context, int, int) ([]models.Job, error) { return nil, nil }
func (stubAPI) ProjectEvents(context.Context, int) ([]models.Event, error)   { return nil, nil }
func (stubAPI) CreatePipeline(context.Context, int, string) (models.Pipeline, error) {
	return models.Pipeline{}, nil
}
func (stubAPI) RerunMRPipeline(context.Context, int, int) (models.Pipeline, error) {
	return models.Pipeline{}, nil
}
func (stubAPI) PlayJob(context.Context, int, int) (models.Job, error) { return models.Job{}, nil }

func newTestServer(t *testing.T) (*syncengine.Orchestrator, http.Handler) {
	t.Helper()
	cfg := config.SyncConfig{
		ShortPollInterval: time.Minute,
		LongPollInterval:  time.Hour,
		RetryAttempts:     1,
		RetryDelay:        time.Millisecond,
	}
	orch := syncengine.New(cfg, stubAPI{}, store.New(), nil)
	router := NewRouter(config.ServerConfig{
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	}, NewHandler(orch))
	return orch, router.Setup()
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestHealthEndpoints(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, handler := newTestServer(t)
	rec := doRequest(t, handler, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestGroupMergeRequestsEndpoint(t *testing.T) {
	orch, handler := newTestServer(t)
	orch.Store().MergeRequests().Upsert(models.GroupScope("platform/ops"), []models.MergeRequest{
		{ID: 1, Title: "ready"},
		{ID: 2, Title: "draft", WorkInProgress: true},
	})

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/merge-requests?group=platform%2Fops", "")
	require.Equal(t, http.StatusOK, rec.Code)
	mrs := decodeData[[]models.MergeRequest](t, rec)
	assert.Len(t, mrs, 2)

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/merge-requests?group=platform%2Fops&wip=false", "")
	mrs = decodeData[[]models.MergeRequest](t, rec)
	require.Len(t, mrs, 1)
	assert.Equal(t, "ready", mrs[0].Title)
}

func TestGroupEndpointsRequireGroupParam(t *testing.T) {
	_, handler := newTestServer(t)
	for _, target := range []string{
		"/api/v1/merge-requests",
		"/api/v1/projects",
		"/api/v1/pipelines",
		"/api/v1/events",
	} {
		rec := doRequest(t, handler, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestProjectPipelinesEndpoint(t *testing.T) {
	orch, handler := newTestServer(t)
	orch.Store().Pipelines().Upsert(models.ProjectScope(42), []models.Pipeline{
		{ID: 600, ProjectID: 42, Ref: "main", Status: "failed"},
	})

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/pipelines?project=42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	views := decodeData[[]correlate.PipelineView](t, rec)
	require.Len(t, views, 1)
	assert.Equal(t, "main", views[0].Title)

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/pipelines?project=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserMergeRequestsEndpoint(t *testing.T) {
	orch, handler := newTestServer(t)
	orch.Store().MergeRequests().Upsert(models.AssignedMRScope(), []models.MergeRequest{{ID: 1, Title: "assigned"}})
	orch.Store().MergeRequests().Upsert(models.ReviewMRScope(), []models.MergeRequest{{ID: 2, Title: "reviewing"}})

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/user/merge-requests", "")
	mrs := decodeData[[]models.MergeRequest](t, rec)
	require.Len(t, mrs, 1)
	assert.Equal(t, "assigned", mrs[0].Title)

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/user/merge-requests?role=reviewing", "")
	mrs = decodeData[[]models.MergeRequest](t, rec)
	require.Len(t, mrs, 1)
	assert.Equal(t, "reviewing", mrs[0].Title)

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/user/merge-requests?role=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetWidgetsEndpoint(t *testing.T) {
	orch, handler := newTestServer(t)

	body := `[{"type": "mr_table", "mr_table": {"group": "platform", "include_ready": true}}]`
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/widgets", body)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, orch.Widgets(), 1)
	assert.Contains(t, orch.Scopes().MRGroups, "platform")

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/widgets", "")
	widgets := decodeData[[]models.WidgetConfig](t, rec)
	assert.Len(t, widgets, 1)
}

func TestSetWidgetsRejectsInvalid(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/widgets", `[{"type": "mr_table"}]`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/widgets", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPipelineReloadEndpointEnqueues(t *testing.T) {
	orch, handler := newTestServer(t)

	body := `{"group": "platform", "project_id": 7, "ref": "main"}`
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/pipelines/reload", body)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	pipelines, jobs := orch.Queues().Depths()
	assert.Equal(t, 1, pipelines)
	assert.Zero(t, jobs)

	// Missing fields fail validation.
	rec = doRequest(t, handler, http.MethodPost, "/api/v1/pipelines/reload", `{"group": "platform"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestJobPlayEndpointEnqueues(t *testing.T) {
	orch, handler := newTestServer(t)

	body := `{"group": "platform", "project_id": 7, "job_id": 300, "mr_iid": 3}`
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/jobs/play", body)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	_, jobs := orch.Queues().Depths()
	assert.Equal(t, 1, jobs)
}

func TestNotificationsEndpoints(t *testing.T) {
	orch, handler := newTestServer(t)
	orch.Notifications().Push(syncengine.SeverityError, "sync failed")

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/notifications", "")
	notes := decodeData[[]syncengine.Notification](t, rec)
	require.Len(t, notes, 1)

	rec = doRequest(t, handler, http.MethodDelete, "/api/v1/notifications/"+notes[0].ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/notifications", "")
	notes = decodeData[[]syncengine.Notification](t, rec)
	assert.Empty(t, notes)
}

func TestStatusEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeData[map[string]any](t, rec)
	assert.Equal(t, false, status["not_configured"])
}
