// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/Oxedos/devops-dashboard-sub000/internal/correlate"
	"github.com/Oxedos/devops-dashboard-sub000/internal/listener"
	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
	syncengine "github.com/Oxedos/devops-dashboard-sub000/internal/sync"
)

// Handler holds the dependencies of all HTTP handlers.
type Handler struct {
	orch     *syncengine.Orchestrator
	validate *validator.Validate
}

// NewHandler creates a handler backed by the given orchestrator.
func NewHandler(orch *syncengine.Orchestrator) *Handler {
	return &Handler{
		orch:     orch,
		validate: validator.New(),
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]string{"status": "ok"})
}

// HealthReady reports readiness: the engine must be configured and have
// completed at least one cycle (possibly restored from a snapshot).
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.orch.NotConfigured() {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured,
			"GitLab credentials rejected; reconfigure and reload")
		return
	}
	writeSuccess(w, map[string]any{
		"status":    "ok",
		"last_sync": h.orch.LastSyncTime(),
	})
}

// Status reports the engine state for the UI status bar.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	pipelines, jobs := h.orch.Queues().Depths()
	writeSuccess(w, map[string]any{
		"not_configured":  h.orch.NotConfigured(),
		"last_sync":       h.orch.LastSyncTime(),
		"queued_commands": pipelines + jobs,
	})
}

// User returns the authenticated user's profile.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.orch.Store().User())
}

// Groups returns the cached group catalog.
func (h *Handler) Groups(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.orch.Store().Groups().ByScope(models.CatalogScope()))
}

// GroupProjects returns the cached projects of one group.
func (h *Handler) GroupProjects(w http.ResponseWriter, r *http.Request) {
	group, ok := requireGroup(w, r)
	if !ok {
		return
	}
	writeSuccess(w, correlate.ProjectsByGroup(h.orch.Store(), group))
}

// GroupMergeRequests returns the cached open merge requests of one group,
// WIP-filtered via the wip and ready query parameters (both default true).
func (h *Handler) GroupMergeRequests(w http.ResponseWriter, r *http.Request) {
	group, ok := requireGroup(w, r)
	if !ok {
		return
	}
	f := correlate.MRFilter{
		Group:        group,
		IncludeWIP:   queryBool(r, "wip", true),
		IncludeReady: queryBool(r, "ready", true),
	}
	writeSuccess(w, correlate.FilterMergeRequests(h.orch.Store(), f))
}

// UserMergeRequests returns the user-centric merge request view. The role
// query parameter selects assigned (default) or reviewing.
func (h *Handler) UserMergeRequests(w http.ResponseWriter, r *http.Request) {
	f := correlate.MRFilter{
		IncludeWIP:   queryBool(r, "wip", true),
		IncludeReady: queryBool(r, "ready", true),
	}
	switch role := r.URL.Query().Get("role"); role {
	case "", "assigned":
		f.AssignedToMe = true
	case "reviewing":
		f.ReviewingOnly = true
	default:
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest,
			"role must be assigned or reviewing")
		return
	}
	writeSuccess(w, correlate.FilterMergeRequests(h.orch.Store(), f))
}

// GroupPipelines returns the pipeline view of one group or one directly
// watched project (?project=<id>): status-filtered per the listened flags
// and enriched with merge request titles.
func (h *Handler) GroupPipelines(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("project"); raw != "" {
		projectID, err := strconv.Atoi(raw)
		if err != nil || projectID <= 0 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "project must be a positive integer")
			return
		}
		flags, ok := h.orch.Scopes().PipelineProjects[projectID]
		if !ok {
			flags = listener.PipelineFlags{ForMRs: true, ForBranches: true}
		}
		writeSuccess(w, correlate.PipelinesForProject(h.orch.Store(), projectID, flags))
		return
	}

	group, gok := requireGroup(w, r)
	if !gok {
		return
	}
	flags, ok := h.orch.Scopes().PipelineGroups[group]
	if !ok {
		// No pipeline widget listens to this group; show everything cached.
		flags = listener.PipelineFlags{ForMRs: true, ForBranches: true}
	}
	writeSuccess(w, correlate.PipelinesFiltered(h.orch.Store(), group, flags))
}

// GroupEvents returns the cached activity feed of one group.
func (h *Handler) GroupEvents(w http.ResponseWriter, r *http.Request) {
	group, ok := requireGroup(w, r)
	if !ok {
		return
	}
	writeSuccess(w, correlate.EventsByGroup(h.orch.Store(), group))
}

// Widgets returns the active widget configuration.
func (h *Handler) Widgets(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.orch.Widgets())
}

// SetWidgets replaces the widget configuration and re-bootstraps for the
// new scope set. Scopes that lost their last widget are evicted.
func (h *Handler) SetWidgets(w http.ResponseWriter, r *http.Request) {
	var widgets []models.WidgetConfig
	if err := json.NewDecoder(r.Body).Decode(&widgets); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	for i, wc := range widgets {
		if err := wc.Validate(); err != nil {
			writeValidationError(w, "invalid widget configuration", map[string]any{
				"index": i,
				"error": err.Error(),
			})
			return
		}
	}
	h.orch.SetWidgets(r.Context(), widgets)
	writeAccepted(w, map[string]int{"widgets": len(widgets)})
}

// Reload triggers a full bootstrap. Rapid repeats coalesce into one run.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	h.orch.Reload(r.Context())
	writeAccepted(w, map[string]string{"status": "bootstrap triggered"})
}

// Notifications returns the buffered notifications, oldest first.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	notes := h.orch.Notifications().All()
	if notes == nil {
		notes = []syncengine.Notification{}
	}
	writeSuccess(w, notes)
}

// DismissNotification removes one notification by id.
func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	h.orch.Notifications().Dismiss(chi.URLParam(r, "id"))
	writeNoContent(w)
}

// ClearNotifications drops all buffered notifications.
func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	h.orch.Notifications().Clear()
	writeNoContent(w)
}

// ReloadPipeline enqueues a pipeline create-or-rerun command. The command
// runs on the next short poll; duplicates before the drain coalesce.
func (h *Handler) ReloadPipeline(w http.ResponseWriter, r *http.Request) {
	var cmd syncengine.PipelineReload
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(cmd); err != nil {
		writeValidationError(w, "invalid pipeline command", err.Error())
		return
	}
	h.orch.Queues().EnqueuePipelineReload(cmd)
	writeAccepted(w, cmd)
}

// PlayJob enqueues a manual-job trigger command.
func (h *Handler) PlayJob(w http.ResponseWriter, r *http.Request) {
	var cmd syncengine.JobPlay
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(cmd); err != nil {
		writeValidationError(w, "invalid job command", err.Error())
		return
	}
	h.orch.Queues().EnqueueJobPlay(cmd)
	writeAccepted(w, cmd)
}

// requireGroup extracts the mandatory ?group= parameter.
func requireGroup(w http.ResponseWriter, r *http.Request) (string, bool) {
	group := r.URL.Query().Get("group")
	if group == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "group query parameter is required")
		return "", false
	}
	return group, true
}

// queryBool parses a boolean query parameter with a default.
func queryBool(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
