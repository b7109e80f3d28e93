// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

// Package correlate provides the read-time query functions joining the
// store's independently fetched collections. Joins are recomputed on every
// read and never persisted, so neither side can hold a stale reference
// after the other updates. Every function is total: unknown scopes yield
// empty results, never an error.
package correlate

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/Oxedos/devops-dashboard-sub000/internal/listener"
	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
	"github.com/Oxedos/devops-dashboard-sub000/internal/store"
)

// mrRefPattern is the fixed ref layout of merge request pipelines. The
// match is anchored so an iid can never match as a substring of another.
var mrRefPattern = regexp.MustCompile(`^refs/merge-requests/(\d+)/head$`)

// MRRef returns the pipeline ref for a merge request iid.
func MRRef(iid int) string {
	return fmt.Sprintf("refs/merge-requests/%d/head", iid)
}

// ParseMRRef extracts the merge request iid from a pipeline ref, or false
// when the ref is not a merge request ref.
func ParseMRRef(ref string) (int, bool) {
	m := mrRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return 0, false
	}
	iid, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return iid, true
}

// MRsByGroup returns the merge requests associated with a group.
func MRsByGroup(s *store.Store, group string) []models.MergeRequest {
	return s.MergeRequests().ByScope(models.GroupScope(group))
}

// ProjectsByGroup returns the projects associated with a group.
func ProjectsByGroup(s *store.Store, group string) []models.Project {
	return s.Projects().ByScope(models.GroupScope(group))
}

// PipelinesByGroup returns the pipelines associated with a group.
func PipelinesByGroup(s *store.Store, group string) []models.Pipeline {
	return s.Pipelines().ByScope(models.GroupScope(group))
}

// EventsByGroup returns the events associated with a group, newest first.
func EventsByGroup(s *store.Store, group string) []models.Event {
	events := s.Events().ByScope(models.GroupScope(group))
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events
}

// PipelineAssociatedMR matches a pipeline created from a merge request ref
// to its merge request. The match requires both the anchored ref pattern
// and the same project id, so iids colliding across projects never
// cross-match. Returns nil for branch pipelines and unknown iids.
func PipelineAssociatedMR(p models.Pipeline, mrs []models.MergeRequest) *models.MergeRequest {
	iid, ok := ParseMRRef(p.Ref)
	if !ok {
		return nil
	}
	for i := range mrs {
		if mrs[i].IID == iid && mrs[i].ProjectID == p.ProjectID {
			return &mrs[i]
		}
	}
	return nil
}

// MRFilter selects and filters a merge request view.
type MRFilter struct {
	// Group selects a group-scoped base collection. Ignored when
	// AssignedToMe or ReviewingOnly is set: the three base selections are
	// mutually exclusive.
	Group string

	// AssignedToMe selects the user-assigned collection.
	AssignedToMe bool

	// ReviewingOnly selects the user-as-reviewer collection.
	ReviewingOnly bool

	// IncludeWIP keeps work-in-progress merge requests.
	IncludeWIP bool

	// IncludeReady keeps non-WIP merge requests.
	IncludeReady bool
}

// FilterMergeRequests applies the mutually exclusive base selection, the
// WIP/ready filter, and a stable sort by update time (newest first).
func FilterMergeRequests(s *store.Store, f MRFilter) []models.MergeRequest {
	var base []models.MergeRequest
	switch {
	case f.ReviewingOnly:
		base = s.MergeRequests().ByScope(models.ReviewMRScope())
	case f.AssignedToMe:
		base = s.MergeRequests().ByScope(models.AssignedMRScope())
	default:
		base = s.MergeRequests().ByScope(models.GroupScope(f.Group))
	}

	filtered := base[:0:0]
	for _, mr := range base {
		if mr.WorkInProgress && !f.IncludeWIP {
			continue
		}
		if !mr.WorkInProgress && !f.IncludeReady {
			continue
		}
		filtered = append(filtered, mr)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].SortTime().After(filtered[j].SortTime())
	})
	return filtered
}

// PipelineView is a pipeline enriched for display. Enrichment fields exist
// only on query results, never in the store.
type PipelineView struct {
	models.Pipeline
	Title        string               `json:"title"`
	AssociatedMR *models.MergeRequest `json:"associated_mr,omitempty"`
}

// PipelinesFiltered returns the group's pipelines passing the merged status
// flags, enriched with their title and associated merge request, newest
// first.
func PipelinesFiltered(s *store.Store, group string, flags listener.PipelineFlags) []PipelineView {
	pipelines := PipelinesByGroup(s, group)
	mrs := MRsByGroup(s, group)

	views := make([]PipelineView, 0, len(pipelines))
	for _, p := range pipelines {
		if !flags.Allows(p.Status) {
			continue
		}
		view := PipelineView{Pipeline: p}
		if mr := PipelineAssociatedMR(p, mrs); mr != nil {
			view.AssociatedMR = mr
			view.Title = mr.Title
		} else {
			view.Title = p.Ref
		}
		views = append(views, view)
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views
}

// PipelinesForProject returns the pipeline view of a directly watched
// project, status-filtered and enriched like PipelinesFiltered. Merge
// request association uses every cached merge request of the project,
// whatever scope owns it.
func PipelinesForProject(s *store.Store, projectID int, flags listener.PipelineFlags) []PipelineView {
	pipelines := s.Pipelines().ByScope(models.ProjectScope(projectID))

	var mrs []models.MergeRequest
	for _, mr := range s.MergeRequests().All() {
		if mr.ProjectID == projectID {
			mrs = append(mrs, mr)
		}
	}

	views := make([]PipelineView, 0, len(pipelines))
	for _, p := range pipelines {
		if !flags.Allows(p.Status) {
			continue
		}
		view := PipelineView{Pipeline: p}
		if mr := PipelineAssociatedMR(p, mrs); mr != nil {
			view.AssociatedMR = mr
			view.Title = mr.Title
		} else {
			view.Title = p.Ref
		}
		views = append(views, view)
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views
}
