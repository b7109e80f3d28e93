// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

// Package listener derives, from the currently configured widgets, the
// minimal set of upstream scopes the engine must keep warm. Multiple
// widgets watching the same scope count once; filter semantics for a shared
// scope are merged by boolean OR so the cache satisfies its most permissive
// consumer.
package listener

import (
	"sort"

	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
)

// PipelineFlags selects which pipelines are fetched for a group. Flags are
// unioned across all widgets watching the group.
type PipelineFlags struct {
	Failed   bool
	Running  bool
	Success  bool
	Pending  bool
	Canceled bool

	// ForMRs includes the latest pipeline per listened merge request ref.
	ForMRs bool
	// ForBranches includes the latest pipeline per branch.
	ForBranches bool
}

// Merge returns the boolean-OR union of two flag sets.
func (f PipelineFlags) Merge(other PipelineFlags) PipelineFlags {
	return PipelineFlags{
		Failed:      f.Failed || other.Failed,
		Running:     f.Running || other.Running,
		Success:     f.Success || other.Success,
		Pending:     f.Pending || other.Pending,
		Canceled:    f.Canceled || other.Canceled,
		ForMRs:      f.ForMRs || other.ForMRs,
		ForBranches: f.ForBranches || other.ForBranches,
	}
}

// Statuses returns the selected pipeline statuses. An empty selection means
// no status filter, i.e. everything is kept.
func (f PipelineFlags) Statuses() []string {
	var out []string
	if f.Failed {
		out = append(out, "failed")
	}
	if f.Running {
		out = append(out, "running")
	}
	if f.Success {
		out = append(out, "success")
	}
	if f.Pending {
		out = append(out, "pending")
	}
	if f.Canceled {
		out = append(out, "canceled")
	}
	return out
}

// Allows reports whether a pipeline status passes the merged filter.
func (f PipelineFlags) Allows(status string) bool {
	statuses := f.Statuses()
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Scopes is the deduplicated output of ComputeListenedScopes.
type Scopes struct {
	// MRGroups lists groups whose merge requests are fetched. User-relative
	// MR widgets do not appear here.
	MRGroups []string

	// PipelineGroups maps a group to its OR-merged pipeline flags.
	PipelineGroups map[string]PipelineFlags

	// PipelineProjects maps a directly watched project id to its OR-merged
	// pipeline flags. A project watched directly is fetched regardless of
	// group membership.
	PipelineProjects map[int]PipelineFlags

	// EventGroups lists groups whose activity events are fetched.
	EventGroups []string

	// UserMRs is true when any widget needs the user-relative merge request
	// collections (assigned / reviewing).
	UserMRs bool
}

// AllGroups returns the union of every group referenced by any scope set,
// sorted and deduplicated. These are the groups whose projects must be
// resolved.
func (s Scopes) AllGroups() []string {
	set := make(map[string]bool)
	for _, g := range s.MRGroups {
		set[g] = true
	}
	for g := range s.PipelineGroups {
		set[g] = true
	}
	for _, g := range s.EventGroups {
		set[g] = true
	}
	return sortedKeys(set)
}

// ProjectIDs returns the directly watched project ids, sorted.
func (s Scopes) ProjectIDs() []int {
	out := make([]int, 0, len(s.PipelineProjects))
	for id := range s.PipelineProjects {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// ListensGroup reports whether any scope set references the group.
func (s Scopes) ListensGroup(group string) bool {
	for _, g := range s.AllGroups() {
		if g == group {
			return true
		}
	}
	return false
}

// ComputeListenedScopes derives the listened scope sets from the widget
// configuration. Pure function; recompute on every configuration change.
func ComputeListenedScopes(widgets []models.WidgetConfig) Scopes {
	mrGroups := make(map[string]bool)
	eventGroups := make(map[string]bool)
	scopes := Scopes{
		PipelineGroups:   make(map[string]PipelineFlags),
		PipelineProjects: make(map[int]PipelineFlags),
	}

	for _, w := range widgets {
		switch w.Type {
		case models.WidgetMRTable:
			if w.MRTable != nil && w.MRTable.Group != "" {
				mrGroups[w.MRTable.Group] = true
			}
		case models.WidgetUserMRs:
			// User-relative fetch only; contributes no group scope.
			if w.UserMRs != nil {
				scopes.UserMRs = true
			}
		case models.WidgetPipelines:
			if w.Pipelines == nil {
				continue
			}
			p := w.Pipelines
			flags := PipelineFlags{
				Failed:      p.Failed,
				Running:     p.Running,
				Success:     p.Success,
				Pending:     p.Pending,
				Canceled:    p.Canceled,
				ForMRs:      p.DisplayPipelinesForMRs,
				ForBranches: p.DisplayPipelinesForBranches,
			}
			// A widget selecting neither source defaults to branch
			// pipelines; otherwise it would fetch nothing and blank the
			// cache every cycle.
			if !flags.ForMRs && !flags.ForBranches {
				flags.ForBranches = true
			}
			if p.ProjectID != 0 {
				scopes.PipelineProjects[p.ProjectID] = scopes.PipelineProjects[p.ProjectID].Merge(flags)
			}
			if p.Group == "" {
				continue
			}
			scopes.PipelineGroups[p.Group] = scopes.PipelineGroups[p.Group].Merge(flags)
			// Correlating MR pipelines needs the group's merge requests.
			if flags.ForMRs {
				mrGroups[p.Group] = true
			}
		case models.WidgetEvents:
			if w.Events != nil && w.Events.Group != "" {
				eventGroups[w.Events.Group] = true
			}
		}
	}

	scopes.MRGroups = sortedKeys(mrGroups)
	scopes.EventGroups = sortedKeys(eventGroups)
	return scopes
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
