// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package models

import "fmt"

// WidgetType tags a widget configuration variant.
type WidgetType string

const (
	// WidgetMRTable lists merge requests for a group.
	WidgetMRTable WidgetType = "mr_table"
	// WidgetUserMRs lists merge requests assigned to (or reviewed by) the
	// authenticated user. Contributes a user-scoped fetch, not a group scope.
	WidgetUserMRs WidgetType = "user_mrs"
	// WidgetPipelines shows pipeline status for a group's projects.
	WidgetPipelines WidgetType = "pipelines"
	// WidgetEvents shows recent activity events for a group.
	WidgetEvents WidgetType = "events"
)

// WidgetConfig is a tagged union with one variant per widget type. Exactly
// the variant matching Type should be set; the listener registry switches
// exhaustively on the tag instead of probing optional fields.
type WidgetConfig struct {
	Type      WidgetType            `json:"type" yaml:"type" validate:"required,oneof=mr_table user_mrs pipelines events"`
	MRTable   *MRTableConfig        `json:"mr_table,omitempty" yaml:"mr_table,omitempty"`
	UserMRs   *UserMRConfig         `json:"user_mrs,omitempty" yaml:"user_mrs,omitempty"`
	Pipelines *PipelineWidgetConfig `json:"pipelines,omitempty" yaml:"pipelines,omitempty"`
	Events    *EventsWidgetConfig   `json:"events,omitempty" yaml:"events,omitempty"`
}

// MRTableConfig configures a merge request table over a group.
type MRTableConfig struct {
	Group        string `json:"group" yaml:"group" validate:"required"`
	IncludeWIP   bool   `json:"include_wip" yaml:"include_wip"`
	IncludeReady bool   `json:"include_ready" yaml:"include_ready"`
}

// UserMRConfig configures the user-relative merge request widget.
type UserMRConfig struct {
	IncludeWIP    bool `json:"include_wip" yaml:"include_wip"`
	ReviewingOnly bool `json:"reviewing_only" yaml:"reviewing_only"`
}

// PipelineWidgetConfig configures a pipeline status widget. It watches
// either a whole group or a single project directly. Status flags select
// which pipeline statuses are fetched; flags from all widgets watching the
// same group or project are merged by boolean OR.
type PipelineWidgetConfig struct {
	Group                       string `json:"group,omitempty" yaml:"group,omitempty"`
	ProjectID                   int    `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Failed                      bool   `json:"failed" yaml:"failed"`
	Running                     bool   `json:"running" yaml:"running"`
	Success                     bool   `json:"success" yaml:"success"`
	Pending                     bool   `json:"pending" yaml:"pending"`
	Canceled                    bool   `json:"canceled" yaml:"canceled"`
	DisplayPipelinesForMRs      bool   `json:"display_pipelines_for_mrs" yaml:"display_pipelines_for_mrs"`
	DisplayPipelinesForBranches bool   `json:"display_pipelines_for_branches" yaml:"display_pipelines_for_branches"`
}

// EventsWidgetConfig configures an activity feed widget over a group.
type EventsWidgetConfig struct {
	Group     string `json:"group" yaml:"group" validate:"required"`
	MaxEvents int    `json:"max_events" yaml:"max_events"`
}

// Validate checks that the variant matching the type tag is present.
func (w WidgetConfig) Validate() error {
	switch w.Type {
	case WidgetMRTable:
		if w.MRTable == nil {
			return fmt.Errorf("widget %q: missing mr_table settings", w.Type)
		}
	case WidgetUserMRs:
		if w.UserMRs == nil {
			return fmt.Errorf("widget %q: missing user_mrs settings", w.Type)
		}
	case WidgetPipelines:
		if w.Pipelines == nil {
			return fmt.Errorf("widget %q: missing pipelines settings", w.Type)
		}
		if w.Pipelines.Group == "" && w.Pipelines.ProjectID == 0 {
			return fmt.Errorf("widget %q: group or project_id is required", w.Type)
		}
	case WidgetEvents:
		if w.Events == nil {
			return fmt.Errorf("widget %q: missing events settings", w.Type)
		}
	default:
		return fmt.Errorf("unknown widget type %q", w.Type)
	}
	return nil
}
