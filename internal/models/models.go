// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

// Package models defines the domain entities cached by the sync engine.
//
// All entities are plain value types keyed by their GitLab-global integer id.
// JSON tags follow the GitLab API v4 field names so the resource client can
// decode responses directly into these types.
package models

import "time"

// User is a GitLab user as embedded in merge requests and events.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// Group is a GitLab group or subgroup. Immutable once fetched; refreshed
// wholesale on the long poll.
type Group struct {
	ID       int    `json:"id"`
	FullName string `json:"full_path"`
	ParentID *int   `json:"parent_id"`
}

// Project is a GitLab project. A project can belong to several listened
// groups at once (subgroup membership is flattened server-side).
type Project struct {
	ID                int       `json:"id"`
	NameWithNamespace string    `json:"name_with_namespace"`
	Archived          bool      `json:"archived"`
	JobsEnabled       bool      `json:"jobs_enabled"`
	LastActivityAt    time.Time `json:"last_activity_at"`
	WebURL            string    `json:"web_url"`
}

// MergeRequest is a GitLab merge request. Identity is the global ID; lookups
// by (ProjectID, IID) and by ref string are needed for pipeline correlation.
type MergeRequest struct {
	ID             int       `json:"id"`
	IID            int       `json:"iid"`
	ProjectID      int       `json:"project_id"`
	Title          string    `json:"title"`
	State          string    `json:"state"`
	SourceBranch   string    `json:"source_branch"`
	TargetBranch   string    `json:"target_branch"`
	WorkInProgress bool      `json:"work_in_progress"`
	HasConflicts   bool      `json:"has_conflicts"`
	UserNotesCount int       `json:"user_notes_count"`
	Labels         []string  `json:"labels"`
	Author         User      `json:"author"`
	Assignees      []User    `json:"assignees"`
	Reviewers      []User    `json:"reviewers"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	WebURL         string    `json:"web_url"`
}

// SortTime returns the timestamp used for ordering merge requests:
// UpdatedAt when set, otherwise CreatedAt.
func (mr MergeRequest) SortTime() time.Time {
	if mr.UpdatedAt.IsZero() {
		return mr.CreatedAt
	}
	return mr.UpdatedAt
}

// Pipeline is a GitLab pipeline. Jobs are fetched as a sub-collection of the
// pipeline and are excluded from persistence snapshots; the associated merge
// request is never stored and is derived at query time.
type Pipeline struct {
	ID        int       `json:"id"`
	ProjectID int       `json:"project_id"`
	Ref       string    `json:"ref"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	WebURL    string    `json:"web_url"`
	Jobs      []Job     `json:"jobs,omitempty"`
}

// Job is a single pipeline job. Jobs are never cached independently.
type Job struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Stage        string `json:"stage"`
	AllowFailure bool   `json:"allow_failure"`
}

// Event is a GitLab activity event scoped to a project.
type Event struct {
	ID          int       `json:"id"`
	ProjectID   int       `json:"project_id"`
	ActionName  string    `json:"action_name"`
	TargetType  string    `json:"target_type"`
	TargetTitle string    `json:"target_title"`
	Author      User      `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
}
