// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

// Package store holds the normalized in-memory cache the sync engine writes
// and the correlator reads. Each entity type lives in its own Collection
// with reference-counted, scope-owned records; cross-entity relationships
// are never stored here, they are derived at query time.
package store

import (
	"strings"
	"sync"

	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
)

// Store is the set of normalized collections. It is mutated only by the
// orchestrator and the retry queue drain; all other access goes through the
// read-only query functions of the correlate package.
type Store struct {
	groups        *Collection[models.Group]
	projects      *Collection[models.Project]
	mergeRequests *Collection[models.MergeRequest]
	pipelines     *Collection[models.Pipeline]
	events        *Collection[models.Event]

	mu   sync.RWMutex
	user models.User
}

// New creates an empty store.
func New() *Store {
	return &Store{
		groups:        NewCollection("groups", func(g models.Group) int { return g.ID }),
		projects:      NewCollection("projects", func(p models.Project) int { return p.ID }),
		mergeRequests: NewCollection("merge_requests", func(mr models.MergeRequest) int { return mr.ID }),
		pipelines:     NewCollection("pipelines", func(p models.Pipeline) int { return p.ID }),
		events:        NewCollection("events", func(e models.Event) int { return e.ID }),
	}
}

// Groups returns the group collection.
func (s *Store) Groups() *Collection[models.Group] { return s.groups }

// Projects returns the project collection.
func (s *Store) Projects() *Collection[models.Project] { return s.projects }

// MergeRequests returns the merge request collection.
func (s *Store) MergeRequests() *Collection[models.MergeRequest] { return s.mergeRequests }

// Pipelines returns the pipeline collection.
func (s *Store) Pipelines() *Collection[models.Pipeline] { return s.pipelines }

// Events returns the event collection.
func (s *Store) Events() *Collection[models.Event] { return s.events }

// SetUser records the authenticated user's profile.
func (s *Store) SetUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// User returns the authenticated user's profile.
func (s *Store) User() models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// FindGroup looks a group up by its full path, case-insensitively.
func (s *Store) FindGroup(fullName string) (models.Group, bool) {
	return s.groups.Find(func(g models.Group) bool {
		return strings.EqualFold(g.FullName, fullName)
	})
}

// UpdatePipeline merges a single reloaded pipeline by its natural key
// (project id, ref). The previous pipeline for the same key is superseded
// even though its id differs.
func (s *Store) UpdatePipeline(scope models.Scope, p models.Pipeline) {
	s.pipelines.Update(scope, p, func(existing models.Pipeline) bool {
		return existing.ProjectID == p.ProjectID && existing.Ref == p.Ref
	})
}

// EvictScope removes the scope from every collection, garbage-collecting
// records it owned exclusively.
func (s *Store) EvictScope(scope models.Scope) {
	s.groups.EvictScope(scope)
	s.projects.EvictScope(scope)
	s.mergeRequests.EvictScope(scope)
	s.pipelines.EvictScope(scope)
	s.events.EvictScope(scope)
}
