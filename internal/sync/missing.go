// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package sync

import (
	"context"
	"sync"
	"time"

	"github.com/Oxedos/devops-dashboard-sub000/internal/logging"
	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
)

// missingProjects is a bounded negative cache for project lookups that
// keep failing. A project id the user has no access to would otherwise be
// re-fetched every short poll forever.
type missingProjects struct {
	mu          sync.Mutex
	maxAttempts int
	backoff     time.Duration
	failed      map[int]missEntry
}

type missEntry struct {
	attempts int
	lastTry  time.Time
}

func newMissingProjects(maxAttempts int, backoff time.Duration) *missingProjects {
	return &missingProjects{
		maxAttempts: maxAttempts,
		backoff:     backoff,
		failed:      make(map[int]missEntry),
	}
}

// shouldTry reports whether the project is eligible for another lookup.
func (m *missingProjects) shouldTry(id int, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.failed[id]
	if !ok {
		return true
	}
	if e.attempts >= m.maxAttempts {
		return false
	}
	return now.Sub(e.lastTry) >= m.backoff
}

func (m *missingProjects) recordFailure(id int, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.failed[id]
	e.attempts++
	e.lastTry = now
	m.failed[id] = e
}

func (m *missingProjects) recordSuccess(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failed, id)
}

// reset clears the negative cache, e.g. after a configuration change that
// may have granted new access.
func (m *missingProjects) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = make(map[int]missEntry)
}

// fillMissingProjects resolves projects referenced by cached merge
// requests but absent from the project collection. User-scoped merge
// requests routinely point at projects outside all listened groups; their
// names and URLs are still needed to render the rows.
func (o *Orchestrator) fillMissingProjects(ctx context.Context) {
	now := time.Now()
	for _, id := range o.missingProjectIDs() {
		if !o.missing.shouldTry(id, now) {
			continue
		}
		p, err := o.client.Project(ctx, id)
		if err != nil {
			o.missing.recordFailure(id, now)
			logging.Debug().Int("project_id", id).Err(err).Msg("Missing project lookup failed")
			continue
		}
		o.missing.recordSuccess(id)
		o.addProjectToOwningScopes(id, p)
	}
}

// missingProjectIDs lists project ids referenced by merge requests with no
// matching project record.
func (o *Orchestrator) missingProjectIDs() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, mr := range o.store.MergeRequests().All() {
		if mr.ProjectID == 0 {
			continue
		}
		if _, ok := seen[mr.ProjectID]; ok {
			continue
		}
		seen[mr.ProjectID] = struct{}{}
		if _, ok := o.store.Projects().Get(mr.ProjectID); !ok {
			out = append(out, mr.ProjectID)
		}
	}
	return out
}

// addProjectToOwningScopes appends a repaired project to every scope whose
// merge requests reference it, without disturbing the authoritative
// membership of those scopes.
func (o *Orchestrator) addProjectToOwningScopes(projectID int, p models.Project) {
	scopes := make(map[models.Scope]struct{})
	for _, mr := range o.store.MergeRequests().All() {
		if mr.ProjectID != projectID {
			continue
		}
		for _, s := range o.store.MergeRequests().ScopesOf(mr.ID) {
			scopes[s] = struct{}{}
		}
	}
	for s := range scopes {
		o.store.Projects().Add(s, p)
	}
}
