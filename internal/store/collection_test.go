// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
)

func newTestCollection() *Collection[models.MergeRequest] {
	return NewCollection("test_mrs", func(mr models.MergeRequest) int { return mr.ID })
}

func mr(id int, title string) models.MergeRequest {
	return models.MergeRequest{ID: id, Title: title}
}

func TestCollectionUpsertIdempotent(t *testing.T) {
	c := newTestCollection()
	scope := models.GroupScope("platform")
	records := []models.MergeRequest{mr(1, "a"), mr(2, "b")}

	c.Upsert(scope, records)
	c.Upsert(scope, records)

	assert.Equal(t, 2, c.Len())
	assert.Len(t, c.ByScope(scope), 2)
}

func TestCollectionUpsertMergesByID(t *testing.T) {
	c := newTestCollection()
	scope := models.GroupScope("platform")

	c.Upsert(scope, []models.MergeRequest{mr(1, "old title")})
	c.Upsert(scope, []models.MergeRequest{mr(1, "new title")})

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "new title", got.Title)
	assert.Equal(t, 1, c.Len())
}

func TestCollectionUpsertEvictsDeparted(t *testing.T) {
	c := newTestCollection()
	scope := models.GroupScope("platform")

	c.Upsert(scope, []models.MergeRequest{mr(1, "a"), mr(2, "b"), mr(3, "c")})
	c.Upsert(scope, []models.MergeRequest{mr(2, "b")})

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(1)
	assert.False(t, ok)
	_, ok = c.Get(3)
	assert.False(t, ok)
}

func TestCollectionSharedRecordSurvivesOneScopeReplacement(t *testing.T) {
	c := newTestCollection()
	group := models.GroupScope("platform")
	assigned := models.AssignedMRScope()

	// Record 1 is owned by both scopes.
	c.Upsert(group, []models.MergeRequest{mr(1, "shared"), mr(2, "group only")})
	c.Upsert(assigned, []models.MergeRequest{mr(1, "shared")})

	// The group refresh no longer contains record 1; the assigned scope
	// still references it, so it must survive.
	c.Upsert(group, []models.MergeRequest{mr(2, "group only")})

	_, ok := c.Get(1)
	assert.True(t, ok, "record referenced by another scope must not be evicted")
	assert.Len(t, c.ByScope(assigned), 1)
	assert.Len(t, c.ByScope(group), 1)

	// Dropping the last reference evicts it.
	c.Upsert(assigned, []models.MergeRequest{})
	_, ok = c.Get(1)
	assert.False(t, ok)
}

func TestCollectionUpsertNilClearsScope(t *testing.T) {
	c := newTestCollection()
	scope := models.GroupScope("platform")

	c.Upsert(scope, []models.MergeRequest{mr(1, "a")})
	c.Upsert(scope, nil)

	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.ByScope(scope))
}

func TestCollectionEvictScope(t *testing.T) {
	c := newTestCollection()
	groupA := models.GroupScope("a")
	groupB := models.GroupScope("b")

	c.Upsert(groupA, []models.MergeRequest{mr(1, "shared"), mr(2, "a only")})
	c.Upsert(groupB, []models.MergeRequest{mr(1, "shared")})

	c.EvictScope(groupA)

	_, ok := c.Get(2)
	assert.False(t, ok, "record owned only by evicted scope must go")
	_, ok = c.Get(1)
	assert.True(t, ok, "record still referenced by another scope must stay")
}

func TestCollectionUpdateSupersedesByNaturalKey(t *testing.T) {
	c := NewCollection("test_pipelines", func(p models.Pipeline) int { return p.ID })
	scope := models.GroupScope("platform")

	old := models.Pipeline{ID: 10, ProjectID: 7, Ref: "main", Status: "failed"}
	c.Upsert(scope, []models.Pipeline{old})

	// A rerun produces a brand new pipeline id for the same (project, ref).
	fresh := models.Pipeline{ID: 11, ProjectID: 7, Ref: "main", Status: "running"}
	c.Update(scope, fresh, func(p models.Pipeline) bool {
		return p.ProjectID == 7 && p.Ref == "main"
	})

	_, ok := c.Get(10)
	assert.False(t, ok, "superseded pipeline must be removed")
	got, ok := c.Get(11)
	require.True(t, ok)
	assert.Equal(t, "running", got.Status)
	assert.Len(t, c.ByScope(scope), 1)
}

func TestCollectionUpdateDedupesScopeAlreadyListingNewID(t *testing.T) {
	c := NewCollection("test_pipelines", func(p models.Pipeline) int { return p.ID })
	scope := models.GroupScope("platform")

	// Both pipelines share the (project, ref) natural key and the scope
	// already lists the fresh one.
	c.Upsert(scope, []models.Pipeline{
		{ID: 10, ProjectID: 7, Ref: "main", Status: "failed"},
		{ID: 12, ProjectID: 7, Ref: "main", Status: "running"},
	})

	c.Update(scope, models.Pipeline{ID: 12, ProjectID: 7, Ref: "main", Status: "success"}, func(p models.Pipeline) bool {
		return p.ProjectID == 7 && p.Ref == "main"
	})

	got := c.ByScope(scope)
	require.Len(t, got, 1, "scope must list the surviving pipeline exactly once")
	assert.Equal(t, 12, got[0].ID)
	assert.Equal(t, "success", got[0].Status)
	_, ok := c.Get(10)
	assert.False(t, ok, "superseded pipeline must be removed")
}

func TestCollectionUpdateWithoutMatchAppends(t *testing.T) {
	c := NewCollection("test_pipelines", func(p models.Pipeline) int { return p.ID })
	scope := models.GroupScope("platform")

	fresh := models.Pipeline{ID: 11, ProjectID: 7, Ref: "main"}
	c.Update(scope, fresh, func(models.Pipeline) bool { return false })

	assert.Len(t, c.ByScope(scope), 1)
}

func TestCollectionAddAppendsToScope(t *testing.T) {
	c := NewCollection("test_projects", func(p models.Project) int { return p.ID })
	scope := models.GroupScope("platform")

	c.Upsert(scope, []models.Project{{ID: 1}})
	c.Add(scope, models.Project{ID: 2})

	assert.Len(t, c.ByScope(scope), 2)
}

func TestCollectionScopesOf(t *testing.T) {
	c := newTestCollection()
	groupA := models.GroupScope("a")
	assigned := models.AssignedMRScope()

	c.Upsert(groupA, []models.MergeRequest{mr(1, "x")})
	c.Upsert(assigned, []models.MergeRequest{mr(1, "x")})

	scopes := c.ScopesOf(1)
	assert.Len(t, scopes, 2)
	assert.Contains(t, scopes, groupA)
	assert.Contains(t, scopes, assigned)
}

func TestCollectionByScopeReturnsCopies(t *testing.T) {
	c := newTestCollection()
	scope := models.GroupScope("platform")
	c.Upsert(scope, []models.MergeRequest{mr(1, "original")})

	got := c.ByScope(scope)
	got[0].Title = "mutated"

	stored, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "original", stored.Title)
}
