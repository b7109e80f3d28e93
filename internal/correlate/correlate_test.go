// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package correlate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oxedos/devops-dashboard-sub000/internal/listener"
	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
	"github.com/Oxedos/devops-dashboard-sub000/internal/store"
)

func TestMRRefRoundtrip(t *testing.T) {
	ref := MRRef(42)
	assert.Equal(t, "refs/merge-requests/42/head", ref)

	iid, ok := ParseMRRef(ref)
	require.True(t, ok)
	assert.Equal(t, 42, iid)
}

func TestParseMRRefRejectsNonMRRefs(t *testing.T) {
	tests := []struct {
		name string
		ref  string
	}{
		{"branch", "main"},
		{"branch containing pattern", "feature/refs/merge-requests/4/head"},
		{"trailing garbage", "refs/merge-requests/4/head/extra"},
		{"missing iid", "refs/merge-requests//head"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseMRRef(tt.ref)
			assert.False(t, ok)
		})
	}
}

func TestPipelineAssociatedMRAnchoredMatch(t *testing.T) {
	mrs := []models.MergeRequest{
		{ID: 1, IID: 4, ProjectID: 7, Title: "iid four"},
		{ID: 2, IID: 42, ProjectID: 7, Title: "iid forty-two"},
	}

	// IID 42 must not match the MR with IID 4 via prefix confusion.
	p := models.Pipeline{ID: 100, ProjectID: 7, Ref: MRRef(42)}
	got := PipelineAssociatedMR(p, mrs)
	require.NotNil(t, got)
	assert.Equal(t, 42, got.IID)

	p = models.Pipeline{ID: 101, ProjectID: 7, Ref: MRRef(4)}
	got = PipelineAssociatedMR(p, mrs)
	require.NotNil(t, got)
	assert.Equal(t, 4, got.IID)
}

func TestPipelineAssociatedMRRequiresSameProject(t *testing.T) {
	mrs := []models.MergeRequest{{ID: 1, IID: 4, ProjectID: 8}}

	p := models.Pipeline{ID: 100, ProjectID: 7, Ref: MRRef(4)}
	assert.Nil(t, PipelineAssociatedMR(p, mrs),
		"same iid in a different project must not correlate")
}

func TestPipelineAssociatedMRBranchPipeline(t *testing.T) {
	mrs := []models.MergeRequest{{ID: 1, IID: 4, ProjectID: 7}}
	p := models.Pipeline{ID: 100, ProjectID: 7, Ref: "main"}
	assert.Nil(t, PipelineAssociatedMR(p, mrs))
}

func TestFilterMergeRequestsWIP(t *testing.T) {
	s := store.New()
	group := models.GroupScope("platform")
	s.MergeRequests().Upsert(group, []models.MergeRequest{
		{ID: 1, Title: "ready", WorkInProgress: false},
		{ID: 2, Title: "draft", WorkInProgress: true},
	})

	got := FilterMergeRequests(s, MRFilter{Group: "platform", IncludeWIP: true, IncludeReady: true})
	assert.Len(t, got, 2)

	got = FilterMergeRequests(s, MRFilter{Group: "platform", IncludeReady: true})
	require.Len(t, got, 1)
	assert.Equal(t, "ready", got[0].Title)

	got = FilterMergeRequests(s, MRFilter{Group: "platform", IncludeWIP: true})
	require.Len(t, got, 1)
	assert.Equal(t, "draft", got[0].Title)
}

func TestFilterMergeRequestsSortsNewestFirst(t *testing.T) {
	s := store.New()
	group := models.GroupScope("platform")
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s.MergeRequests().Upsert(group, []models.MergeRequest{
		{ID: 1, Title: "old", UpdatedAt: base},
		{ID: 2, Title: "new", UpdatedAt: base.Add(time.Hour)},
		{ID: 3, Title: "created only", CreatedAt: base.Add(2 * time.Hour)},
	})

	got := FilterMergeRequests(s, MRFilter{Group: "platform", IncludeWIP: true, IncludeReady: true})
	require.Len(t, got, 3)
	assert.Equal(t, "created only", got[0].Title, "CreatedAt substitutes for missing UpdatedAt")
	assert.Equal(t, "new", got[1].Title)
	assert.Equal(t, "old", got[2].Title)
}

func TestFilterMergeRequestsUserScopes(t *testing.T) {
	s := store.New()
	s.MergeRequests().Upsert(models.AssignedMRScope(), []models.MergeRequest{{ID: 1, Title: "assigned"}})
	s.MergeRequests().Upsert(models.ReviewMRScope(), []models.MergeRequest{{ID: 2, Title: "reviewing"}})

	got := FilterMergeRequests(s, MRFilter{AssignedToMe: true, IncludeWIP: true, IncludeReady: true})
	require.Len(t, got, 1)
	assert.Equal(t, "assigned", got[0].Title)

	got = FilterMergeRequests(s, MRFilter{ReviewingOnly: true, IncludeWIP: true, IncludeReady: true})
	require.Len(t, got, 1)
	assert.Equal(t, "reviewing", got[0].Title)
}

func TestPipelinesFiltered(t *testing.T) {
	s := store.New()
	group := models.GroupScope("platform")
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	s.MergeRequests().Upsert(group, []models.MergeRequest{
		{ID: 1, IID: 9, ProjectID: 7, Title: "add retries"},
	})
	s.Pipelines().Upsert(group, []models.Pipeline{
		{ID: 100, ProjectID: 7, Ref: MRRef(9), Status: "failed", CreatedAt: base.Add(time.Hour)},
		{ID: 101, ProjectID: 7, Ref: "main", Status: "success", CreatedAt: base},
	})

	views := PipelinesFiltered(s, "platform", listener.PipelineFlags{})
	require.Len(t, views, 2)

	// Newest first; MR pipeline titled by its merge request.
	assert.Equal(t, 100, views[0].ID)
	assert.Equal(t, "add retries", views[0].Title)
	require.NotNil(t, views[0].AssociatedMR)
	assert.Equal(t, 9, views[0].AssociatedMR.IID)

	// Branch pipeline falls back to the ref as title.
	assert.Equal(t, "main", views[1].Title)
	assert.Nil(t, views[1].AssociatedMR)

	// Status selection filters.
	views = PipelinesFiltered(s, "platform", listener.PipelineFlags{Failed: true})
	require.Len(t, views, 1)
	assert.Equal(t, 100, views[0].ID)
}
