// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
	"github.com/Oxedos/devops-dashboard-sub000/internal/store"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoadRoundtrip(t *testing.T) {
	ps := newMemStore(t)
	ctx := context.Background()

	src := store.New()
	group := models.GroupScope("platform")
	src.SetUser(models.User{ID: 1, Username: "dev"})
	src.MergeRequests().Upsert(group, []models.MergeRequest{{ID: 100, Title: "fix"}})

	require.NoError(t, ps.Save(ctx, src.Snapshot()))

	snap, ok, err := ps.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	restored := store.New()
	restored.Restore(snap)
	assert.Equal(t, "dev", restored.User().Username)
	assert.Len(t, restored.MergeRequests().ByScope(group), 1)
}

func TestLoadEmpty(t *testing.T) {
	ps := newMemStore(t)

	_, ok, err := ps.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveReplacesPrevious(t *testing.T) {
	ps := newMemStore(t)
	ctx := context.Background()

	first := store.New()
	first.SetUser(models.User{Username: "first"})
	require.NoError(t, ps.Save(ctx, first.Snapshot()))

	second := store.New()
	second.SetUser(models.User{Username: "second"})
	require.NoError(t, ps.Save(ctx, second.Snapshot()))

	snap, ok, err := ps.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", snap.User.Username)
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	ps, err := Open(dir, "custom-key")
	require.NoError(t, err)

	ctx := context.Background()
	src := store.New()
	src.SetUser(models.User{Username: "persisted"})
	require.NoError(t, ps.Save(ctx, src.Snapshot()))
	require.NoError(t, ps.Close())

	reopened, err := Open(dir, "custom-key")
	require.NoError(t, err)
	defer reopened.Close()

	snap, ok, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "persisted", snap.User.Username)
}
