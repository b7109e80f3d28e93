// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package store

import (
	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
)

// Snapshot is the durable form of the store for session continuity.
// High-churn data is excluded to bound storage size: events are not
// persisted at all and pipeline job lists are stripped.
type Snapshot struct {
	User          models.User                             `json:"user"`
	Groups        CollectionSnapshot[models.Group]        `json:"groups"`
	Projects      CollectionSnapshot[models.Project]      `json:"projects"`
	MergeRequests CollectionSnapshot[models.MergeRequest] `json:"merge_requests"`
	Pipelines     CollectionSnapshot[models.Pipeline]     `json:"pipelines"`
}

// CollectionSnapshot captures one collection: records in insertion order
// plus the association index keyed by Scope.Key().
type CollectionSnapshot[T any] struct {
	Records []T              `json:"records"`
	Index   map[string][]int `json:"index"`
}

// Snapshot captures the current store state.
func (s *Store) Snapshot() Snapshot {
	pipelines := s.pipelines.snapshot()
	for i := range pipelines.Records {
		pipelines.Records[i].Jobs = nil
	}
	return Snapshot{
		User:          s.User(),
		Groups:        s.groups.snapshot(),
		Projects:      s.projects.snapshot(),
		MergeRequests: s.mergeRequests.snapshot(),
		Pipelines:     pipelines,
	}
}

// Restore replaces the store contents with a previously captured snapshot.
// Index entries with unparseable scope keys are dropped, and any orphaned
// records they exclusively owned vanish with them.
func (s *Store) Restore(snap Snapshot) {
	s.SetUser(snap.User)
	s.groups.restore(snap.Groups)
	s.projects.restore(snap.Projects)
	s.mergeRequests.restore(snap.MergeRequests)
	s.pipelines.restore(snap.Pipelines)
}

func (c *Collection[T]) snapshot() CollectionSnapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := CollectionSnapshot[T]{
		Records: make([]T, 0, len(c.order)),
		Index:   make(map[string][]int, len(c.index)),
	}
	for _, id := range c.order {
		if rec, ok := c.records[id]; ok {
			snap.Records = append(snap.Records, rec)
		}
	}
	for scope, ids := range c.index {
		snap.Index[scope.Key()] = append([]int(nil), ids...)
	}
	return snap
}

func (c *Collection[T]) restore(snap CollectionSnapshot[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = make(map[int]T, len(snap.Records))
	c.order = c.order[:0]
	c.index = make(map[models.Scope][]int, len(snap.Index))

	for _, rec := range snap.Records {
		id := c.idOf(rec)
		if id == 0 {
			continue
		}
		if _, exists := c.records[id]; !exists {
			c.order = append(c.order, id)
		}
		c.records[id] = rec
	}
	for key, ids := range snap.Index {
		scope, err := models.ParseScopeKey(key)
		if err != nil {
			continue
		}
		kept := make([]int, 0, len(ids))
		for _, id := range ids {
			if _, ok := c.records[id]; ok {
				kept = append(kept, id)
			}
		}
		c.index[scope] = kept
	}

	c.reportSize()
}
