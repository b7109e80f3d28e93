// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package store

import (
	"sync"

	"github.com/Oxedos/devops-dashboard-sub000/internal/metrics"
	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
)

// Collection is an id-keyed record set with per-scope association indexes.
//
// The primary collection holds every record exactly once, merge-by-id with
// last-write-wins. Each association index entry maps a listened scope to the
// ids currently valid for that scope and is authoritative: replacing a
// scope's entry evicts records that were owned exclusively by that scope and
// are no longer listed. A record with no remaining owning scope is removed
// from the primary collection.
//
// Readers receive copies, so reads concurrent with a scope update never
// observe a half-replaced scope.
type Collection[T any] struct {
	mu      sync.RWMutex
	name    string
	idOf    func(T) int
	records map[int]T
	order   []int
	index   map[models.Scope][]int
}

// NewCollection creates an empty collection. name labels the store size
// metric; idOf extracts the record's stable identifier.
func NewCollection[T any](name string, idOf func(T) int) *Collection[T] {
	return &Collection[T]{
		name:    name,
		idOf:    idOf,
		records: make(map[int]T),
		index:   make(map[models.Scope][]int),
	}
}

// Upsert merges records into the primary collection (replace-if-present-
// else-append by id) and wholesale-replaces the scope's association entry.
// Records previously owned exclusively by this scope that are no longer
// present are evicted. Upsert is idempotent for identical input.
//
// A nil records slice is the defensive path for an invalid upstream
// payload: the scope's association is set to empty (and exclusively owned
// records pruned) rather than left stale.
func (c *Collection[T]) Upsert(scope models.Scope, records []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	newIDs := make([]int, 0, len(records))
	seen := make(map[int]bool, len(records))
	for _, rec := range records {
		id := c.idOf(rec)
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		if _, exists := c.records[id]; !exists {
			c.order = append(c.order, id)
		}
		c.records[id] = rec
		newIDs = append(newIDs, id)
	}

	oldIDs := c.index[scope]
	c.index[scope] = newIDs
	for _, id := range oldIDs {
		if !seen[id] && !c.ownedByAnyLocked(id) {
			c.removeLocked(id)
		}
	}

	c.reportSize()
}

// EvictScope removes the scope's association entry and every record owned
// exclusively by it. The caller decides when a scope has lost its last
// listener; the collection only enforces cross-scope sharing.
func (c *Collection[T]) EvictScope(scope models.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.index[scope]
	delete(c.index, scope)
	for _, id := range ids {
		if !c.ownedByAnyLocked(id) {
			c.removeLocked(id)
		}
	}

	c.reportSize()
}

// Update replaces a single record matched by a natural key instead of its
// id. When match finds an existing record with a different id, that record
// is superseded: the old id is removed and every scope that listed it now
// lists the new id. The record is additionally associated with scope.
//
// This is how reloaded pipelines are merged: rerunning produces a new
// pipeline id for the same logical (project, ref) key.
func (c *Collection[T]) Update(scope models.Scope, rec T, match func(T) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	newID := c.idOf(rec)
	if newID == 0 {
		return
	}

	oldID := 0
	for id, existing := range c.records {
		if id != newID && match(existing) {
			oldID = id
			break
		}
	}

	if _, exists := c.records[newID]; !exists {
		if oldID != 0 {
			// Keep the superseded record's position.
			for i, id := range c.order {
				if id == oldID {
					c.order[i] = newID
					break
				}
			}
		} else {
			c.order = append(c.order, newID)
		}
	} else if oldID != 0 {
		c.removeFromOrderLocked(oldID)
	}
	c.records[newID] = rec

	if oldID != 0 {
		delete(c.records, oldID)
		for s, ids := range c.index {
			if !containsID(ids, oldID) {
				continue
			}
			// Substitute the old id in place, unless the scope already
			// lists the new id; then the old entry is simply dropped so
			// the scope never lists it twice.
			hasNew := containsID(ids, newID)
			replaced := make([]int, 0, len(ids))
			for _, id := range ids {
				switch {
				case id == oldID && hasNew:
					continue
				case id == oldID:
					replaced = append(replaced, newID)
				default:
					replaced = append(replaced, id)
				}
			}
			c.index[s] = replaced
		}
	}

	if !containsID(c.index[scope], newID) {
		c.index[scope] = append(append([]int(nil), c.index[scope]...), newID)
	}

	c.reportSize()
}

// Add inserts or replaces a single record and appends its id to the
// scope's association entry without replacing the rest of the entry. Used
// by the missing-projects reconciliation, which repairs one record at a
// time inside an otherwise authoritative scope.
func (c *Collection[T]) Add(scope models.Scope, rec T) {
	c.Update(scope, rec, func(T) bool { return false })
}

// ByScope returns copies of the records associated with scope, in the
// scope's association order. Unknown scopes yield an empty slice.
func (c *Collection[T]) ByScope(scope models.Scope) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.index[scope]
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if rec, ok := c.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// All returns copies of every record in insertion order.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		if rec, ok := c.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// Get returns the record with the given id.
func (c *Collection[T]) Get(id int) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[id]
	return rec, ok
}

// Find returns the first record satisfying pred, in insertion order.
func (c *Collection[T]) Find(pred func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range c.order {
		if rec, ok := c.records[id]; ok && pred(rec) {
			return rec, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the number of records in the primary collection.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// ScopesOf returns every scope whose association entry lists id.
func (c *Collection[T]) ScopesOf(id int) []models.Scope {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Scope
	for s, ids := range c.index {
		if containsID(ids, id) {
			out = append(out, s)
		}
	}
	return out
}

// Scopes returns the scopes currently holding an association entry.
func (c *Collection[T]) Scopes() []models.Scope {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Scope, 0, len(c.index))
	for s := range c.index {
		out = append(out, s)
	}
	return out
}

// ownedByAnyLocked reports whether any scope's index lists id.
func (c *Collection[T]) ownedByAnyLocked(id int) bool {
	for _, ids := range c.index {
		if containsID(ids, id) {
			return true
		}
	}
	return false
}

func (c *Collection[T]) removeLocked(id int) {
	delete(c.records, id)
	c.removeFromOrderLocked(id)
}

func (c *Collection[T]) removeFromOrderLocked(id int) {
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Collection[T]) reportSize() {
	metrics.StoreRecords.WithLabelValues(c.name).Set(float64(len(c.records)))
}

func containsID(ids []int, id int) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
