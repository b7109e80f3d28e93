// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ScopeKind discriminates the unit of subscription a scope refers to.
type ScopeKind string

const (
	// ScopeGroup subscribes to a group by full path.
	ScopeGroup ScopeKind = "group"
	// ScopeProject subscribes to a single project by id.
	ScopeProject ScopeKind = "project"
	// ScopeUser subscribes to a user-relative merge request collection
	// ("assigned" or "review"). User scopes never contribute to group fetches.
	ScopeUser ScopeKind = "user"
	// ScopeCatalog owns wholesale-refreshed collections with no per-widget
	// listener, currently only the group catalog.
	ScopeCatalog ScopeKind = "catalog"
)

// Scope identifies a unit of subscription for which the engine keeps data
// fresh. Scopes are value types and usable as map keys.
type Scope struct {
	Kind      ScopeKind
	Group     string
	ProjectID int
	User      string
}

// GroupScope returns the scope for a group full path.
func GroupScope(fullName string) Scope {
	return Scope{Kind: ScopeGroup, Group: fullName}
}

// ProjectScope returns the scope for a single project id.
func ProjectScope(id int) Scope {
	return Scope{Kind: ScopeProject, ProjectID: id}
}

// AssignedMRScope is the scope holding merge requests assigned to the
// authenticated user.
func AssignedMRScope() Scope {
	return Scope{Kind: ScopeUser, User: "assigned"}
}

// ReviewMRScope is the scope holding merge requests the authenticated user
// is reviewing.
func ReviewMRScope() Scope {
	return Scope{Kind: ScopeUser, User: "review"}
}

// CatalogScope owns the wholesale-refreshed group catalog.
func CatalogScope() Scope {
	return Scope{Kind: ScopeCatalog, User: "all"}
}

// Key returns a stable string form usable as an association index key.
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeGroup:
		return "group/" + s.Group
	case ScopeProject:
		return fmt.Sprintf("project/%d", s.ProjectID)
	case ScopeUser:
		return "user/" + s.User
	case ScopeCatalog:
		return "catalog/" + s.User
	}
	return "invalid"
}

func (s Scope) String() string { return s.Key() }

// ParseScopeKey is the inverse of Scope.Key. Used when restoring a
// persisted snapshot.
func ParseScopeKey(key string) (Scope, error) {
	kind, rest, ok := strings.Cut(key, "/")
	if !ok {
		return Scope{}, fmt.Errorf("invalid scope key %q", key)
	}
	switch ScopeKind(kind) {
	case ScopeGroup:
		return GroupScope(rest), nil
	case ScopeProject:
		id, err := strconv.Atoi(rest)
		if err != nil {
			return Scope{}, fmt.Errorf("invalid project scope key %q", key)
		}
		return ProjectScope(id), nil
	case ScopeUser:
		return Scope{Kind: ScopeUser, User: rest}, nil
	case ScopeCatalog:
		return Scope{Kind: ScopeCatalog, User: rest}, nil
	}
	return Scope{}, fmt.Errorf("unknown scope kind in key %q", key)
}
