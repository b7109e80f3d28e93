// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package sync

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// notificationLimit bounds the ring buffer; oldest entries are dropped.
const notificationLimit = 100

// Severity classifies a notification for UI presentation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a user-facing message produced by the sync engine.
// Partial-failure cycles surface here instead of aborting.
type Notification struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifications is a fixed-capacity FIFO buffer of notifications.
type Notifications struct {
	mu    sync.Mutex
	limit int
	items []Notification
}

// NewNotifications creates a buffer holding at most limit entries.
func NewNotifications(limit int) *Notifications {
	return &Notifications{limit: limit}
}

// Push appends a notification, evicting the oldest when full.
func (n *Notifications) Push(sev Severity, format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notification{
		ID:        uuid.NewString(),
		Severity:  sev,
		Message:   fmt.Sprintf(format, args...),
		CreatedAt: time.Now().UTC(),
	})
	if len(n.items) > n.limit {
		n.items = n.items[len(n.items)-n.limit:]
	}
}

// All returns a copy of the buffered notifications, oldest first.
func (n *Notifications) All() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.items))
	copy(out, n.items)
	return out
}

// Dismiss removes the notification with the given id. Unknown ids are a
// no-op.
func (n *Notifications) Dismiss(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, item := range n.items {
		if item.ID == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return
		}
	}
}

// Clear drops all buffered notifications.
func (n *Notifications) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = nil
}
