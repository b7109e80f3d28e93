// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package sync

import (
	"context"
	"time"

	"github.com/Oxedos/devops-dashboard-sub000/internal/gitlab"
	"github.com/Oxedos/devops-dashboard-sub000/internal/logging"
	"github.com/Oxedos/devops-dashboard-sub000/internal/metrics"
)

// retryWithBackoff retries fn with doubling delay. Auth and malformed
// errors are terminal: retrying cannot fix a bad token or a bad payload.
func retryWithBackoff(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if gitlab.IsAuth(err) || gitlab.IsMalformed(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

// fetch wraps an upstream call with retry and scope-error accounting.
// A nil return with ok=false means the scope failed this cycle; the
// caller keeps the stale records and moves on.
func fetch[T any](ctx context.Context, o *Orchestrator, resource string, fn func(context.Context) ([]T, error)) ([]T, bool) {
	var out []T
	err := retryWithBackoff(ctx, o.cfg.RetryAttempts, o.cfg.RetryDelay, func() error {
		var ferr error
		out, ferr = fn(ctx)
		return ferr
	})
	if err != nil {
		o.handleScopeError(err, resource)
		return nil, false
	}
	return out, true
}

// handleScopeError records a scope-local failure. An auth failure is
// global: it suppresses polling until the user reconfigures and reloads.
func (o *Orchestrator) handleScopeError(err error, resource string) {
	metrics.SyncScopeErrors.WithLabelValues(resource).Inc()
	if gitlab.IsAuth(err) {
		o.setNotConfigured(true)
		o.notes.Push(SeverityError, "GitLab rejected the configured token; update credentials and reload")
		logging.Err(err).Str("resource", resource).Msg("Authentication failed; polling suppressed")
		return
	}
	logging.Err(err).Str("resource", resource).Msg("Scope fetch failed; keeping stale records")
}

func (o *Orchestrator) setNotConfigured(v bool) {
	o.mu.Lock()
	o.notConfigured = v
	o.mu.Unlock()
}

// persist saves a snapshot of the store, best-effort.
func (o *Orchestrator) persist(ctx context.Context) {
	if o.saver == nil {
		return
	}
	if err := o.saver.Save(ctx, o.store.Snapshot()); err != nil {
		metrics.SnapshotSaves.WithLabelValues("error").Inc()
		logging.Err(err).Msg("Snapshot persist failed")
		return
	}
	metrics.SnapshotSaves.WithLabelValues("success").Inc()
}
