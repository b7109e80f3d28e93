// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Oxedos/devops-dashboard-sub000/internal/config"
)

// Router wires the HTTP surface.
type Router struct {
	cfg     config.ServerConfig
	handler *Handler
}

// NewRouter creates a router for the given handler.
func NewRouter(cfg config.ServerConfig, handler *Handler) *Router {
	return &Router{cfg: cfg, handler: handler}
}

// Setup builds the route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health and metrics stay outside the rate limiter so monitoring
	// cannot starve itself out.
	r.Get("/healthz", router.handler.HealthLive)
	r.Get("/readyz", router.handler.HealthReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(router.cfg.RateLimitReqs, router.cfg.RateLimitWindow))

		r.Get("/status", router.handler.Status)
		r.Get("/user", router.handler.User)
		r.Get("/user/merge-requests", router.handler.UserMergeRequests)
		r.Get("/groups", router.handler.Groups)

		// Group full paths contain slashes for subgroups, so the group is
		// selected via the ?group= query parameter rather than a path
		// segment.
		r.Get("/projects", router.handler.GroupProjects)
		r.Get("/merge-requests", router.handler.GroupMergeRequests)
		r.Get("/pipelines", router.handler.GroupPipelines)
		r.Get("/events", router.handler.GroupEvents)

		r.Get("/widgets", router.handler.Widgets)
		r.Post("/widgets", router.handler.SetWidgets)
		r.Post("/reload", router.handler.Reload)

		r.Get("/notifications", router.handler.Notifications)
		r.Delete("/notifications", router.handler.ClearNotifications)
		r.Delete("/notifications/{id}", router.handler.DismissNotification)

		r.Post("/pipelines/reload", router.handler.ReloadPipeline)
		r.Post("/jobs/play", router.handler.PlayJob)
	})

	return r
}
