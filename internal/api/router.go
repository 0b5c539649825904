// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/regattahq/tracker/internal/middleware"
)

// MiddlewareConfig tunes the HTTP middleware stack.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSMaxAge         int

	// RateLimitRequests caps requests per IP per window on the data
	// endpoints. Zero disables HTTP rate limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DefaultMiddlewareConfig allows any origin, matching how the map and the
// admin pages are typically hosted on a separate domain from the tracker.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSMaxAge:         86400,
		RateLimitRequests:  300,
		RateLimitWindow:    time.Minute,
	}
}

// RateLimitIngest caps POST /api/tracker per IP: one report per second
// with room for batch catch-up bursts.
var RateLimitIngest = struct {
	Requests int
	Window   time.Duration
}{Requests: 120, Window: time.Minute}

// Routes builds the chi router for the full HTTP surface.
func (s *Server) Routes(mwCfg MiddlewareConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: mwCfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", adminPasswordHeader, managerPasswordHeader},
		MaxAge:         mwCfg.CORSMaxAge,
	}))

	rateLimit := func(requests int, window time.Duration) func(http.Handler) http.Handler {
		if mwCfg.RateLimitRequests <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		return httprate.LimitByIP(requests, window)
	}

	r.Route("/api", func(r chi.Router) {
		r.With(rateLimit(RateLimitIngest.Requests, RateLimitIngest.Window)).
			Post("/tracker", s.handleReport)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(mwCfg.RateLimitRequests, mwCfg.RateLimitWindow))

			r.Get("/events", s.handleListEvents)

			r.Route("/event/{eid}", func(r chi.Router) {
				r.Get("/course", s.handleGetCourse)
				r.Get("/auth/check", s.handleAuthCheck)
				r.Get("/users", s.handleGetUsers)

				r.Route("/admin", func(r chi.Router) {
					r.Post("/course", s.handleSaveCourse)
					r.Delete("/course", s.handleDeleteCourse)
					r.Post("/user/{id}", s.handleSetUser)
					r.Delete("/user/{id}", s.handleDeleteUser)
					r.Post("/clear-tracks", s.handleClearTracks)
				})
			})

			if s.reg != nil {
				r.Get("/manage/events", s.handleManageList)
				r.Post("/manage/event", s.handleManageCreate)
				r.Patch("/manage/event/{eid}", s.handleManagePatch)
			}

			if s.legacy {
				s.legacyRoutes(r)
			}
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.NotFound(s.handleStatic)

	return r
}

// legacyRoutes keeps the pre-multi-event paths alive by pinning them to
// event 1. Old admin pages and bookmarked course editors keep working.
func (s *Server) legacyRoutes(r chi.Router) {
	withEID := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			ctx := chi.RouteContext(req.Context())
			ctx.URLParams.Add("eid", "1")
			h(w, req)
		}
	}
	r.Get("/course", withEID(s.handleGetCourse))
	r.Get("/auth/check", withEID(s.handleAuthCheck))
	r.Get("/users", withEID(s.handleGetUsers))

	r.Post("/admin/course", withEID(s.handleSaveCourse))
	r.Delete("/admin/course", withEID(s.handleDeleteCourse))
	r.Post("/admin/clear-tracks", withEID(s.handleClearTracks))
	r.Post("/admin/user/{id}", withEID(s.handleSetUser))
	r.Delete("/admin/user/{id}", withEID(s.handleDeleteUser))
}
