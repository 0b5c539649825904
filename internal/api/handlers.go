// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/regattahq/tracker/internal/events"
	"github.com/regattahq/tracker/internal/ingest"
	"github.com/regattahq/tracker/internal/logging"
	"github.com/regattahq/tracker/internal/ratelimit"
	"github.com/regattahq/tracker/internal/tracker"
)

// maxBodySize bounds request bodies on the data endpoints. Courses with a
// few hundred marks fit comfortably.
const maxBodySize = 1 << 20

// Config wires the HTTP surface.
type Config struct {
	Directory events.Directory

	// Registry is set in multi-event mode; nil leaves the manager
	// endpoints disabled.
	Registry *events.Registry

	Trackers *tracker.Manager
	Limiter  *ratelimit.Limiter
	Ingest   *ingest.Router

	// StaticDir is the frontend root; empty disables static serving.
	StaticDir string

	// Legacy enables the single-event aliases (/api/course and friends).
	Legacy bool
}

// Server holds the handler state shared across requests.
type Server struct {
	dir             events.Directory
	reg             *events.Registry
	trackers        *tracker.Manager
	limiter         *ratelimit.Limiter
	ingest          *ingest.Router
	staticDir       string
	legacy          bool
	managerPassword string
	log             zerolog.Logger
}

// NewServer creates the handler set.
func NewServer(cfg Config) *Server {
	s := &Server{
		dir:       cfg.Directory,
		reg:       cfg.Registry,
		trackers:  cfg.Trackers,
		limiter:   cfg.Limiter,
		ingest:    cfg.Ingest,
		staticDir: cfg.StaticDir,
		legacy:    cfg.Legacy,
		log:       logging.WithComponent("api"),
	}
	if cfg.Registry != nil {
		s.managerPassword = cfg.Registry.ManagerPassword()
	}
	return s
}

// eventFromPath resolves the {eid} path parameter. It writes the protocol
// 404/400 responses and returns ok=false when the request cannot proceed.
// Archived events reject writes but still serve reads.
func (s *Server) eventFromPath(w http.ResponseWriter, r *http.Request, write bool) (int, events.Event, bool) {
	eid, err := strconv.Atoi(chi.URLParam(r, "eid"))
	if err != nil || eid < 1 {
		respondError(w, http.StatusNotFound, "Event not found")
		return 0, events.Event{}, false
	}
	ev, ok := s.dir.Get(eid)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("Event %d not found", eid))
		return 0, events.Event{}, false
	}
	if write && ev.Archived {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Event %d is archived", eid))
		return 0, events.Event{}, false
	}
	return eid, ev, true
}

// trackerFor fetches the event's tracker, answering 500 on failure.
func (s *Server) trackerFor(w http.ResponseWriter, eid int) (*tracker.Tracker, bool) {
	tr, err := s.trackers.Get(eid)
	if err != nil {
		s.log.Error().Err(err).Int("eid", eid).Msg("Tracker unavailable")
		respondError(w, http.StatusInternalServerError, "Internal error")
		return nil, false
	}
	return tr, true
}

// handleListEvents serves GET /api/events: the public event catalog.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"events": s.dir.ListPublic()})
}

// handleReport serves POST /api/tracker: the HTTP ingest transport.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	r.Body.Close()

	res := s.ingest.Handle(body, clientIP(r), "http")
	if res.Malformed {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	respondJSON(w, res.Status, res.Ack)
}

// handleGetCourse serves GET /api/event/{eid}/course.
func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	eid, _, ok := s.eventFromPath(w, r, false)
	if !ok {
		return
	}
	tr, ok := s.trackerFor(w, eid)
	if !ok {
		return
	}

	data, found, err := tr.ReadCourse()
	if err != nil {
		s.log.Error().Err(err).Int("eid", eid).Msg("Course read failed")
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if !found {
		respondJSON(w, http.StatusOK, map[string]any{"course": nil})
		return
	}
	respondRaw(w, http.StatusOK, data)
}

// handleSaveCourse serves POST /api/event/{eid}/admin/course.
func (s *Server) handleSaveCourse(w http.ResponseWriter, r *http.Request) {
	eid, ev, ok := s.eventFromPath(w, r, true)
	if !ok {
		return
	}
	if !s.requireAdmin(w, r, ev.AdminPassword) {
		return
	}

	var course map[string]any
	if err := decodeBody(r, &course); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	tr, ok := s.trackerFor(w, eid)
	if !ok {
		return
	}
	if err := tr.SaveCourse(course); err != nil {
		s.log.Error().Err(err).Int("eid", eid).Msg("Course save failed")
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleDeleteCourse serves DELETE /api/event/{eid}/admin/course.
func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	eid, ev, ok := s.eventFromPath(w, r, true)
	if !ok {
		return
	}
	if !s.requireAdmin(w, r, ev.AdminPassword) {
		return
	}
	tr, ok := s.trackerFor(w, eid)
	if !ok {
		return
	}
	if err := tr.DeleteCourse(); err != nil {
		s.log.Error().Err(err).Int("eid", eid).Msg("Course delete failed")
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleAuthCheck serves GET /api/event/{eid}/auth/check: lets the admin
// page verify a password without performing an operation.
func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	_, ev, ok := s.eventFromPath(w, r, false)
	if !ok {
		return
	}
	switch s.checkPassword(r, adminPasswordHeader, ev.AdminPassword) {
	case authRateLimited:
		respondError(w, http.StatusTooManyRequests, "Too many attempts")
	case authFailed:
		respondJSON(w, http.StatusUnauthorized, map[string]any{"authenticated": false})
	default:
		respondJSON(w, http.StatusOK, map[string]any{"authenticated": true})
	}
}

// handleGetUsers serves GET /api/event/{eid}/users: the display overrides.
func (s *Server) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	eid, _, ok := s.eventFromPath(w, r, false)
	if !ok {
		return
	}
	tr, ok := s.trackerFor(w, eid)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": tr.Overrides()})
}

// userOverrideBody is the accepted override payload. Unknown fields are
// ignored; role values outside the allowed set are dropped.
type userOverrideBody struct {
	Name   any     `json:"name"`
	Role   *string `json:"role"`
	Hidden *bool   `json:"hidden"`
}

// handleSetUser serves POST /api/event/{eid}/admin/user/{id}.
func (s *Server) handleSetUser(w http.ResponseWriter, r *http.Request) {
	eid, ev, ok := s.eventFromPath(w, r, true)
	if !ok {
		return
	}
	if !s.requireAdmin(w, r, ev.AdminPassword) {
		return
	}
	userID := chi.URLParam(r, "id")

	var body userOverrideBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var o tracker.Override
	valid := false
	if body.Name != nil {
		o.Name = fmt.Sprint(body.Name)
		valid = true
	}
	if body.Role != nil && tracker.ValidOverrideRole(*body.Role) {
		o.Role = *body.Role
		valid = true
	}
	if body.Hidden != nil {
		o.Hidden = *body.Hidden
		valid = true
	}
	if !valid {
		respondError(w, http.StatusBadRequest, "No valid fields (name, role)")
		return
	}

	tr, ok := s.trackerFor(w, eid)
	if !ok {
		return
	}
	if err := tr.SetOverride(userID, o); err != nil {
		s.log.Error().Err(err).Int("eid", eid).Msg("Override save failed")
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"user_id":  userID,
		"override": o,
	})
}

// handleDeleteUser serves DELETE /api/event/{eid}/admin/user/{id}.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	eid, ev, ok := s.eventFromPath(w, r, true)
	if !ok {
		return
	}
	if !s.requireAdmin(w, r, ev.AdminPassword) {
		return
	}
	userID := chi.URLParam(r, "id")

	tr, ok := s.trackerFor(w, eid)
	if !ok {
		return
	}
	if err := tr.RemoveOverride(userID); err != nil {
		s.log.Error().Err(err).Int("eid", eid).Msg("Override delete failed")
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user_id": userID,
	})
}

// handleClearTracks serves POST /api/event/{eid}/admin/clear-tracks:
// rotates the logs and empties the live map.
func (s *Server) handleClearTracks(w http.ResponseWriter, r *http.Request) {
	eid, ev, ok := s.eventFromPath(w, r, true)
	if !ok {
		return
	}
	if !s.requireAdmin(w, r, ev.AdminPassword) {
		return
	}
	tr, ok := s.trackerFor(w, eid)
	if !ok {
		return
	}
	if err := tr.ClearTracks(); err != nil {
		s.log.Error().Err(err).Int("eid", eid).Msg("Clear tracks failed")
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
