// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/regattahq/tracker/internal/events"
	"github.com/regattahq/tracker/internal/validation"
)

// handleManageList serves GET /api/manage/events: every event, archived
// included, passwords and all. Manager only.
func (s *Server) handleManageList(w http.ResponseWriter, r *http.Request) {
	if !s.requireManager(w, r) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": s.reg.ListAll()})
}

// handleManageCreate serves POST /api/manage/event. Every event needs an
// admin password from day one; an open tracker password is allowed.
func (s *Server) handleManageCreate(w http.ResponseWriter, r *http.Request) {
	if !s.requireManager(w, r) {
		return
	}

	var req events.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Event name is required")
		return
	}
	if req.AdminPassword == "" {
		respondError(w, http.StatusBadRequest, "Admin password is required")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	eid, err := s.reg.Create(req)
	if err != nil {
		if errors.Is(err, events.ErrBadTimezone) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("Event create failed")
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "eid": eid})
}

// handleManagePatch serves PATCH /api/manage/event/{eid}: partial update
// of the allow-listed event fields. Archiving goes through here too.
func (s *Server) handleManagePatch(w http.ResponseWriter, r *http.Request) {
	if !s.requireManager(w, r) {
		return
	}

	eid, err := strconv.Atoi(chi.URLParam(r, "eid"))
	if err != nil || eid < 1 {
		respondError(w, http.StatusNotFound, "Event not found")
		return
	}

	var upd events.Update
	if err := decodeBody(r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if _, err := s.reg.Apply(eid, upd); err != nil {
		switch {
		case errors.Is(err, events.ErrNotFound):
			respondError(w, http.StatusNotFound, "Event not found")
		case errors.Is(err, events.ErrBadTimezone):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.log.Error().Err(err).Int("eid", eid).Msg("Event update failed")
			respondError(w, http.StatusInternalServerError, "Internal error")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "eid": eid})
}
