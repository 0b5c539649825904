// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

// Package api serves the tracker's HTTP surface: the web map's data
// endpoints, per-event admin operations, the manager API, the HTTP ingest
// endpoint and the static frontend. Response shapes are part of the wire
// protocol the phone apps and the web UI already speak, so handlers write
// them verbatim rather than through a response envelope.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/regattahq/tracker/internal/logging"
)

// respondJSON writes v with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Response encode failed")
	}
}

// respondError writes the protocol's error shape: {"error": "<msg>"}.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondRaw writes pre-encoded JSON verbatim.
func respondRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Response write failed")
	}
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
