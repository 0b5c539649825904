// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

// Package models holds the wire and domain types shared between the
// ingest path and the per-event trackers.
package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Report is a sanitized position report. Pointer fields distinguish
// "absent" from zero for the optional telemetry the phone apps send only
// when they have it.
type Report struct {
	ID      string
	Seq     int
	TS      int64
	EID     int
	Lat     float64
	Lon     float64
	Speed   float64
	Heading int
	Assist  bool
	Battery int
	Signal  int
	Role    string
	Version string
	OS      string

	HeartRate *int
	DrainRate *float64
	Accuracy  *float64
	Charging  *bool
	PowerSave *bool

	Password  string
	AuthCheck bool

	Flags map[string]any
	Pos   []Sample
}

// Sample is one element of a batched pos array. On the wire it is a JSON
// array: [ts, lat, lon] or [ts, lat, lon, spd].
type Sample struct {
	TS    int64
	Lat   float64
	Lon   float64
	Speed *float64
}

// MarshalJSON encodes the sample in its wire array form.
func (s Sample) MarshalJSON() ([]byte, error) {
	if s.Speed != nil {
		return json.Marshal([]any{s.TS, s.Lat, s.Lon, *s.Speed})
	}
	return json.Marshal([]any{s.TS, s.Lat, s.Lon})
}

// UnmarshalJSON decodes the wire array form.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 3 {
		return fmt.Errorf("pos entry needs at least 3 elements, got %d", len(raw))
	}
	s.TS = int64(raw[0])
	s.Lat = raw[1]
	s.Lon = raw[2]
	if len(raw) > 3 {
		spd := raw[3]
		s.Speed = &spd
	}
	return nil
}

// Ack is the reply sent back for every parseable report.
//
// Success:  {"ack": <seq>, "ts": <ts>, "event": "<name>"}
// Failure:  {"ack": <seq>, "ts": <ts>, "error": "event"|"auth", "msg": "..."}
type Ack struct {
	Ack   int    `json:"ack"`
	TS    int64  `json:"ts"`
	Event string `json:"event,omitempty"`
	Error string `json:"error,omitempty"`
	Msg   string `json:"msg,omitempty"`
}
