// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

// Package tracker keeps the per-event runtime state: the live position
// table published to the web UI, the duplicate-detection watermarks, the
// day-keyed track log and the per-sailor display overrides.
package tracker

import "github.com/regattahq/tracker/internal/models"

// LiveEntry is one sailor's row in the published snapshot
// (current_positions.json). Name and Hidden are display-only fields
// applied from overrides at publication time; they are never part of the
// in-memory table.
type LiveEntry struct {
	ID          string         `json:"id"`
	Lat         float64        `json:"lat"`
	Lon         float64        `json:"lon"`
	Speed       float64        `json:"spd"`
	Heading     int            `json:"hdg"`
	Assist      bool           `json:"ast"`
	Battery     int            `json:"bat"`
	Signal      int            `json:"sig"`
	Role        string         `json:"role"`
	Version     string         `json:"ver"`
	Flags       map[string]any `json:"flg"`
	TS          int64          `json:"ts"`
	LastSeen    float64        `json:"last_seen"`
	LastSeenISO string         `json:"last_seen_iso"`
	SrcIP       string         `json:"src_ip"`

	DrainRate *float64 `json:"bdr,omitempty"`
	HeartRate *int     `json:"hr,omitempty"`
	OS        string   `json:"os,omitempty"`
	Accuracy  *float64 `json:"hac,omitempty"`

	Name   string `json:"name,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

// Snapshot is the full current_positions.json document.
type Snapshot struct {
	Updated    float64              `json:"updated"`
	UpdatedISO string               `json:"updated_iso"`
	Sailors    map[string]LiveEntry `json:"sailors"`
}

// LogEntry is one line of the daily track log. Single reports carry
// Lat/Lon; batched reports carry the whole Pos array instead and no
// top-level coordinates.
type LogEntry struct {
	ID      string          `json:"id"`
	TS      int64           `json:"ts"`
	RecvTS  float64         `json:"recv_ts"`
	Lat     *float64        `json:"lat,omitempty"`
	Lon     *float64        `json:"lon,omitempty"`
	Pos     []models.Sample `json:"pos,omitempty"`
	Speed   float64         `json:"spd"`
	Heading int             `json:"hdg"`
	Assist  bool            `json:"ast"`
	Battery int             `json:"bat"`
	Signal  int             `json:"sig"`
	Role    string          `json:"role"`
	Version string          `json:"ver"`
	Flags   map[string]any  `json:"flg"`

	DrainRate *float64 `json:"bdr,omitempty"`
	HeartRate *int     `json:"hr,omitempty"`
	OS        string   `json:"os,omitempty"`
	Accuracy  *float64 `json:"hac,omitempty"`
}

// Override adjusts how one sailor is displayed: a friendly name, a
// corrected role, or hiding the sailor from the map entirely.
type Override struct {
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

// ValidOverrideRole reports whether role is one of the roles an override
// may assign.
func ValidOverrideRole(role string) bool {
	switch role {
	case "sailor", "support", "spectator":
		return true
	}
	return false
}

// usersFile is the on-disk shape of users.json.
type usersFile struct {
	Updated    float64             `json:"updated"`
	UpdatedISO string              `json:"updated_iso"`
	Users      map[string]Override `json:"users"`
}
