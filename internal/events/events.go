// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

// Package events holds the persistent catalog of tracked events. The
// catalog lives in a single events.json file that is loaded at startup,
// mutated under one mutex and republished atomically on every change.
package events

import (
	"errors"
	"time"
)

// DefaultTimezone is applied to events created without an explicit timezone.
const DefaultTimezone = "Australia/Sydney"

var (
	// ErrNotFound is returned when an event id is not in the catalog.
	ErrNotFound = errors.New("event not found")

	// ErrNameRequired is returned when creating an event without a name.
	ErrNameRequired = errors.New("event name required")

	// ErrBadTimezone is returned for timezone names the IANA database rejects.
	ErrBadTimezone = errors.New("unknown timezone")
)

// Event is one entry in the catalog. Passwords are stored as plain shared
// secrets, matching the on-disk format trackers and admin pages expect.
type Event struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	AdminPassword   string   `json:"admin_password"`
	TrackerPassword string   `json:"tracker_password"`
	Timezone        string   `json:"timezone"`
	HomeLocation    string   `json:"home_location"`
	HomeLat         *float64 `json:"home_lat"`
	HomeLon         *float64 `json:"home_lon"`
	Archived        bool     `json:"archived"`
	Created         float64  `json:"created,omitempty"`
	CreatedISO      string   `json:"created_iso,omitempty"`
	Updated         float64  `json:"updated,omitempty"`
	UpdatedISO      string   `json:"updated_iso,omitempty"`
}

// Location resolves the event's timezone, falling back to UTC for names
// that no longer resolve (the zone database can change under us).
func (e *Event) Location() *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PublicEvent is the password-free projection served to unauthenticated
// clients.
type PublicEvent struct {
	EID          int      `json:"eid"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Timezone     string   `json:"timezone"`
	HomeLocation string   `json:"home_location"`
	HomeLat      *float64 `json:"home_lat"`
	HomeLon      *float64 `json:"home_lon"`
}

// ManagedEvent is the full projection served to the event manager.
type ManagedEvent struct {
	EID int `json:"eid"`
	Event
}

// Update carries the allow-listed mutable fields of an event. Nil fields
// are left unchanged.
type Update struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	Archived        *bool    `json:"archived"`
	AdminPassword   *string  `json:"admin_password"`
	TrackerPassword *string  `json:"tracker_password"`
	Timezone        *string  `json:"timezone"`
	HomeLocation    *string  `json:"home_location"`
	HomeLat         *float64 `json:"home_lat"`
	HomeLon         *float64 `json:"home_lon"`
}

// Directory is the read side of the catalog consumed by the ingest path
// and the public API. Both the multi-event Registry and the legacy
// single-event view implement it.
type Directory interface {
	// Get returns a copy of the event, or false if the id is unknown.
	Get(eid int) (Event, bool)

	// IDs returns all known event ids, ascending.
	IDs() []int

	// ListPublic returns non-archived events sorted by name.
	ListPublic() []PublicEvent
}

// CreateRequest holds the fields accepted when creating an event.
type CreateRequest struct {
	Name            string   `json:"name" validate:"required,max=128"`
	Description     string   `json:"description" validate:"max=1024"`
	AdminPassword   string   `json:"admin_password" validate:"max=64"`
	TrackerPassword string   `json:"tracker_password" validate:"max=64"`
	Timezone        string   `json:"timezone" validate:"max=64"`
	HomeLocation    string   `json:"home_location" validate:"max=128"`
	HomeLat         *float64 `json:"home_lat" validate:"omitempty,latitude"`
	HomeLon         *float64 `json:"home_lon" validate:"omitempty,longitude"`
}
