// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package events

// LegacyEID is the id the single-event view answers to. Old clients that
// omit an event id are routed here.
const LegacyEID = 1

// SingleEvent is the fixed catalog used when the server runs without a
// manager password: one event, id 1, configured entirely from flags.
// It is never archived and cannot be mutated at runtime.
type SingleEvent struct {
	event Event
}

// NewSingleEvent builds the legacy single-event directory from the global
// admin and tracker passwords.
func NewSingleEvent(adminPassword, trackerPassword, timezone string) *SingleEvent {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	return &SingleEvent{
		event: Event{
			Name:            "Default Event",
			AdminPassword:   adminPassword,
			TrackerPassword: trackerPassword,
			Timezone:        timezone,
		},
	}
}

// Get returns the single event for LegacyEID only.
func (s *SingleEvent) Get(eid int) (Event, bool) {
	if eid != LegacyEID {
		return Event{}, false
	}
	return s.event, true
}

// IDs returns the single event id.
func (s *SingleEvent) IDs() []int {
	return []int{LegacyEID}
}

// ListPublic returns the single event.
func (s *SingleEvent) ListPublic() []PublicEvent {
	return []PublicEvent{{
		EID:      LegacyEID,
		Name:     s.event.Name,
		Timezone: s.event.Timezone,
	}}
}
