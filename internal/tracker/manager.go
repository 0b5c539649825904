// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package tracker

import "sync"

// Factory builds the tracker for an event id. The manager calls it at most
// once per id; wiring decides the file layout (multi-event directories or
// the legacy flat layout).
type Factory func(eid int) (*Tracker, error)

// Manager hands out per-event trackers, creating each lazily on first use.
// Trackers live for the rest of the process once created.
type Manager struct {
	mu       sync.Mutex
	factory  Factory
	trackers map[int]*Tracker
}

// NewManager creates a manager using factory for lazy construction.
func NewManager(factory Factory) *Manager {
	return &Manager{
		factory:  factory,
		trackers: make(map[int]*Tracker),
	}
}

// Get returns the tracker for eid, creating it on first use.
func (m *Manager) Get(eid int) (*Tracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.trackers[eid]; ok {
		return t, nil
	}
	t, err := m.factory(eid)
	if err != nil {
		return nil, err
	}
	m.trackers[eid] = t
	return t, nil
}

// Peek returns the tracker for eid only if it already exists.
func (m *Manager) Peek(eid int) (*Tracker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackers[eid]
	return t, ok
}

// Close closes every created tracker.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trackers {
		t.Close()
	}
}
