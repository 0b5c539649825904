// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package events

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/regattahq/tracker/internal/logging"
	"github.com/regattahq/tracker/internal/storage"
)

// catalogFile is the on-disk shape of events.json. Event ids are string
// keys so the file stays a plain JSON object.
type catalogFile struct {
	NextEID         int               `json:"next_eid"`
	ManagerPassword string            `json:"manager_password"`
	Events          map[string]*Event `json:"events"`
}

// Registry is the multi-event catalog. All mutations persist events.json
// atomically before returning.
type Registry struct {
	mu              sync.Mutex
	path            string
	dataDir         string
	managerPassword string
	nextEID         int
	events          map[int]*Event

	// OnCreate, when set, is invoked (outside the lock) after a new event
	// is persisted. The supervisor uses it to start per-event workers.
	OnCreate func(eid int)
}

// NewRegistry loads or initializes the catalog at path. Event data
// directories are created under dataDir as <dataDir>/<eid>/logs.
// A manager password passed here overrides the one stored in the file.
func NewRegistry(path, dataDir, managerPassword string) (*Registry, error) {
	r := &Registry{
		path:    path,
		dataDir: dataDir,
		nextEID: 1,
		events:  make(map[int]*Event),
	}

	var cf catalogFile
	err := storage.ReadJSON(path, &cf)
	switch {
	case err == nil:
		if cf.NextEID > 0 {
			r.nextEID = cf.NextEID
		}
		r.managerPassword = cf.ManagerPassword
		for key, ev := range cf.Events {
			eid, convErr := strconv.Atoi(key)
			if convErr != nil || ev == nil {
				logging.Warn().Str("key", key).Msg("Skipping malformed event entry")
				continue
			}
			r.events[eid] = ev
			if r.nextEID <= eid {
				r.nextEID = eid + 1
			}
		}
	case os.IsNotExist(err):
		// Fresh install, start empty
	default:
		return nil, fmt.Errorf("load event catalog: %w", err)
	}

	if managerPassword != "" {
		r.managerPassword = managerPassword
	}

	for eid := range r.events {
		if err := r.ensureLayout(eid); err != nil {
			return nil, err
		}
	}

	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	return r, nil
}

// ManagerPassword returns the password protecting the manager endpoints.
func (r *Registry) ManagerPassword() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.managerPassword
}

// Get returns a copy of the event with the given id.
func (r *Registry) Get(eid int) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[eid]
	if !ok {
		return Event{}, false
	}
	return *ev, true
}

// IDs returns all event ids, ascending.
func (r *Registry) IDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.events))
	for eid := range r.events {
		ids = append(ids, eid)
	}
	sort.Ints(ids)
	return ids
}

// ListPublic returns the non-archived events sorted by name.
func (r *Registry) ListPublic() []PublicEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PublicEvent, 0, len(r.events))
	for eid, ev := range r.events {
		if ev.Archived {
			continue
		}
		out = append(out, PublicEvent{
			EID:          eid,
			Name:         ev.Name,
			Description:  ev.Description,
			Timezone:     ev.Timezone,
			HomeLocation: ev.HomeLocation,
			HomeLat:      ev.HomeLat,
			HomeLon:      ev.HomeLon,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListAll returns every event, archived included, sorted by id. Only the
// manager surface sees this projection.
func (r *Registry) ListAll() []ManagedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ManagedEvent, 0, len(r.events))
	for eid, ev := range r.events {
		out = append(out, ManagedEvent{EID: eid, Event: *ev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EID < out[j].EID })
	return out
}

// Create adds a new event, assigns it the next id, persists the catalog
// and prepares the event's data directory.
func (r *Registry) Create(req CreateRequest) (int, error) {
	if req.Name == "" {
		return 0, ErrNameRequired
	}
	tz := req.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadTimezone, tz)
	}

	now := time.Now()

	r.mu.Lock()
	eid := r.nextEID
	r.nextEID++
	r.events[eid] = &Event{
		Name:            req.Name,
		Description:     req.Description,
		AdminPassword:   req.AdminPassword,
		TrackerPassword: req.TrackerPassword,
		Timezone:        tz,
		HomeLocation:    req.HomeLocation,
		HomeLat:         req.HomeLat,
		HomeLon:         req.HomeLon,
		Created:         float64(now.UnixMilli()) / 1000.0,
		CreatedISO:      now.UTC().Format(time.RFC3339),
	}
	err := r.saveLocked()
	if err == nil {
		err = r.ensureLayout(eid)
	}
	r.mu.Unlock()

	if err != nil {
		return 0, err
	}

	logging.Info().Int("eid", eid).Str("name", req.Name).Msg("Event created")
	if r.OnCreate != nil {
		r.OnCreate(eid)
	}
	return eid, nil
}

// Apply updates an event in place with the non-nil fields of upd and
// persists the catalog.
func (r *Registry) Apply(eid int, upd Update) (Event, error) {
	if upd.Timezone != nil && *upd.Timezone != "" {
		if _, err := time.LoadLocation(*upd.Timezone); err != nil {
			return Event{}, fmt.Errorf("%w: %s", ErrBadTimezone, *upd.Timezone)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.events[eid]
	if !ok {
		return Event{}, ErrNotFound
	}

	if upd.Name != nil {
		ev.Name = *upd.Name
	}
	if upd.Description != nil {
		ev.Description = *upd.Description
	}
	if upd.Archived != nil {
		ev.Archived = *upd.Archived
	}
	if upd.AdminPassword != nil {
		ev.AdminPassword = *upd.AdminPassword
	}
	if upd.TrackerPassword != nil {
		ev.TrackerPassword = *upd.TrackerPassword
	}
	if upd.Timezone != nil {
		ev.Timezone = *upd.Timezone
	}
	if upd.HomeLocation != nil {
		ev.HomeLocation = *upd.HomeLocation
	}
	if upd.HomeLat != nil {
		ev.HomeLat = upd.HomeLat
	}
	if upd.HomeLon != nil {
		ev.HomeLon = upd.HomeLon
	}

	now := time.Now()
	ev.Updated = float64(now.UnixMilli()) / 1000.0
	ev.UpdatedISO = now.UTC().Format(time.RFC3339)

	if err := r.saveLocked(); err != nil {
		return Event{}, err
	}
	return *ev, nil
}

// EventDir returns the data directory of an event.
func (r *Registry) EventDir(eid int) string {
	return filepath.Join(r.dataDir, strconv.Itoa(eid))
}

// LogDir returns the track log directory of an event.
func (r *Registry) LogDir(eid int) string {
	return filepath.Join(r.EventDir(eid), "logs")
}

func (r *Registry) ensureLayout(eid int) error {
	if err := os.MkdirAll(r.LogDir(eid), 0o755); err != nil {
		return fmt.Errorf("create event %d layout: %w", eid, err)
	}
	return nil
}

// saveLocked persists the catalog; callers must hold r.mu.
func (r *Registry) saveLocked() error {
	cf := catalogFile{
		NextEID:         r.nextEID,
		ManagerPassword: r.managerPassword,
		Events:          make(map[string]*Event, len(r.events)),
	}
	for eid, ev := range r.events {
		cf.Events[strconv.Itoa(eid)] = ev
	}
	return storage.WriteJSONAtomic(r.path, &cf)
}
