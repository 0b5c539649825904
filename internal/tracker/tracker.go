// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package tracker

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/regattahq/tracker/internal/logging"
	"github.com/regattahq/tracker/internal/metrics"
	"github.com/regattahq/tracker/internal/models"
	"github.com/regattahq/tracker/internal/storage"
)

// Config describes one event's file layout and behavior switches.
type Config struct {
	EID int

	// PositionsFile is the live snapshot path (current_positions.json).
	PositionsFile string

	// CourseFile is the course definition path (course.json).
	CourseFile string

	// UsersFile is the display override path (users.json).
	UsersFile string

	// LogDir holds the daily JSONL track logs.
	LogDir string

	// Location sets the event timezone for day boundaries.
	Location *time.Location

	// DisableSnapshot stops snapshot publication (--no-current).
	DisableSnapshot bool

	// DisableLogs stops track log writes (--no-track-logs).
	DisableLogs bool
}

// Tracker processes position reports for a single event. It owns the live
// table, the per-sailor duplicate watermarks, the daily track log and the
// display overrides, and republishes the snapshot after every change.
type Tracker struct {
	cfg   Config
	log   zerolog.Logger
	daily *storage.DailyLogger

	mu        sync.Mutex
	live      map[string]LiveEntry
	lastTS    map[string]int64
	overrides map[string]Override

	// now is replaceable for tests.
	now func() time.Time
}

// New restores a tracker from disk: the live table is reloaded from the
// existing snapshot so restarts keep showing sailors, the watermarks are
// seeded from each entry's ts so replayed reports stay duplicates, and the
// overrides come from users.json.
func New(cfg Config) (*Tracker, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	t := &Tracker{
		cfg:       cfg,
		log:       logging.WithComponent("tracker").With().Int("eid", cfg.EID).Logger(),
		daily:     storage.NewDailyLogger(cfg.LogDir, cfg.Location),
		live:      make(map[string]LiveEntry),
		lastTS:    make(map[string]int64),
		overrides: make(map[string]Override),
		now:       time.Now,
	}

	if err := t.loadOverrides(); err != nil {
		return nil, err
	}
	if err := t.loadSnapshot(); err != nil {
		return nil, err
	}
	if !cfg.DisableSnapshot {
		if err := t.publishSnapshot(); err != nil {
			return nil, err
		}
	}
	t.log.Info().
		Int("sailors", len(t.live)).
		Int("overrides", len(t.overrides)).
		Msg("Tracker ready")
	return t, nil
}

// Daily exposes the track log writer; the midnight worker rotates through it.
func (t *Tracker) Daily() *storage.DailyLogger {
	return t.daily
}

// CourseFile returns the course definition path.
func (t *Tracker) CourseFile() string {
	return t.cfg.CourseFile
}

// Process applies one sanitized report. It returns false when the report is
// a duplicate (its ts is not newer than the sailor's watermark); duplicates
// are logged to the console but change no state.
func (t *Tracker) Process(rep *models.Report, srcIP, transport string) bool {
	recv := t.now()
	batch := len(rep.Pos) > 1
	ts, lat, lon := canonicalSample(rep)

	// Batched reports are logged as a single line carrying the whole pos
	// array, written before the live table is touched.
	if batch && !t.cfg.DisableLogs {
		entry := t.logEntry(rep, recv)
		entry.TS = ts
		entry.Pos = rep.Pos
		if err := t.daily.Append(entry); err != nil {
			t.log.Error().Err(err).Msg("Track log write failed")
		}
	}

	t.mu.Lock()
	last, seen := t.lastTS[rep.ID]
	dup := seen && ts <= last
	if !dup {
		t.lastTS[rep.ID] = ts
	}
	t.mu.Unlock()

	t.console(rep, ts, lat, lon, srcIP, transport, dup)

	if dup {
		return false
	}

	entry := LiveEntry{
		ID:          rep.ID,
		Lat:         lat,
		Lon:         lon,
		Speed:       rep.Speed,
		Heading:     rep.Heading,
		Assist:      rep.Assist,
		Battery:     rep.Battery,
		Signal:      rep.Signal,
		Role:        rep.Role,
		Version:     rep.Version,
		Flags:       rep.Flags,
		TS:          ts,
		LastSeen:    epochSeconds(recv),
		LastSeenISO: recv.UTC().Format(time.RFC3339),
		SrcIP:       srcIP,
		DrainRate:   rep.DrainRate,
		Accuracy:    rep.Accuracy,
		OS:          rep.OS,
	}
	if rep.HeartRate != nil && *rep.HeartRate > 0 {
		entry.HeartRate = rep.HeartRate
	}

	t.mu.Lock()
	t.live[rep.ID] = entry
	count := len(t.live)
	t.mu.Unlock()

	metrics.LiveSailors.WithLabelValues(strconv.Itoa(t.cfg.EID)).Set(float64(count))

	if !t.cfg.DisableSnapshot {
		if err := t.publishSnapshot(); err != nil {
			t.log.Error().Err(err).Msg("Snapshot write failed")
		}
	}

	if !batch && !t.cfg.DisableLogs {
		le := t.logEntry(rep, recv)
		le.TS = ts
		le.Lat = &lat
		le.Lon = &lon
		if err := t.daily.Append(le); err != nil {
			t.log.Error().Err(err).Msg("Track log write failed")
		}
	}
	return true
}

// canonicalSample picks the fix the live table and the watermark use: the
// newest element of a batched pos array, else the top-level fields. Old
// batching clients omit the top-level ts entirely.
func canonicalSample(rep *models.Report) (int64, float64, float64) {
	if n := len(rep.Pos); n > 0 {
		last := rep.Pos[n-1]
		return last.TS, last.Lat, last.Lon
	}
	return rep.TS, rep.Lat, rep.Lon
}

func (t *Tracker) logEntry(rep *models.Report, recv time.Time) LogEntry {
	return LogEntry{
		ID:        rep.ID,
		TS:        rep.TS,
		RecvTS:    epochSeconds(recv),
		Speed:     rep.Speed,
		Heading:   rep.Heading,
		Assist:    rep.Assist,
		Battery:   rep.Battery,
		Signal:    rep.Signal,
		Role:      rep.Role,
		Version:   rep.Version,
		Flags:     rep.Flags,
		DrainRate: rep.DrainRate,
		HeartRate: rep.HeartRate,
		OS:        rep.OS,
		Accuracy:  rep.Accuracy,
	}
}

// console emits the operator-facing line for every report, duplicates
// included, plus an alert when a sailor requests assistance.
func (t *Tracker) console(rep *models.Report, ts int64, lat, lon float64, srcIP, transport string, dup bool) {
	if rep.Assist && !dup {
		metrics.AssistRequestsTotal.Inc()
		t.log.Warn().
			Str("sailor", rep.ID).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("ASSISTANCE REQUESTED")
	}
	t.log.Info().
		Str("sailor", rep.ID).
		Float64("lat", lat).
		Float64("lon", lon).
		Float64("spd", rep.Speed).
		Int("hdg", rep.Heading).
		Int("bat", rep.Battery).
		Int("sig", rep.Signal).
		Int64("ts", ts).
		Str("ver", rep.Version).
		Str("via", transport).
		Str("ip", srcIP).
		Bool("dup", dup).
		Msg("Position")
}

// Live returns a copy of the live table with overrides applied, exactly as
// the snapshot file presents it.
func (t *Tracker) Live() map[string]LiveEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.displayLocked()
}

func (t *Tracker) displayLocked() map[string]LiveEntry {
	out := make(map[string]LiveEntry, len(t.live))
	for id, entry := range t.live {
		if o, ok := t.overrides[id]; ok {
			if o.Name != "" {
				entry.Name = o.Name
			}
			if o.Role != "" {
				entry.Role = o.Role
			}
			if o.Hidden {
				entry.Hidden = true
			}
		}
		out[id] = entry
	}
	return out
}

// publishSnapshot writes current_positions.json atomically.
func (t *Tracker) publishSnapshot() error {
	now := t.now()

	t.mu.Lock()
	snap := Snapshot{
		Updated:    epochSeconds(now),
		UpdatedISO: now.UTC().Format(time.RFC3339),
		Sailors:    t.displayLocked(),
	}
	t.mu.Unlock()

	return storage.WriteJSONAtomic(t.cfg.PositionsFile, snap)
}

// loadSnapshot restores the live table and watermarks from a previous run.
// Display fields are dropped; overrides are reapplied at publication.
func (t *Tracker) loadSnapshot() error {
	var snap Snapshot
	err := storage.ReadJSON(t.cfg.PositionsFile, &snap)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.log.Warn().Err(err).Msg("Snapshot unreadable, starting empty")
		return nil
	}
	for id, entry := range snap.Sailors {
		entry.Name = ""
		entry.Hidden = false
		t.live[id] = entry
		if entry.TS > t.lastTS[id] {
			t.lastTS[id] = entry.TS
		}
	}
	return nil
}

// ClearTracks rotates today's log aside, removes the snapshot file, empties
// the live table and publishes a fresh empty snapshot. Watermarks reset too,
// so devices replaying old fixes afterwards are accepted again.
func (t *Tracker) ClearTracks() error {
	rotated, err := t.daily.RotateToday()
	if err != nil {
		return fmt.Errorf("rotate track log: %w", err)
	}

	t.mu.Lock()
	t.live = make(map[string]LiveEntry)
	t.lastTS = make(map[string]int64)
	t.mu.Unlock()

	metrics.LiveSailors.WithLabelValues(strconv.Itoa(t.cfg.EID)).Set(0)

	if err := os.Remove(t.cfg.PositionsFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	if !t.cfg.DisableSnapshot {
		if err := t.publishSnapshot(); err != nil {
			return err
		}
	}
	t.log.Info().Str("rotated", rotated).Msg("Tracks cleared")
	return nil
}

// Overrides returns a copy of the current display overrides.
func (t *Tracker) Overrides() map[string]Override {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Override, len(t.overrides))
	for id, o := range t.overrides {
		out[id] = o
	}
	return out
}

// SetOverride stores a display override for id, persists users.json and
// republishes the snapshot so the change is visible immediately.
func (t *Tracker) SetOverride(id string, o Override) error {
	t.mu.Lock()
	t.overrides[id] = o
	t.mu.Unlock()
	return t.afterOverrideChange()
}

// RemoveOverride deletes the override for id, if any.
func (t *Tracker) RemoveOverride(id string) error {
	t.mu.Lock()
	delete(t.overrides, id)
	t.mu.Unlock()
	return t.afterOverrideChange()
}

func (t *Tracker) afterOverrideChange() error {
	if err := t.saveOverrides(); err != nil {
		return err
	}
	if t.cfg.DisableSnapshot {
		return nil
	}
	return t.publishSnapshot()
}

func (t *Tracker) saveOverrides() error {
	now := t.now()

	t.mu.Lock()
	doc := usersFile{
		Updated:    epochSeconds(now),
		UpdatedISO: now.UTC().Format(time.RFC3339),
		Users:      make(map[string]Override, len(t.overrides)),
	}
	for id, o := range t.overrides {
		doc.Users[id] = o
	}
	t.mu.Unlock()

	return storage.WriteJSONAtomic(t.cfg.UsersFile, doc)
}

func (t *Tracker) loadOverrides() error {
	var doc usersFile
	err := storage.ReadJSON(t.cfg.UsersFile, &doc)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.log.Warn().Err(err).Msg("Overrides unreadable, starting empty")
		return nil
	}
	for id, o := range doc.Users {
		t.overrides[id] = o
	}
	return nil
}

// SaveCourse stamps the raw course document with updated/updated_iso,
// rotates any existing course aside and writes the new one atomically.
func (t *Tracker) SaveCourse(course map[string]any) error {
	now := t.now()
	course["updated"] = epochSeconds(now)
	course["updated_iso"] = now.UTC().Format(time.RFC3339)

	if _, _, err := storage.Rotate(t.cfg.CourseFile); err != nil {
		return fmt.Errorf("rotate course: %w", err)
	}
	if err := storage.WriteJSONAtomic(t.cfg.CourseFile, course); err != nil {
		return err
	}
	t.log.Info().Msg("Course saved")
	return nil
}

// DeleteCourse rotates the current course aside so it can be recovered.
func (t *Tracker) DeleteCourse() error {
	rotated, ok, err := storage.Rotate(t.cfg.CourseFile)
	if err != nil {
		return fmt.Errorf("rotate course: %w", err)
	}
	if ok {
		t.log.Info().Str("rotated", rotated).Msg("Course deleted")
	}
	return nil
}

// ReadCourse returns the raw course file contents, or ok=false when no
// course is set.
func (t *Tracker) ReadCourse() ([]byte, bool, error) {
	data, err := os.ReadFile(t.cfg.CourseFile)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Close releases the track log file handle.
func (t *Tracker) Close() error {
	return t.daily.Close()
}

// DefaultLayout returns the standard per-event file layout under dir.
func DefaultLayout(eid int, dir string, loc *time.Location) Config {
	return Config{
		EID:           eid,
		PositionsFile: filepath.Join(dir, "current_positions.json"),
		CourseFile:    filepath.Join(dir, "course.json"),
		UsersFile:     filepath.Join(dir, "users.json"),
		LogDir:        filepath.Join(dir, "logs"),
		Location:      loc,
	}
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
