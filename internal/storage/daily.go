// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// DayFormat is the date layout used for track log file names.
const DayFormat = "2006_01_02"

// DayFileName returns the track log file name for t in the logger's timezone.
func DayFileName(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayFormat) + ".jsonl"
}

// DailyLogger appends JSON lines to a per-day file in an event's log
// directory. The target day is re-resolved on every append in the event's
// timezone, so the first write after local midnight lands in the new day's
// file without any external trigger.
type DailyLogger struct {
	mu      sync.Mutex
	dir     string
	loc     *time.Location
	curDate string
	f       *os.File

	// now is replaceable for tests.
	now func() time.Time
}

// NewDailyLogger creates a logger writing under dir using loc for day
// boundaries. The directory is created lazily on first append.
func NewDailyLogger(dir string, loc *time.Location) *DailyLogger {
	if loc == nil {
		loc = time.Local
	}
	return &DailyLogger{
		dir: dir,
		loc: loc,
		now: time.Now,
	}
}

// Dir returns the log directory.
func (l *DailyLogger) Dir() string {
	return l.dir
}

// TodayPath returns the path of the file the next append would write to.
func (l *DailyLogger) TodayPath() string {
	return filepath.Join(l.dir, DayFileName(l.now(), l.loc))
}

// Append marshals entry and writes it as one line to today's file.
func (l *DailyLogger) Append(entry any) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureTodayLocked(); err != nil {
		return err
	}

	if _, err := l.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// RotateToday closes and rotates today's file to the next free numbered
// suffix. Returns the rotated path, or "" when there was nothing to rotate.
// The next append reopens a fresh file for the day.
func (l *DailyLogger) RotateToday() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closeLocked()
	path := filepath.Join(l.dir, DayFileName(l.now(), l.loc))
	rotated, ok, err := Rotate(path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return rotated, nil
}

// Close closes the underlying file. The logger remains usable; the next
// append reopens it.
func (l *DailyLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
	return nil
}

func (l *DailyLogger) ensureTodayLocked() error {
	today := l.now().In(l.loc).Format(DayFormat)
	if l.f != nil && l.curDate == today {
		return nil
	}
	l.closeLocked()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(l.dir, today+".jsonl")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	l.f = f
	l.curDate = today
	return nil
}

func (l *DailyLogger) closeLocked() {
	if l.f != nil {
		l.f.Close()
		l.f = nil
		l.curDate = ""
	}
}
