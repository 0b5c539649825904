// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package ingest

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/regattahq/tracker/internal/models"
)

// RawLog appends every accepted UDP report to a single JSON-lines file.
// Older deployments post-process this file with ad-hoc scripts, so the
// line keeps the report's wire field names plus receive metadata.
type RawLog struct {
	mu sync.Mutex
	f  *os.File
}

// OpenRawLog opens (or creates) the raw log for appending.
func OpenRawLog(path string) (*RawLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open raw log %s: %w", path, err)
	}
	return &RawLog{f: f}, nil
}

// Write appends one report line. The password field is never written.
func (l *RawLog) Write(rep *models.Report, srcIP string, srcPort int, recv time.Time) error {
	entry := map[string]any{
		"recv_ts":  float64(recv.UnixNano()) / 1e9,
		"src_ip":   srcIP,
		"src_port": srcPort,
		"id":       rep.ID,
		"sq":       rep.Seq,
		"ts":       rep.TS,
		"eid":      rep.EID,
		"lat":      rep.Lat,
		"lon":      rep.Lon,
		"spd":      rep.Speed,
		"hdg":      rep.Heading,
		"ast":      rep.Assist,
		"bat":      rep.Battery,
		"sig":      rep.Signal,
		"role":     rep.Role,
		"ver":      rep.Version,
		"flg":      rep.Flags,
	}
	if rep.OS != "" {
		entry["os"] = rep.OS
	}
	if rep.HeartRate != nil {
		entry["hr"] = *rep.HeartRate
	}
	if rep.DrainRate != nil {
		entry["bdr"] = *rep.DrainRate
	}
	if rep.Accuracy != nil {
		entry["hac"] = *rep.Accuracy
	}
	if rep.Charging != nil {
		entry["chg"] = *rep.Charging
	}
	if rep.PowerSave != nil {
		entry["ps"] = *rep.PowerSave
	}
	if len(rep.Pos) > 0 {
		entry["pos"] = rep.Pos
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal raw log entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("append raw log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *RawLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
