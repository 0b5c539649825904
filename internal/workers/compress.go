// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package workers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/regattahq/tracker/internal/logging"
	"github.com/regattahq/tracker/internal/metrics"
	"github.com/regattahq/tracker/internal/storage"
)

const (
	// DefaultCompressInterval is how often the compressor checks for new
	// log data.
	DefaultCompressInterval = 10 * time.Second

	// DefaultLiveWindow is how far back the live gzip view reaches.
	DefaultLiveWindow = 20 * time.Minute
)

// CompressService keeps the gzip views of one event's current day log
// fresh: a live view trimmed to the recent window for map replays, and a
// verbatim full view for downloads. Only today's file is recompressed;
// rotated segments are immutable.
type CompressService struct {
	eid      int
	logDir   string
	loc      *time.Location
	interval time.Duration
	window   time.Duration
	log      zerolog.Logger

	// lastMtime skips recompression when the file has not grown. Keyed by
	// filename so a day change naturally misses.
	lastMtime map[string]time.Time

	// now is replaceable for tests.
	now func() time.Time
}

// NewCompressService creates the service. Zero interval and window take
// the defaults.
func NewCompressService(eid int, logDir string, loc *time.Location, interval, window time.Duration) *CompressService {
	if interval <= 0 {
		interval = DefaultCompressInterval
	}
	if window <= 0 {
		window = DefaultLiveWindow
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CompressService{
		eid:       eid,
		logDir:    logDir,
		loc:       loc,
		interval:  interval,
		window:    window,
		log:       logging.WithComponent("compress").With().Int("eid", eid).Logger(),
		lastMtime: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Serve compresses on every tick until the context is canceled.
func (s *CompressService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			metrics.WorkerRunsTotal.WithLabelValues("compress").Inc()
			if err := s.runOnce(); err != nil {
				metrics.WorkerErrorsTotal.WithLabelValues("compress").Inc()
				s.log.Error().Err(err).Msg("Compression failed")
			}
		}
	}
}

// runOnce compresses today's log if it changed since the last pass.
func (s *CompressService) runOnce() error {
	now := s.now()
	name := storage.DayFileName(now, s.loc)
	path := filepath.Join(s.logDir, name)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if last, ok := s.lastMtime[name]; ok && !info.ModTime().After(last) {
		return nil
	}

	cutoff := now.Add(-s.window).Unix()
	live, full, err := storage.CompressDay(path, cutoff)
	if err != nil {
		return err
	}
	s.lastMtime[name] = info.ModTime()
	s.log.Debug().
		Int("live_lines", live).
		Int("full_lines", full).
		Str("file", name).
		Msg("Compressed track log")
	return nil
}

func (s *CompressService) String() string {
	return fmt.Sprintf("compress-eid%d", s.eid)
}
