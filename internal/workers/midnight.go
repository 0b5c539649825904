// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/regattahq/tracker/internal/events"
	"github.com/regattahq/tracker/internal/logging"
	"github.com/regattahq/tracker/internal/metrics"
	"github.com/regattahq/tracker/internal/storage"
	"github.com/regattahq/tracker/internal/tracker"
)

// DefaultMidnightInterval is the poll interval of the midnight clearer.
const DefaultMidnightInterval = time.Minute

// MidnightService clears every event's tracks shortly after local midnight
// in that event's timezone, so each race day starts with an empty map.
// One instance covers all events; it runs only in multi-event mode.
type MidnightService struct {
	dir      events.Directory
	trackers *tracker.Manager
	interval time.Duration
	log      zerolog.Logger

	// lastCleared remembers the local date each event was last cleared on,
	// so one midnight only ever triggers one clear.
	lastCleared map[int]string

	// now is replaceable for tests.
	now func() time.Time
}

// NewMidnightService creates the service. A zero interval uses
// DefaultMidnightInterval.
func NewMidnightService(dir events.Directory, trackers *tracker.Manager, interval time.Duration) *MidnightService {
	if interval <= 0 {
		interval = DefaultMidnightInterval
	}
	return &MidnightService{
		dir:         dir,
		trackers:    trackers,
		interval:    interval,
		log:         logging.WithComponent("midnight"),
		lastCleared: make(map[int]string),
		now:         time.Now,
	}
}

// Serve polls until the context is canceled.
func (s *MidnightService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			metrics.WorkerRunsTotal.WithLabelValues("midnight").Inc()
			s.runOnce()
		}
	}
}

// runOnce checks every event against its local clock and clears the ones
// just past midnight.
func (s *MidnightService) runOnce() {
	now := s.now()
	for _, eid := range s.dir.IDs() {
		ev, ok := s.dir.Get(eid)
		if !ok || ev.Archived {
			continue
		}
		local := now.In(ev.Location())
		today := local.Format(storage.DayFormat)
		if s.lastCleared[eid] == today {
			continue
		}

		// Clear within the first two poll intervals after midnight; a
		// single missed tick cannot skip the whole day.
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
		if local.Sub(midnight) >= 2*s.interval {
			continue
		}

		tr, err := s.trackers.Get(eid)
		if err != nil {
			metrics.WorkerErrorsTotal.WithLabelValues("midnight").Inc()
			s.log.Error().Err(err).Int("eid", eid).Msg("Tracker unavailable for midnight clear")
			continue
		}
		if err := tr.ClearTracks(); err != nil {
			metrics.WorkerErrorsTotal.WithLabelValues("midnight").Inc()
			s.log.Error().Err(err).Int("eid", eid).Msg("Midnight clear failed")
			continue
		}
		s.lastCleared[eid] = today
		s.log.Info().Int("eid", eid).Str("date", today).Msg("Cleared tracks at local midnight")
	}
}

func (s *MidnightService) String() string {
	return "midnight-clear"
}
