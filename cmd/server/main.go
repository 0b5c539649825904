// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

// Package main is the tracker server: UDP and HTTP ingest of position
// reports from sailor phones, a live position snapshot and daily track
// logs per event, and an HTTP API for courses, sailor overrides and
// event management.
//
// The server runs in one of two modes:
//
//   - Legacy single-event mode (default): one implicit event, global
//     admin and tracker passwords, data files in the working directory.
//   - Multi-event mode (--manager-password): events live in events.json,
//     each with its own passwords, timezone and data directory under
//     the static root.
//
// Configuration is loaded via koanf with layered sources (highest
// priority wins): command-line flags, TRACKER_* environment variables,
// settings.json, built-in defaults.
//
// On SIGINT or SIGTERM the supervisor tree drains in-flight work and
// exits cleanly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/regattahq/tracker/internal/api"
	"github.com/regattahq/tracker/internal/config"
	"github.com/regattahq/tracker/internal/events"
	"github.com/regattahq/tracker/internal/ingest"
	"github.com/regattahq/tracker/internal/logging"
	"github.com/regattahq/tracker/internal/ratelimit"
	"github.com/regattahq/tracker/internal/supervisor"
	"github.com/regattahq/tracker/internal/tracker"
	"github.com/regattahq/tracker/internal/workers"
)

func main() {
	fs := flag.NewFlagSet("tracker", flag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:]) // ExitOnError: Parse never returns an error

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracker: %v\n", err)
		os.Exit(2)
	}

	logging.Init(cfg.Logging)

	logging.Info().
		Int("udp_port", cfg.Port).
		Bool("multi_event", cfg.MultiEvent()).
		Msg("Starting tracker server")

	var (
		dir      events.Directory
		reg      *events.Registry
		trackers *tracker.Manager
	)

	if cfg.MultiEvent() {
		reg, err = events.NewRegistry(cfg.EventsFile, cfg.StaticDir, cfg.ManagerPassword)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to load event catalog")
		}
		dir = reg
		trackers = tracker.NewManager(func(eid int) (*tracker.Tracker, error) {
			ev, ok := reg.Get(eid)
			if !ok {
				return nil, fmt.Errorf("event %d not found", eid)
			}
			return tracker.New(tracker.DefaultLayout(eid, reg.EventDir(eid), ev.Location()))
		})
		logging.Info().
			Str("events_file", cfg.EventsFile).
			Str("data_root", cfg.StaticDir).
			Int("events", len(reg.IDs())).
			Msg("Multi-event mode enabled")
	} else {
		single := events.NewSingleEvent(cfg.AdminPassword, cfg.TrackerPassword, "")
		dir = single
		trackers = tracker.NewManager(func(eid int) (*tracker.Tracker, error) {
			ev, ok := single.Get(eid)
			if !ok {
				return nil, fmt.Errorf("event %d not found", eid)
			}
			return tracker.New(tracker.Config{
				EID:             eid,
				PositionsFile:   cfg.PositionsFile,
				CourseFile:      cfg.CourseFile,
				UsersFile:       cfg.UsersFile,
				LogDir:          cfg.LogDir,
				Location:        ev.Location(),
				DisableSnapshot: cfg.NoCurrent,
				DisableLogs:     cfg.NoTrackLogs,
			})
		})
		// Create the tracker up front so the snapshot file exists before
		// the first report and bad paths fail startup.
		if _, err := trackers.Get(events.LegacyEID); err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize tracker")
		}
		if cfg.TrackerPassword != "" {
			logging.Info().Msg("Tracker password required in reports")
		}
	}
	defer trackers.Close()

	limiter := ratelimit.New(ratelimit.DefaultWindow)
	router := ingest.NewRouter(dir, trackers, limiter, !cfg.MultiEvent())

	udp, err := ingest.NewUDPService(cfg.UDPAddr(), router)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to bind UDP port")
	}

	if cfg.RawLog != "" {
		raw, err := ingest.OpenRawLog(cfg.RawLog)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open raw log")
		}
		defer raw.Close()
		udp.SetRawLog(raw)
		logging.Info().Str("path", cfg.RawLog).Msg("Raw report log enabled")
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddIngestService(udp)
	tree.AddIngestService(ratelimit.NewSweepService(limiter, time.Minute))

	addWorkers(tree, cfg, reg)

	if cfg.HTTPEnabled() {
		srv := api.NewServer(api.Config{
			Directory: dir,
			Registry:  reg,
			Trackers:  trackers,
			Limiter:   limiter,
			Ingest:    router,
			StaticDir: cfg.StaticDir,
			Legacy:    !cfg.MultiEvent(),
		})
		httpSvc, err := api.NewHTTPService(cfg.HTTPAddr(), srv.Routes(api.DefaultMiddlewareConfig()))
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to bind HTTP port")
		}
		tree.AddAPIService(httpSvc)
	} else {
		logging.Info().Msg("HTTP server disabled")
	}

	if cfg.MultiEvent() {
		tree.AddWorkerService(workers.NewMidnightService(reg, trackers, workers.DefaultMidnightInterval))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Supervisor tree failed")
	}
	logging.Info().Msg("Shutdown complete")
}

// addWorkers attaches the per-event summary and compression services. In
// multi-event mode new events get their workers as they are created.
func addWorkers(tree *supervisor.Tree, cfg *config.Config, reg *events.Registry) {
	if reg == nil {
		if cfg.NoTrackLogs {
			return
		}
		ev, _ := events.NewSingleEvent("", "", "").Get(events.LegacyEID)
		tree.AddWorkerService(workers.NewSummaryService(
			events.LegacyEID, cfg.LogDir, cfg.CourseFile, workers.DefaultSummaryInterval))
		tree.AddWorkerService(workers.NewCompressService(
			events.LegacyEID, cfg.LogDir, ev.Location(), workers.DefaultCompressInterval, workers.DefaultLiveWindow))
		return
	}

	add := func(eid int) {
		ev, ok := reg.Get(eid)
		if !ok {
			return
		}
		eventDir := reg.EventDir(eid)
		logDir := reg.LogDir(eid)
		tree.AddWorkerService(workers.NewSummaryService(
			eid, logDir, filepath.Join(eventDir, "course.json"), workers.DefaultSummaryInterval))
		tree.AddWorkerService(workers.NewCompressService(
			eid, logDir, ev.Location(), workers.DefaultCompressInterval, workers.DefaultLiveWindow))
	}

	for _, eid := range reg.IDs() {
		add(eid)
	}
	reg.OnCreate = add
}
