// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

// Package config loads server configuration from layered sources with
// koanf v2. Precedence, lowest to highest: built-in defaults,
// settings.json, TRACKER_* environment variables, command-line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/regattahq/tracker/internal/logging"
)

// DefaultSettingsFile is the settings file read when --settings is not
// given. A missing default file is not an error.
const DefaultSettingsFile = "settings.json"

// SettingsPathEnvVar overrides the settings file path.
const SettingsPathEnvVar = "TRACKER_SETTINGS"

// Config is the full server configuration. The koanf keys double as the
// settings.json schema, which is flat except for the logging block.
type Config struct {
	// Port is the UDP ingest port.
	Port int `koanf:"port"`

	// HTTPPort is the API/static port. 0 means same as Port.
	HTTPPort int `koanf:"http_port"`

	// NoHTTP disables the HTTP server entirely (UDP-only deployments).
	NoHTTP bool `koanf:"no_http"`

	// StaticDir is the web UI directory. In multi-event mode it is also
	// the root under which per-event data directories live.
	StaticDir string `koanf:"static_dir"`

	// DataDir, when set, rebases logs/, events.json, users.json,
	// course.json and current_positions.json under one root. Paths given
	// explicitly keep their value.
	DataDir string `koanf:"data_dir"`

	// EventsFile is the event catalog (multi-event mode).
	EventsFile string `koanf:"events_file"`

	// ManagerPassword enables multi-event mode and guards the
	// /api/manage endpoints.
	ManagerPassword string `koanf:"manager_password"`

	// AdminPassword guards the per-event admin endpoints in legacy
	// single-event mode.
	AdminPassword string `koanf:"admin_password"`

	// TrackerPassword, when set, is required in every report (legacy
	// single-event mode).
	TrackerPassword string `koanf:"tracker_password"`

	// LogDir holds the daily track logs (legacy single-event mode).
	LogDir string `koanf:"log_dir"`

	// UsersFile stores sailor display overrides (legacy mode).
	UsersFile string `koanf:"users_file"`

	// CourseFile is the published course (legacy mode).
	CourseFile string `koanf:"course_file"`

	// PositionsFile is the live snapshot served to the web UI.
	PositionsFile string `koanf:"current"`

	// NoCurrent disables the live snapshot file.
	NoCurrent bool `koanf:"no_current"`

	// NoTrackLogs disables daily track logging.
	NoTrackLogs bool `koanf:"no_track_logs"`

	// RawLog, when set, appends every accepted UDP report to this file
	// as JSON lines. Kept for old post-processing scripts.
	RawLog string `koanf:"log"`

	Logging logging.Config `koanf:"logging"`
}

// defaultConfig mirrors what an unconfigured deployment has always done:
// UDP on 41234, files in the working directory, logs/ for track history.
func defaultConfig() *Config {
	return &Config{
		Port:          41234,
		HTTPPort:      0,
		StaticDir:     "html",
		EventsFile:    "events.json",
		LogDir:        "logs",
		UsersFile:     "users.json",
		CourseFile:    "course.json",
		PositionsFile: "current_positions.json",
		Logging: logging.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// MultiEvent reports whether the server runs in multi-event mode.
func (c *Config) MultiEvent() bool {
	return c.ManagerPassword != ""
}

// HTTPEnabled reports whether the HTTP server should start.
func (c *Config) HTTPEnabled() bool {
	return !c.NoHTTP
}

// EffectiveHTTPPort resolves the HTTP port default (same as UDP).
func (c *Config) EffectiveHTTPPort() int {
	if c.HTTPPort != 0 {
		return c.HTTPPort
	}
	return c.Port
}

// UDPAddr returns the UDP listen address.
func (c *Config) UDPAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// HTTPAddr returns the HTTP listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.EffectiveHTTPPort())
}

// applyDataDir rebases the data file paths under DataDir. explicit
// reports whether a key was set by the settings file, environment or a
// flag; those keep their configured value.
func (c *Config) applyDataDir(explicit func(key string) bool) {
	if c.DataDir == "" {
		return
	}
	if !explicit("current") {
		c.PositionsFile = filepath.Join(c.DataDir, "current_positions.json")
	}
	if !explicit("log_dir") {
		c.LogDir = filepath.Join(c.DataDir, "logs")
	}
	if !explicit("course_file") {
		c.CourseFile = filepath.Join(c.DataDir, "course.json")
	}
	if !explicit("users_file") {
		c.UsersFile = filepath.Join(c.DataDir, "users.json")
	}
	if !explicit("events_file") {
		c.EventsFile = filepath.Join(c.DataDir, "events.json")
	}
}

// Validate checks cross-field constraints. It returns the first problem
// found; startup should treat any error as fatal.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if c.HTTPPort != 0 && (c.HTTPPort < 1 || c.HTTPPort > 65535) {
		return fmt.Errorf("http_port %d out of range 1-65535", c.HTTPPort)
	}
	if c.MultiEvent() {
		if c.NoHTTP {
			return errors.New("manager_password requires HTTP to be enabled")
		}
		if c.StaticDir == "" {
			return errors.New("multi-event mode requires static_dir")
		}
	} else if !c.NoHTTP && c.AdminPassword == "" {
		return errors.New("admin_password is required when HTTP is enabled " +
			"(set no_http, or set manager_password for multi-event mode)")
	}
	return nil
}
