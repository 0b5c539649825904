// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/basicflag"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// RegisterFlags defines the command-line surface on fs. Defaults are
// zero values on purpose: an unset flag must not override settings.json
// or the environment.
func RegisterFlags(fs *flag.FlagSet) {
	fs.Int("port", 0, "UDP port to listen on (default 41234)")
	fs.Int("http-port", 0, "HTTP port for API and static files (default: same as UDP port)")
	fs.Bool("no-http", false, "disable the HTTP server")
	fs.String("static-dir", "", "directory to serve static files from (default html)")
	fs.String("data-dir", "", "root directory for data files (rebases logs/, events.json, users.json, course.json, current_positions.json)")
	fs.String("events-file", "", "event catalog file (default events.json)")
	fs.String("manager-password", "", "manager password; enables multi-event mode")
	fs.String("admin-password", "", "admin password for the HTTP API (legacy single-event mode)")
	fs.String("tracker-password", "", "password required in tracker reports (default: none)")
	fs.String("log-dir", "", "directory for daily track logs (default logs)")
	fs.Bool("no-track-logs", false, "disable daily track logging")
	fs.String("users-file", "", "sailor override file (default users.json)")
	fs.String("course-file", "", "course file (default course.json)")
	fs.String("current", "", "live positions file (default current_positions.json)")
	fs.Bool("no-current", false, "disable the live positions file")
	fs.String("log", "", "append accepted UDP reports to this file (JSON lines)")
	fs.String("l", "", "shorthand for -log")
	fs.String("settings", "", "settings file (default settings.json)")
	fs.String("log-level", "", "log level: trace, debug, info, warn, error")
}

// Load builds the configuration from defaults, the settings file, the
// environment and the parsed flag set, in that order of precedence.
func Load(fs *flag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// overrides collects the file and env layers so data-dir rebasing
	// can tell configured paths from defaulted ones.
	overrides := koanf.New(".")

	settingsPath, explicitSettings := settingsFile(fs)
	if settingsPath != "" {
		if _, err := os.Stat(settingsPath); err == nil {
			if err := overrides.Load(file.Provider(settingsPath), kjson.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", settingsPath, err)
			}
		} else if explicitSettings {
			return nil, fmt.Errorf("settings file %s: %w", settingsPath, err)
		}
	}

	if err := overrides.Load(env.Provider("TRACKER_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Merge(overrides); err != nil {
		return nil, fmt.Errorf("merge configuration: %w", err)
	}

	// Every key already exists from the defaults layer, so basicflag
	// only merges flags that were set on the command line.
	if err := k.Load(basicflag.ProviderWithValue(fs, ".", flagTransform, k), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	explicit := make(map[string]bool)
	for _, key := range overrides.Keys() {
		explicit[key] = true
	}
	fs.Visit(func(f *flag.Flag) {
		if key, _ := flagTransform(f.Name, ""); key != "" {
			explicit[key] = true
		}
	})

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	cfg.applyDataDir(func(key string) bool { return explicit[key] })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// settingsFile resolves the settings path: --settings flag, then the
// TRACKER_SETTINGS variable, then settings.json. The bool reports
// whether the path was given explicitly, in which case a missing file
// is an error instead of a skip.
func settingsFile(fs *flag.FlagSet) (string, bool) {
	if f := fs.Lookup("settings"); f != nil && f.Value.String() != "" {
		return f.Value.String(), true
	}
	if p := os.Getenv(SettingsPathEnvVar); p != "" {
		return p, true
	}
	return DefaultSettingsFile, false
}

// envMappings maps TRACKER_* variables (lowercased, prefix stripped) to
// configuration keys. Unmapped variables are ignored so unrelated
// environment noise cannot leak into the config.
var envMappings = map[string]string{
	"port":             "port",
	"http_port":        "http_port",
	"no_http":          "no_http",
	"static_dir":       "static_dir",
	"data_dir":         "data_dir",
	"events_file":      "events_file",
	"manager_password": "manager_password",
	"admin_password":   "admin_password",
	"tracker_password": "tracker_password",
	"log_dir":          "log_dir",
	"no_track_logs":    "no_track_logs",
	"users_file":       "users_file",
	"course_file":      "course_file",
	"current":          "current",
	"no_current":       "no_current",
	"raw_log":          "log",
	"log_level":        "logging.level",
	"log_format":       "logging.format",
	"log_caller":       "logging.caller",
}

func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "TRACKER_"))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// flagTransform maps flag names to configuration keys. Flag names use
// hyphens, settings.json keys use underscores.
func flagTransform(key, value string) (string, interface{}) {
	switch key {
	case "settings":
		// Consumed by settingsFile, not part of the config.
		return "", nil
	case "log-level":
		return "logging.level", value
	case "l":
		return "log", value
	}
	return strings.ReplaceAll(key, "-", "_"), value
}
