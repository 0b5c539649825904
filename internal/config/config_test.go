// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return Load(fs)
}

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t, "--admin-password", "secret")
	require.NoError(t, err)

	require.Equal(t, 41234, cfg.Port)
	require.Equal(t, 41234, cfg.EffectiveHTTPPort())
	require.Equal(t, "html", cfg.StaticDir)
	require.Equal(t, "logs", cfg.LogDir)
	require.Equal(t, "users.json", cfg.UsersFile)
	require.Equal(t, "course.json", cfg.CourseFile)
	require.Equal(t, "current_positions.json", cfg.PositionsFile)
	require.Equal(t, "events.json", cfg.EventsFile)
	require.Equal(t, "info", cfg.Logging.Level)
	require.False(t, cfg.MultiEvent())
	require.True(t, cfg.HTTPEnabled())
	require.Equal(t, ":41234", cfg.UDPAddr())
	require.Equal(t, ":41234", cfg.HTTPAddr())
}

func TestRawLogFlagAndShorthand(t *testing.T) {
	cfg, err := load(t, "--admin-password", "pw", "--log", "raw.jsonl")
	require.NoError(t, err)
	require.Equal(t, "raw.jsonl", cfg.RawLog)

	// Old launch scripts use the short form.
	cfg, err = load(t, "--admin-password", "pw", "-l", "raw.jsonl")
	require.NoError(t, err)
	require.Equal(t, "raw.jsonl", cfg.RawLog)
}

func TestLoadSettingsFile(t *testing.T) {
	path := writeSettings(t, `{
		"port": 5005,
		"http_port": 8080,
		"admin_password": "fromfile",
		"log_dir": "/srv/tracks",
		"logging": {"level": "debug"}
	}`)

	cfg, err := load(t, "--settings", path)
	require.NoError(t, err)

	require.Equal(t, 5005, cfg.Port)
	require.Equal(t, 8080, cfg.EffectiveHTTPPort())
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "fromfile", cfg.AdminPassword)
	require.Equal(t, "/srv/tracks", cfg.LogDir)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverridesSettingsFile(t *testing.T) {
	path := writeSettings(t, `{"port": 5005, "admin_password": "fromfile"}`)
	t.Setenv("TRACKER_PORT", "6006")
	t.Setenv("TRACKER_ADMIN_PASSWORD", "fromenv")
	t.Setenv("TRACKER_LOG_LEVEL", "warn")

	cfg, err := load(t, "--settings", path)
	require.NoError(t, err)

	require.Equal(t, 6006, cfg.Port)
	require.Equal(t, "fromenv", cfg.AdminPassword)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestFlagsOverrideEverything(t *testing.T) {
	path := writeSettings(t, `{"port": 5005, "admin_password": "fromfile"}`)
	t.Setenv("TRACKER_PORT", "6006")

	cfg, err := load(t, "--settings", path, "--port", "7007", "--log-level", "error")
	require.NoError(t, err)

	require.Equal(t, 7007, cfg.Port)
	require.Equal(t, "fromfile", cfg.AdminPassword)
	require.Equal(t, "error", cfg.Logging.Level)
}

func TestUnrelatedEnvIgnored(t *testing.T) {
	t.Setenv("TRACKER_FAVOURITE_COLOUR", "teal")

	cfg, err := load(t, "--admin-password", "secret")
	require.NoError(t, err)
	require.Equal(t, 41234, cfg.Port)
}

func TestDataDirRebasesPaths(t *testing.T) {
	cfg, err := load(t, "--admin-password", "secret", "--data-dir", "/srv/regatta")
	require.NoError(t, err)

	require.Equal(t, filepath.Join("/srv/regatta", "logs"), cfg.LogDir)
	require.Equal(t, filepath.Join("/srv/regatta", "users.json"), cfg.UsersFile)
	require.Equal(t, filepath.Join("/srv/regatta", "course.json"), cfg.CourseFile)
	require.Equal(t, filepath.Join("/srv/regatta", "current_positions.json"), cfg.PositionsFile)
	require.Equal(t, filepath.Join("/srv/regatta", "events.json"), cfg.EventsFile)
}

func TestDataDirKeepsExplicitPaths(t *testing.T) {
	path := writeSettings(t, `{"admin_password": "secret", "log_dir": "/mnt/tracks"}`)

	cfg, err := load(t, "--settings", path,
		"--data-dir", "/srv/regatta", "--users-file", "/etc/overrides.json")
	require.NoError(t, err)

	require.Equal(t, "/mnt/tracks", cfg.LogDir)
	require.Equal(t, "/etc/overrides.json", cfg.UsersFile)
	require.Equal(t, filepath.Join("/srv/regatta", "course.json"), cfg.CourseFile)
}

func TestMissingExplicitSettingsFile(t *testing.T) {
	_, err := load(t, "--settings", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestMalformedSettingsFile(t *testing.T) {
	path := writeSettings(t, `{"port": `)
	_, err := load(t, "--settings", path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	// Legacy mode with HTTP needs an admin password.
	_, err := load(t)
	require.ErrorContains(t, err, "admin_password")

	// UDP-only deployments do not.
	cfg, err := load(t, "--no-http")
	require.NoError(t, err)
	require.False(t, cfg.HTTPEnabled())

	// Multi-event mode needs HTTP.
	_, err = load(t, "--manager-password", "mgr", "--no-http")
	require.ErrorContains(t, err, "manager_password requires HTTP")

	cfg, err = load(t, "--manager-password", "mgr")
	require.NoError(t, err)
	require.True(t, cfg.MultiEvent())

	_, err = load(t, "--admin-password", "secret", "--port", "99999")
	require.ErrorContains(t, err, "out of range")
}

func TestSettingsPathFromEnv(t *testing.T) {
	path := writeSettings(t, `{"port": 5151, "admin_password": "secret"}`)
	t.Setenv(SettingsPathEnvVar, path)

	cfg, err := load(t)
	require.NoError(t, err)
	require.Equal(t, 5151, cfg.Port)
}
