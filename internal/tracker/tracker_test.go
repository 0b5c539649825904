// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package tracker

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/regattahq/tracker/internal/models"
	"github.com/regattahq/tracker/internal/storage"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	cfg := DefaultLayout(1, t.TempDir(), time.UTC)
	tr, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func report(id string, ts int64, lat, lon float64) *models.Report {
	return &models.Report{
		ID:      id,
		TS:      ts,
		Lat:     lat,
		Lon:     lon,
		Role:    "sailor",
		Version: "1.0",
		Battery: 80,
		Signal:  3,
	}
}

func readLogLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestProcessUpdatesLiveTable(t *testing.T) {
	tr := newTestTracker(t)

	require.True(t, tr.Process(report("alice", 100, -33.85, 151.21), "10.0.0.1", "udp"))

	live := tr.Live()
	require.Len(t, live, 1)
	entry := live["alice"]
	require.Equal(t, -33.85, entry.Lat)
	require.Equal(t, 151.21, entry.Lon)
	require.Equal(t, "10.0.0.1", entry.SrcIP)
	require.Equal(t, int64(100), entry.TS)
}

func TestProcessRejectsDuplicates(t *testing.T) {
	tr := newTestTracker(t)

	require.True(t, tr.Process(report("alice", 100, 1, 1), "ip", "udp"))
	require.False(t, tr.Process(report("alice", 100, 2, 2), "ip", "udp"))
	require.False(t, tr.Process(report("alice", 50, 3, 3), "ip", "udp"))
	require.True(t, tr.Process(report("alice", 101, 4, 4), "ip", "udp"))

	entry := tr.Live()["alice"]
	require.Equal(t, 4.0, entry.Lat)
	require.Equal(t, int64(101), entry.TS)
}

func TestProcessWritesSnapshotFile(t *testing.T) {
	dir := t.TempDir()
	tr, err := New(DefaultLayout(1, dir, time.UTC))
	require.NoError(t, err)
	defer tr.Close()

	tr.Process(report("bob", 10, 5, 6), "ip", "http")

	var snap Snapshot
	require.NoError(t, storage.ReadJSON(filepath.Join(dir, "current_positions.json"), &snap))
	require.Contains(t, snap.Sailors, "bob")
	require.NotZero(t, snap.Updated)
	require.NotEmpty(t, snap.UpdatedISO)
}

func TestProcessLogsSingleReport(t *testing.T) {
	tr := newTestTracker(t)

	tr.Process(report("alice", 100, -33.85, 151.21), "ip", "udp")

	lines := readLogLines(t, tr.Daily().TodayPath())
	require.Len(t, lines, 1)
	require.Equal(t, "alice", lines[0]["id"])
	require.Equal(t, -33.85, lines[0]["lat"])
	require.NotContains(t, lines[0], "pos")
	require.Contains(t, lines[0], "recv_ts")
}

func TestProcessBatchLogsOneLine(t *testing.T) {
	tr := newTestTracker(t)

	// No top-level ts: the batch's last sample is the canonical fix.
	spd := 4.2
	rep := report("alice", 0, 0, 0)
	rep.Pos = []models.Sample{
		{TS: 100, Lat: 1, Lon: 2},
		{TS: 200, Lat: 3, Lon: 4, Speed: &spd},
		{TS: 300, Lat: 5, Lon: 6},
	}
	require.True(t, tr.Process(rep, "ip", "http"))

	lines := readLogLines(t, tr.Daily().TodayPath())
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "pos")
	require.NotContains(t, lines[0], "lat")
	require.Equal(t, 300.0, lines[0]["ts"])
	pos := lines[0]["pos"].([]any)
	require.Len(t, pos, 3)

	// The live table shows the newest batched fix and its timestamp.
	entry := tr.Live()["alice"]
	require.Equal(t, 5.0, entry.Lat)
	require.Equal(t, 6.0, entry.Lon)
	require.Equal(t, int64(300), entry.TS)

	// The watermark advanced to the last sample: an older batch is a
	// duplicate, a newer one is not.
	stale := report("alice", 0, 0, 0)
	stale.Pos = []models.Sample{{TS: 250, Lat: 7, Lon: 8}}
	require.False(t, tr.Process(stale, "ip", "http"))

	next := report("alice", 0, 0, 0)
	next.Pos = []models.Sample{{TS: 301, Lat: 7, Lon: 8}}
	require.True(t, tr.Process(next, "ip", "http"))
	require.Equal(t, int64(301), tr.Live()["alice"].TS)
}

func TestProcessDuplicateSkipsLog(t *testing.T) {
	tr := newTestTracker(t)

	tr.Process(report("alice", 100, 1, 1), "ip", "udp")
	tr.Process(report("alice", 100, 1, 1), "ip", "udp")

	lines := readLogLines(t, tr.Daily().TodayPath())
	require.Len(t, lines, 1)
}

func TestHeartRateOnlyWhenPositive(t *testing.T) {
	tr := newTestTracker(t)

	zero, sixty := 0, 60
	rep := report("a", 1, 0, 0)
	rep.HeartRate = &zero
	tr.Process(rep, "ip", "udp")
	require.Nil(t, tr.Live()["a"].HeartRate)

	rep2 := report("a", 2, 0, 0)
	rep2.HeartRate = &sixty
	tr.Process(rep2, "ip", "udp")
	require.NotNil(t, tr.Live()["a"].HeartRate)
	require.Equal(t, 60, *tr.Live()["a"].HeartRate)
}

func TestRestartRestoresStateAndWatermarks(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultLayout(1, dir, time.UTC)

	tr, err := New(cfg)
	require.NoError(t, err)
	tr.Process(report("alice", 500, 7, 8), "ip", "udp")
	require.NoError(t, tr.Close())

	tr2, err := New(cfg)
	require.NoError(t, err)
	defer tr2.Close()

	require.Contains(t, tr2.Live(), "alice")
	// A replay at or below the restored watermark stays a duplicate.
	require.False(t, tr2.Process(report("alice", 500, 9, 9), "ip", "udp"))
	require.True(t, tr2.Process(report("alice", 501, 9, 9), "ip", "udp"))
}

func TestClearTracks(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultLayout(1, dir, time.UTC)
	tr, err := New(cfg)
	require.NoError(t, err)
	defer tr.Close()

	tr.Process(report("alice", 100, 1, 1), "ip", "udp")
	logPath := tr.Daily().TodayPath()

	require.NoError(t, tr.ClearTracks())

	require.Empty(t, tr.Live())
	// Old fixes are accepted again after a clear.
	require.True(t, tr.Process(report("alice", 50, 2, 2), "ip", "udp"))

	// The pre-clear log was rotated aside.
	_, err = os.Stat(logPath + ".1")
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, storage.ReadJSON(cfg.PositionsFile, &snap))
	require.Contains(t, snap.Sailors, "alice")
}

func TestOverridesApplyToSnapshot(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultLayout(1, dir, time.UTC)
	tr, err := New(cfg)
	require.NoError(t, err)
	defer tr.Close()

	tr.Process(report("alice", 100, 1, 1), "ip", "udp")
	require.NoError(t, tr.SetOverride("alice", Override{Name: "Alice B", Role: "support", Hidden: true}))

	entry := tr.Live()["alice"]
	require.Equal(t, "Alice B", entry.Name)
	require.Equal(t, "support", entry.Role)
	require.True(t, entry.Hidden)

	var snap Snapshot
	require.NoError(t, storage.ReadJSON(cfg.PositionsFile, &snap))
	require.Equal(t, "Alice B", snap.Sailors["alice"].Name)

	require.NoError(t, tr.RemoveOverride("alice"))
	require.Empty(t, tr.Live()["alice"].Name)
	require.Equal(t, "sailor", tr.Live()["alice"].Role)
}

func TestOverridesSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultLayout(1, dir, time.UTC)

	tr, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, tr.SetOverride("bob", Override{Name: "Bob"}))
	require.NoError(t, tr.Close())

	tr2, err := New(cfg)
	require.NoError(t, err)
	defer tr2.Close()
	require.Equal(t, "Bob", tr2.Overrides()["bob"].Name)
}

func TestRestartDropsDisplayFieldsFromLiveTable(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultLayout(1, dir, time.UTC)

	tr, err := New(cfg)
	require.NoError(t, err)
	tr.Process(report("alice", 100, 1, 1), "ip", "udp")
	require.NoError(t, tr.SetOverride("alice", Override{Name: "Alice B"}))
	require.NoError(t, tr.Close())

	// Drop the override file; the restored table must not keep the baked-in
	// display name from the snapshot.
	require.NoError(t, os.Remove(cfg.UsersFile))

	tr2, err := New(cfg)
	require.NoError(t, err)
	defer tr2.Close()
	require.Empty(t, tr2.Live()["alice"].Name)
}

func TestCourseLifecycle(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultLayout(1, dir, time.UTC)
	tr, err := New(cfg)
	require.NoError(t, err)
	defer tr.Close()

	_, ok, err := tr.ReadCourse()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, tr.SaveCourse(map[string]any{"marks": []any{"start", "top"}}))
	data, ok, err := tr.ReadCourse()
	require.NoError(t, err)
	require.True(t, ok)

	var course map[string]any
	require.NoError(t, json.Unmarshal(data, &course))
	require.Contains(t, course, "updated")
	require.Contains(t, course, "updated_iso")
	require.Contains(t, course, "marks")

	// Saving again rotates the first version aside.
	require.NoError(t, tr.SaveCourse(map[string]any{"marks": []any{}}))
	_, err = os.Stat(cfg.CourseFile + ".1")
	require.NoError(t, err)

	require.NoError(t, tr.DeleteCourse())
	_, ok, err = tr.ReadCourse()
	require.NoError(t, err)
	require.False(t, ok)
	_, err = os.Stat(cfg.CourseFile + ".2")
	require.NoError(t, err)
}

func TestValidOverrideRole(t *testing.T) {
	require.True(t, ValidOverrideRole("sailor"))
	require.True(t, ValidOverrideRole("support"))
	require.True(t, ValidOverrideRole("spectator"))
	require.False(t, ValidOverrideRole("admin"))
	require.False(t, ValidOverrideRole(""))
}

func TestManagerCreatesLazily(t *testing.T) {
	base := t.TempDir()
	var built []int
	m := NewManager(func(eid int) (*Tracker, error) {
		built = append(built, eid)
		return New(DefaultLayout(eid, filepath.Join(base, "ev"), time.UTC))
	})
	defer m.Close()

	_, ok := m.Peek(1)
	require.False(t, ok)

	t1, err := m.Get(1)
	require.NoError(t, err)
	t1b, err := m.Get(1)
	require.NoError(t, err)
	require.Same(t, t1, t1b)
	require.Equal(t, []int{1}, built)

	got, ok := m.Peek(1)
	require.True(t, ok)
	require.Same(t, t1, got)
}
