// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package workers

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/regattahq/tracker/internal/events"
	"github.com/regattahq/tracker/internal/models"
	"github.com/regattahq/tracker/internal/storage"
	"github.com/regattahq/tracker/internal/tracker"
)

func testReport(id string, ts int64) *models.Report {
	return &models.Report{ID: id, TS: ts, Role: "sailor", Version: "1.0"}
}

func writeLog(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	var data []byte
	for _, line := range lines {
		data = append(data, line...)
		data = append(data, '\n')
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func readSummary(t *testing.T, path string) DaySummary {
	t.Helper()
	var s DaySummary
	require.NoError(t, storage.ReadJSON(path, &s))
	return s
}

func TestGenerateSummaries(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "2026_01_15.jsonl",
		`{"id":"alice","ts":100,"lat":1,"lon":2}`,
		`{"id":"alice","ts":200,"lat":1,"lon":2}`,
		`{"id":"bob","ts":150,"lat":3,"lon":4}`,
		`{"no_id":true,"ts":500}`,
		`not json`,
	)
	writeLog(t, dir, "2026_01_15.jsonl.1",
		`{"id":"carol","ts":50,"lat":5,"lon":6}`,
	)
	writeLog(t, dir, "notes.txt", "ignored")

	require.NoError(t, GenerateSummaries(dir, ""))

	s := readSummary(t, filepath.Join(dir, "2026_01_15_summary.json"))
	require.Equal(t, "2026_01_15", s.Date)
	require.NotZero(t, s.Generated)
	require.Len(t, s.Logs, 2)

	// Newest segment first.
	require.Equal(t, "2026_01_15.jsonl", s.Logs[0].File)
	require.Equal(t, 3, s.Logs[0].Points)
	require.Equal(t, int64(100), s.Logs[0].StartTS)
	require.Equal(t, int64(200), s.Logs[0].EndTS)
	require.Equal(t, 2, s.Logs[0].Sailors["alice"].Points)
	require.Equal(t, int64(100), s.Logs[0].Sailors["alice"].FirstTS)
	require.Equal(t, int64(200), s.Logs[0].Sailors["alice"].LastTS)
	require.Equal(t, 1, s.Logs[0].Sailors["bob"].Points)

	require.Equal(t, "2026_01_15.jsonl.1", s.Logs[1].File)
	require.Equal(t, int64(50), s.Logs[1].StartTS)
}

func TestGenerateSummariesSkipsEmptySegments(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "2026_02_01.jsonl", `{"id":"a","ts":10}`)
	writeLog(t, dir, "2026_02_01.jsonl.1", `{"status":"no points here"}`)

	require.NoError(t, GenerateSummaries(dir, ""))

	s := readSummary(t, filepath.Join(dir, "2026_02_01_summary.json"))
	require.Len(t, s.Logs, 1)
	require.Equal(t, "2026_02_01.jsonl", s.Logs[0].File)
}

func TestGenerateSummariesSkipsFreshSummary(t *testing.T) {
	dir := t.TempDir()
	logPath := writeLog(t, dir, "2026_03_01.jsonl", `{"id":"a","ts":10}`)

	require.NoError(t, GenerateSummaries(dir, ""))
	summaryPath := filepath.Join(dir, "2026_03_01_summary.json")
	first, err := os.ReadFile(summaryPath)
	require.NoError(t, err)

	// Unchanged log: second run leaves the summary untouched.
	require.NoError(t, GenerateSummaries(dir, ""))
	second, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// A newer log forces a rebuild.
	writeLog(t, dir, "2026_03_01.jsonl", `{"id":"a","ts":10}`, `{"id":"a","ts":20}`)
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(logPath, future, future))
	require.NoError(t, GenerateSummaries(dir, ""))

	s := readSummary(t, summaryPath)
	require.Equal(t, 2, s.Logs[0].Points)
}

func TestGenerateSummariesCourseAssociation(t *testing.T) {
	base := t.TempDir()
	logDir := filepath.Join(base, "logs")
	writeLog(t, logDir, "2026_04_01.jsonl", `{"id":"a","ts":1000}`)

	courseFile := filepath.Join(base, "course.json")
	// The rotation predates the segment end; the current course is newer
	// than every point and must not win.
	require.NoError(t, storage.WriteJSONAtomic(courseFile+".1", map[string]any{"updated": 500}))
	require.NoError(t, storage.WriteJSONAtomic(courseFile, map[string]any{"updated": 2000}))

	require.NoError(t, GenerateSummaries(logDir, courseFile))

	s := readSummary(t, filepath.Join(logDir, "2026_04_01_summary.json"))
	require.Len(t, s.Logs, 1)
	require.Equal(t, "course.json.1", s.Logs[0].Course)
	require.Equal(t, 500.0, s.Logs[0].CourseMtime)
}

func TestGenerateSummariesNoCourse(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "2026_05_01.jsonl", `{"id":"a","ts":100}`)

	require.NoError(t, GenerateSummaries(dir, filepath.Join(dir, "course.json")))

	s := readSummary(t, filepath.Join(dir, "2026_05_01_summary.json"))
	require.Empty(t, s.Logs[0].Course)
}

func TestGenerateSummariesMissingDir(t *testing.T) {
	require.NoError(t, GenerateSummaries(filepath.Join(t.TempDir(), "absent"), ""))
}

func gunzipLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	var lines []string
	for _, l := range splitLines(data) {
		lines = append(lines, l)
	}
	return lines
}

func splitLines(data []byte) []string {
	var out []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			out = append(out, string(data[start:i]))
			start = i + 1
		}
	}
	return out
}

func TestCompressServiceRunOnce(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour).Unix()
	fresh := now.Add(-time.Minute).Unix()
	writeLog(t, dir, "2026_01_15.jsonl",
		fmt.Sprintf(`{"id":"a","ts":%d}`, old),
		fmt.Sprintf(`{"id":"a","ts":%d}`, fresh),
	)

	s := NewCompressService(1, dir, time.UTC, 0, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.runOnce())

	full := gunzipLines(t, filepath.Join(dir, "2026_01_15.jsonl.gz"))
	require.Len(t, full, 2)
	live := gunzipLines(t, filepath.Join(dir, "2026_01_15_live.jsonl.gz"))
	require.Len(t, live, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(live[0]), &entry))
	require.Equal(t, float64(fresh), entry["ts"])
}

func TestCompressServiceSkipsUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	writeLog(t, dir, "2026_01_15.jsonl", fmt.Sprintf(`{"id":"a","ts":%d}`, now.Unix()))

	s := NewCompressService(1, dir, time.UTC, 0, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.runOnce())
	gzPath := filepath.Join(dir, "2026_01_15.jsonl.gz")
	require.NoError(t, os.Remove(gzPath))

	// Same mtime: nothing is recompressed.
	require.NoError(t, s.runOnce())
	_, err := os.Stat(gzPath)
	require.True(t, os.IsNotExist(err))
}

func TestCompressServiceMissingLog(t *testing.T) {
	s := NewCompressService(1, t.TempDir(), time.UTC, 0, 0)
	require.NoError(t, s.runOnce())
}

// catalogStub serves fixed events for midnight tests.
type catalogStub map[int]events.Event

func (c catalogStub) Get(eid int) (events.Event, bool) {
	ev, ok := c[eid]
	return ev, ok
}

func (c catalogStub) IDs() []int {
	var ids []int
	for id := range c {
		ids = append(ids, id)
	}
	return ids
}

func (c catalogStub) ListPublic() []events.PublicEvent { return nil }

func TestMidnightClearsJustAfterLocalMidnight(t *testing.T) {
	base := t.TempDir()
	mgr := tracker.NewManager(func(eid int) (*tracker.Tracker, error) {
		return tracker.New(tracker.DefaultLayout(eid, filepath.Join(base, fmt.Sprint(eid)), time.UTC))
	})
	defer mgr.Close()

	tr, err := mgr.Get(1)
	require.NoError(t, err)
	tr.Process(testReport("x", 100), "ip", "udp")

	s := NewMidnightService(catalogStub{1: {Name: "ev", Timezone: "UTC"}}, mgr, time.Minute)

	// Just after midnight UTC: clear fires.
	s.now = func() time.Time { return time.Date(2026, 1, 16, 0, 0, 30, 0, time.UTC) }
	s.runOnce()
	require.Empty(t, tr.Live())

	// Re-populate; the same day never clears twice.
	tr.Process(testReport("x", 200), "ip", "udp")
	s.now = func() time.Time { return time.Date(2026, 1, 16, 0, 1, 30, 0, time.UTC) }
	s.runOnce()
	require.NotEmpty(t, tr.Live())
}

func TestMidnightSkipsMidday(t *testing.T) {
	base := t.TempDir()
	mgr := tracker.NewManager(func(eid int) (*tracker.Tracker, error) {
		return tracker.New(tracker.DefaultLayout(eid, filepath.Join(base, fmt.Sprint(eid)), time.UTC))
	})
	defer mgr.Close()

	tr, err := mgr.Get(1)
	require.NoError(t, err)
	tr.Process(testReport("x", 100), "ip", "udp")

	s := NewMidnightService(catalogStub{1: {Name: "ev", Timezone: "UTC"}}, mgr, time.Minute)
	s.now = func() time.Time { return time.Date(2026, 1, 16, 12, 0, 0, 0, time.UTC) }
	s.runOnce()
	require.NotEmpty(t, tr.Live())
}

func TestMidnightSkipsArchivedEvents(t *testing.T) {
	base := t.TempDir()
	mgr := tracker.NewManager(func(eid int) (*tracker.Tracker, error) {
		return tracker.New(tracker.DefaultLayout(eid, filepath.Join(base, fmt.Sprint(eid)), time.UTC))
	})
	defer mgr.Close()

	tr, err := mgr.Get(1)
	require.NoError(t, err)
	tr.Process(testReport("x", 100), "ip", "udp")

	s := NewMidnightService(catalogStub{1: {Name: "ev", Archived: true}}, mgr, time.Minute)
	s.now = func() time.Time { return time.Date(2026, 1, 16, 0, 0, 30, 0, time.UTC) }
	s.runOnce()
	require.NotEmpty(t, tr.Live())
}
