// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

// Package workers holds the background services that run next to the
// ingest path: per-day summary generation, track log compression and the
// automatic midnight clear. Each one implements suture.Service and is
// restarted by the supervisor if it ever returns.
package workers

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/regattahq/tracker/internal/logging"
	"github.com/regattahq/tracker/internal/metrics"
	"github.com/regattahq/tracker/internal/storage"
)

// DefaultSummaryInterval is how often summaries are regenerated.
const DefaultSummaryInterval = time.Minute

// segmentPattern matches daily track logs and their rotated segments:
// 2026_01_15.jsonl, 2026_01_15.jsonl.1, ...
var segmentPattern = regexp.MustCompile(`^(\d{4}_\d{2}_\d{2})\.jsonl(\.(\d+))?$`)

// maxCourseRotations bounds the course.json.N probe.
const maxCourseRotations = 99

// SailorSummary aggregates one sailor's points within a log segment.
type SailorSummary struct {
	Points  int   `json:"points"`
	FirstTS int64 `json:"first_ts"`
	LastTS  int64 `json:"last_ts"`
}

// SegmentSummary describes one log file (the live file or a rotated
// segment) of a day.
type SegmentSummary struct {
	File        string                    `json:"file"`
	Points      int                       `json:"points"`
	StartTS     int64                     `json:"start_ts"`
	EndTS       int64                     `json:"end_ts"`
	Sailors     map[string]*SailorSummary `json:"sailors"`
	Course      string                    `json:"course,omitempty"`
	CourseMtime float64                   `json:"course_mtime,omitempty"`
}

// DaySummary is the <date>_summary.json document.
type DaySummary struct {
	Date         string           `json:"date"`
	Generated    float64          `json:"generated"`
	GeneratedISO string           `json:"generated_iso"`
	Logs         []SegmentSummary `json:"logs"`
}

// SummaryService periodically regenerates day summaries for one event.
type SummaryService struct {
	eid        int
	logDir     string
	courseFile string
	interval   time.Duration
	log        zerolog.Logger
}

// NewSummaryService creates the service. A zero interval uses
// DefaultSummaryInterval.
func NewSummaryService(eid int, logDir, courseFile string, interval time.Duration) *SummaryService {
	if interval <= 0 {
		interval = DefaultSummaryInterval
	}
	return &SummaryService{
		eid:        eid,
		logDir:     logDir,
		courseFile: courseFile,
		interval:   interval,
		log:        logging.WithComponent("summary").With().Int("eid", eid).Logger(),
	}
}

// Serve regenerates summaries on every tick until the context is canceled.
func (s *SummaryService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			metrics.WorkerRunsTotal.WithLabelValues("summary").Inc()
			if err := GenerateSummaries(s.logDir, s.courseFile); err != nil {
				metrics.WorkerErrorsTotal.WithLabelValues("summary").Inc()
				s.log.Error().Err(err).Msg("Summary generation failed")
			}
		}
	}
}

func (s *SummaryService) String() string {
	return fmt.Sprintf("summary-eid%d", s.eid)
}

// GenerateSummaries scans logDir for daily track logs and writes a
// <date>_summary.json per day. A day whose summary is newer than its
// newest segment is left alone, so steady state costs one stat per file.
func GenerateSummaries(logDir, courseFile string) error {
	entries, err := os.ReadDir(logDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read log dir: %w", err)
	}

	byDate := make(map[string][]string)
	newestMtime := make(map[string]time.Time)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := segmentPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		date := m[1]
		byDate[date] = append(byDate[date], entry.Name())
		if info, err := entry.Info(); err == nil && info.ModTime().After(newestMtime[date]) {
			newestMtime[date] = info.ModTime()
		}
	}

	courses := courseCandidates(courseFile)

	for date, files := range byDate {
		summaryPath := filepath.Join(logDir, date+"_summary.json")
		if info, err := os.Stat(summaryPath); err == nil && !info.ModTime().Before(newestMtime[date]) {
			continue
		}
		if err := writeDaySummary(logDir, summaryPath, date, files, courses); err != nil {
			return err
		}
	}
	return nil
}

func writeDaySummary(logDir, summaryPath, date string, files []string, courses []courseVersion) error {
	summary := DaySummary{Date: date}

	for _, name := range files {
		seg, err := summarizeSegment(filepath.Join(logDir, name))
		if err != nil {
			return err
		}
		if seg.Points == 0 {
			continue
		}
		seg.File = name
		if c, ok := applicableCourse(courses, seg.EndTS); ok {
			seg.Course = c.name
			seg.CourseMtime = c.ts
		}
		summary.Logs = append(summary.Logs, seg)
	}

	// Newest segment first.
	sort.Slice(summary.Logs, func(i, j int) bool {
		return summary.Logs[i].StartTS > summary.Logs[j].StartTS
	})

	now := time.Now()
	summary.Generated = float64(now.UnixNano()) / float64(time.Second)
	summary.GeneratedISO = now.UTC().Format(time.RFC3339)

	return storage.WriteJSONAtomic(summaryPath, summary)
}

// summarizeSegment scans one log file and aggregates its points. Lines
// missing ts or id are skipped.
func summarizeSegment(path string) (SegmentSummary, error) {
	seg := SegmentSummary{Sailors: make(map[string]*SailorSummary)}

	f, err := os.Open(path)
	if err != nil {
		return seg, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var line struct {
			ID string `json:"id"`
			TS *int64 `json:"ts"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.ID == "" || line.TS == nil {
			continue
		}
		ts := *line.TS

		seg.Points++
		if seg.StartTS == 0 || ts < seg.StartTS {
			seg.StartTS = ts
		}
		if ts > seg.EndTS {
			seg.EndTS = ts
		}

		sailor := seg.Sailors[line.ID]
		if sailor == nil {
			sailor = &SailorSummary{FirstTS: ts, LastTS: ts}
			seg.Sailors[line.ID] = sailor
		}
		sailor.Points++
		if ts < sailor.FirstTS {
			sailor.FirstTS = ts
		}
		if ts > sailor.LastTS {
			sailor.LastTS = ts
		}
	}
	if err := scanner.Err(); err != nil {
		return seg, fmt.Errorf("scan %s: %w", path, err)
	}
	return seg, nil
}

// courseVersion is one course file generation with its effective timestamp.
type courseVersion struct {
	name string
	ts   float64
}

// courseCandidates lists the current course and its rotations, newest
// first: course.json, course.json.1, ... stopping at the first gap. Each
// candidate's timestamp is the embedded "updated" stamp when present,
// otherwise the file mtime.
func courseCandidates(courseFile string) []courseVersion {
	if courseFile == "" {
		return nil
	}
	var out []courseVersion
	for n := 0; n <= maxCourseRotations; n++ {
		path := courseFile
		if n > 0 {
			path = fmt.Sprintf("%s.%d", courseFile, n)
		}
		info, err := os.Stat(path)
		if err != nil {
			if n == 0 {
				continue
			}
			break
		}
		ts := float64(info.ModTime().UnixNano()) / float64(time.Second)
		var doc struct {
			Updated *float64 `json:"updated"`
		}
		if err := storage.ReadJSON(path, &doc); err == nil && doc.Updated != nil {
			ts = *doc.Updated
		}
		out = append(out, courseVersion{name: filepath.Base(path), ts: ts})
	}
	return out
}

// applicableCourse picks the newest course version that was already saved
// by the time the segment ended.
func applicableCourse(courses []courseVersion, endTS int64) (courseVersion, bool) {
	var best courseVersion
	found := false
	for _, c := range courses {
		if c.ts <= float64(endTS) && (!found || c.ts > best.ts) {
			best = c
			found = true
		}
	}
	return best, found
}
