// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package storage

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

// CompressDay writes the two gzip views of a day's track log next to it:
//
//	<day>_live.jsonl.gz  only lines whose embedded ts >= cutoff
//	<day>.jsonl.gz       the complete file, verbatim
//
// Both are produced via temp file + rename so HTTP clients never download a
// truncated archive. Lines that fail to parse are dropped from the live view
// but preserved in the full one. Returns the line counts of each view.
func CompressDay(logPath string, cutoff int64) (liveLines, fullLines int, err error) {
	base := strings.TrimSuffix(logPath, ".jsonl")

	f, err := os.Open(logPath)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	livePath := base + "_live.jsonl.gz"
	fullPath := base + ".jsonl.gz"

	liveOut, err := newGzipTemp(livePath)
	if err != nil {
		return 0, 0, err
	}
	defer liveOut.abort()

	fullOut, err := newGzipTemp(fullPath)
	if err != nil {
		return 0, 0, err
	}
	defer fullOut.abort()

	scanner := bufio.NewScanner(f)
	// Batched report lines can be long; 1 MiB covers a full pos array.
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Bytes()

		if _, err := fullOut.zw.Write(line); err != nil {
			return 0, 0, fmt.Errorf("write full view: %w", err)
		}
		if _, err := fullOut.zw.Write([]byte{'\n'}); err != nil {
			return 0, 0, fmt.Errorf("write full view: %w", err)
		}
		fullLines++

		ts, ok := lineTimestamp(line)
		if !ok || ts < cutoff {
			continue
		}
		if _, err := liveOut.zw.Write(line); err != nil {
			return 0, 0, fmt.Errorf("write live view: %w", err)
		}
		if _, err := liveOut.zw.Write([]byte{'\n'}); err != nil {
			return 0, 0, fmt.Errorf("write live view: %w", err)
		}
		liveLines++
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("scan %s: %w", logPath, err)
	}

	if err := liveOut.commit(); err != nil {
		return 0, 0, err
	}
	if err := fullOut.commit(); err != nil {
		return 0, 0, err
	}
	return liveLines, fullLines, nil
}

// lineTimestamp extracts the embedded "ts" field from a log line.
func lineTimestamp(line []byte) (int64, bool) {
	var entry struct {
		TS *int64 `json:"ts"`
	}
	if err := json.Unmarshal(line, &entry); err != nil || entry.TS == nil {
		return 0, false
	}
	return *entry.TS, true
}

// gzipTemp is a gzip writer targeting a temp file that is renamed into
// place on commit.
type gzipTemp struct {
	final string
	tmp   string
	f     *os.File
	zw    *gzip.Writer
	done  bool
}

func newGzipTemp(final string) (*gzipTemp, error) {
	tmp := final + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", tmp, err)
	}
	return &gzipTemp{
		final: final,
		tmp:   tmp,
		f:     f,
		zw:    gzip.NewWriter(f),
	}, nil
}

func (g *gzipTemp) commit() error {
	if err := g.zw.Close(); err != nil {
		return fmt.Errorf("close gzip %s: %w", g.final, err)
	}
	if err := g.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", g.tmp, err)
	}
	if err := g.f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", g.tmp, err)
	}
	g.done = true
	if err := os.Rename(g.tmp, g.final); err != nil {
		return fmt.Errorf("rename %s: %w", g.final, err)
	}
	return nil
}

// abort discards the temp file unless commit already succeeded.
func (g *gzipTemp) abort() {
	if g.done {
		return
	}
	g.zw.Close()
	g.f.Close()
	os.Remove(g.tmp)
}
