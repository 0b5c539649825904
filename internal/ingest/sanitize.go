// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/regattahq/tracker/internal/models"
)

// htmlTagPattern strips embedded markup from string fields. Sailor ids end
// up in web pages verbatim, so anything tag-shaped is removed here.
var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// Field limits and defaults applied by Sanitize.
const (
	maxIDLen       = 32
	maxRoleLen     = 16
	maxVersionLen  = 64
	maxOSLen       = 64
	maxPasswordLen = 64
	maxPosEntries  = 100

	defaultID      = "???"
	defaultRole    = "sailor"
	defaultVersion = "?"
)

// Sanitize normalizes a decoded packet into a Report. Every field is
// coerced, clamped or defaulted; the result is always safe to log, store
// and render. Running it twice yields the same report.
func Sanitize(packet map[string]any) *models.Report {
	rep := &models.Report{
		ID:      sanitizeString(packet["id"], maxIDLen, defaultID),
		Role:    sanitizeString(packet["role"], maxRoleLen, defaultRole),
		Version: sanitizeString(packet["ver"], maxVersionLen, defaultVersion),

		Seq:     clampInt(coerceInt(packet["sq"], 0), 0, math.MaxInt),
		Heading: clampInt(coerceInt(packet["hdg"], 0), 0, 360),
		Battery: clampInt(coerceInt(packet["bat"], -1), -1, 100),
		Signal:  clampInt(coerceInt(packet["sig"], -1), -1, 4),
		EID:     clampInt(coerceInt(packet["eid"], 1), 1, math.MaxInt),
		TS:      int64(clampInt(coerceInt(packet["ts"], 0), 0, math.MaxInt)),

		Lat:   clampFloat(coerceFloat(packet["lat"], 0), -90, 90),
		Lon:   clampFloat(coerceFloat(packet["lon"], 0), -180, 180),
		Speed: clampFloat(coerceFloat(packet["spd"], 0), 0, 100),

		Assist: coerceBool(packet["ast"]),
	}

	if v, ok := packet["os"]; ok {
		rep.OS = sanitizeString(v, maxOSLen, "")
	}
	if v, ok := packet["pwd"]; ok {
		rep.Password = sanitizeString(v, maxPasswordLen, "")
	}
	if v, ok := packet["hr"]; ok && v != nil {
		hr := clampInt(coerceInt(v, 0), 0, 300)
		rep.HeartRate = &hr
	}
	if v, ok := packet["bdr"]; ok && v != nil {
		bdr := clampFloat(coerceFloat(v, 0), 0, 100)
		rep.DrainRate = &bdr
	}
	if v, ok := packet["hac"]; ok && v != nil {
		hac := clampFloat(coerceFloat(v, 0), 0, 10000)
		rep.Accuracy = &hac
	}
	if v, ok := packet["chg"]; ok {
		chg := coerceBool(v)
		rep.Charging = &chg
	}
	if v, ok := packet["ps"]; ok {
		ps := coerceBool(v)
		rep.PowerSave = &ps
	}

	rep.AuthCheck = coerceBool(packet["auth_check"])

	if flg, ok := packet["flg"].(map[string]any); ok {
		rep.Flags = flg
	}

	rep.Pos = sanitizePos(packet["pos"])

	// A batched report's canonical fix is its newest sample. Batching
	// clients may omit the top-level ts/lat/lon entirely, so these are
	// taken from the last pos element.
	if n := len(rep.Pos); n > 0 {
		last := rep.Pos[n-1]
		rep.TS = last.TS
		rep.Lat = last.Lat
		rep.Lon = last.Lon
	}

	return rep
}

// sanitizePos normalizes the batched position array: entries must be
// arrays of at least [ts, lat, lon], with an optional speed, and the
// batch is capped at maxPosEntries.
func sanitizePos(v any) []models.Sample {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	if len(raw) > maxPosEntries {
		raw = raw[:maxPosEntries]
	}

	var out []models.Sample
	for _, item := range raw {
		entry, ok := item.([]any)
		if !ok || len(entry) < 3 {
			continue
		}
		sample := models.Sample{
			TS:  int64(clampInt(coerceInt(entry[0], 0), 0, math.MaxInt)),
			Lat: clampFloat(coerceFloat(entry[1], 0), -90, 90),
			Lon: clampFloat(coerceFloat(entry[2], 0), -180, 180),
		}
		if len(entry) >= 4 {
			spd := clampFloat(coerceFloat(entry[3], 0), 0, 100)
			sample.Speed = &spd
		}
		out = append(out, sample)
	}
	return out
}

// sanitizeString coerces value to a string, strips markup and dangerous
// characters, and truncates. An empty result becomes the default.
func sanitizeString(value any, maxLen int, def string) string {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case nil:
		return def
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(v)
	default:
		return def
	}

	s = htmlTagPattern.ReplaceAllString(s, "")
	s = strings.NewReplacer("<", "", ">", "", "&", "", `"`, "", "'", "").Replace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// coerceInt converts JSON scalar values to an int, returning def for
// anything unconvertible.
func coerceInt(value any, def int) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return def
		}
		return int(f)
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return def
	}
}

// coerceFloat converts JSON scalar values to a float64, returning def for
// anything unconvertible.
func coerceFloat(value any, def float64) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// coerceBool accepts real booleans, the strings "true"/"1"/"yes" and
// non-zero numbers.
func coerceBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		s := strings.ToLower(v)
		return s == "true" || s == "1" || s == "yes"
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
