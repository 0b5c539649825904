// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// contentTypes maps the extensions the frontend ships. Everything else is
// served as a binary download.
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "application/javascript",
	".json":  "application/json",
	".jsonl": "application/jsonlines",
	".gz":    "application/gzip",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
}

// handleStatic serves the frontend and the published data files. Paths are
// resolved strictly under the static root, and unchanged files answer 304
// via If-Modified-Since so the map can poll cheaply.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if s.staticDir == "" {
		http.NotFound(w, r)
		return
	}

	urlPath := r.URL.Path
	if urlPath == "/" {
		urlPath = "/index.html"
	}

	path, ok := resolveUnder(s.staticDir, urlPath)
	if !ok {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	modTime := info.ModTime().UTC().Truncate(1e9)
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil && !modTime.After(t) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		ct = "application/octet-stream"
	}

	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", ct)
	w.Header().Set("Last-Modified", modTime.Format(http.TimeFormat))
	http.ServeContent(w, r, "", modTime, f)
}

// resolveUnder joins urlPath onto root and rejects any result that would
// escape it.
func resolveUnder(root, urlPath string) (string, bool) {
	clean := filepath.Clean("/" + urlPath)
	path := filepath.Join(root, clean)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", false
	}
	return absPath, true
}
