// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/regattahq/tracker/internal/events"
	"github.com/regattahq/tracker/internal/ingest"
	"github.com/regattahq/tracker/internal/ratelimit"
	"github.com/regattahq/tracker/internal/tracker"
)

func newStaticEnv(t *testing.T) (*testEnv, string) {
	t.Helper()
	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>map</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "app.js"), []byte("let x;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "tracks.jsonl"), []byte("{}\n"), 0o644))

	base := t.TempDir()
	dir := events.NewSingleEvent("", "", "UTC")
	mgr := tracker.NewManager(func(eid int) (*tracker.Tracker, error) {
		return tracker.New(tracker.DefaultLayout(eid, base, time.UTC))
	})
	t.Cleanup(mgr.Close)
	limiter := ratelimit.New(0)
	srv := NewServer(Config{
		Directory: dir,
		Trackers:  mgr,
		Limiter:   limiter,
		Ingest:    ingest.NewRouter(dir, mgr, limiter, true),
		StaticDir: staticDir,
		Legacy:    true,
	})
	return &testEnv{handler: srv.Routes(DefaultMiddlewareConfig())}, staticDir
}

func TestStaticServesIndexAtRoot(t *testing.T) {
	e, _ := newStaticEnv(t)

	w := e.do(t, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), "map")
	require.NotEmpty(t, w.Header().Get("Last-Modified"))
}

func TestStaticContentTypes(t *testing.T) {
	e, _ := newStaticEnv(t)

	w := e.do(t, http.MethodGet, "/app.js", nil, nil)
	require.Equal(t, "application/javascript", w.Header().Get("Content-Type"))

	w = e.do(t, http.MethodGet, "/tracks.jsonl", nil, nil)
	require.Equal(t, "application/jsonlines", w.Header().Get("Content-Type"))
}

func TestStaticNotModified(t *testing.T) {
	e, _ := newStaticEnv(t)

	w := e.do(t, http.MethodGet, "/index.html", nil, nil)
	lastMod := w.Header().Get("Last-Modified")
	require.NotEmpty(t, lastMod)

	w = e.do(t, http.MethodGet, "/index.html", nil, map[string]string{"If-Modified-Since": lastMod})
	require.Equal(t, http.StatusNotModified, w.Code)
	require.Empty(t, w.Body.String())
}

func TestStaticBlocksTraversal(t *testing.T) {
	e, staticDir := newStaticEnv(t)
	secret := filepath.Join(filepath.Dir(staticDir), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("keys"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../secret.txt"
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	require.NotEqual(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "keys")
}

func TestStaticMissingFile(t *testing.T) {
	e, _ := newStaticEnv(t)
	w := e.do(t, http.MethodGet, "/nope.css", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestStaticDisabled(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/index.html", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
