// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
)

// Password headers used by the admin pages and the manager UI.
const (
	adminPasswordHeader   = "X-Admin-Password"
	managerPasswordHeader = "X-Manager-Password"
)

// clientIP returns the requester's IP, preferring the first
// X-Forwarded-For hop when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// authResult is the outcome of a password check.
type authResult int

const (
	authOK authResult = iota
	authFailed
	authRateLimited
)

// checkPassword verifies a shared secret from the request against want.
// The limiter is consulted first; a mismatch records a failure so repeated
// guessing from one IP is slowed down.
func (s *Server) checkPassword(r *http.Request, header, want string) authResult {
	ip := clientIP(r)
	if s.limiter.Blocked(ip) {
		return authRateLimited
	}
	got := r.Header.Get(header)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		s.limiter.RecordFailure(ip)
		return authFailed
	}
	return authOK
}

// requireAdmin authorizes a per-event admin operation. It writes the
// response on failure and returns false.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request, adminPassword string) bool {
	switch s.checkPassword(r, adminPasswordHeader, adminPassword) {
	case authRateLimited:
		respondError(w, http.StatusTooManyRequests, "Too many attempts")
		return false
	case authFailed:
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	return true
}

// requireManager authorizes a cross-event management operation.
func (s *Server) requireManager(w http.ResponseWriter, r *http.Request) bool {
	switch s.checkPassword(r, managerPasswordHeader, s.managerPassword) {
	case authRateLimited:
		respondError(w, http.StatusTooManyRequests, "Too many attempts")
		return false
	case authFailed:
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	return true
}
