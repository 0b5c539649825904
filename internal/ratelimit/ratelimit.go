// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

// Package ratelimit blocks repeated failed authentications per source IP.
// Unlike request-rate limiting (which the HTTP layer gets from
// go-chi/httprate), this limiter is keyed on auth failures and is shared
// by the UDP and HTTP ingest paths.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is how long an IP stays blocked after a failed
// authentication.
const DefaultWindow = 5 * time.Second

// Limiter tracks the last failed authentication per IP. An IP is blocked
// while its last failure is younger than the window.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]time.Time

	// now is replaceable for tests.
	now func() time.Time
}

// New creates a limiter with the given window. A zero window uses
// DefaultWindow.
func New(window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		window:  window,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Blocked reports whether ip is currently blocked.
func (l *Limiter) Blocked(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.entries[ip]
	if !ok {
		return false
	}
	return l.now().Sub(last) < l.window
}

// RecordFailure marks a failed authentication from ip, extending its block.
func (l *Limiter) RecordFailure(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[ip] = l.now()
}

// Sweep removes entries whose block has expired and returns how many were
// dropped. Without it the map would grow one entry per scanning IP forever.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	dropped := 0
	for ip, last := range l.entries {
		if now.Sub(last) >= l.window {
			delete(l.entries, ip)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked IPs.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// SweepService periodically sweeps a limiter. It implements
// suture.Service.
type SweepService struct {
	limiter  *Limiter
	interval time.Duration
}

// NewSweepService creates a sweep service. A zero interval defaults to one
// minute.
func NewSweepService(l *Limiter, interval time.Duration) *SweepService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepService{limiter: l, interval: interval}
}

// Serve runs the sweep loop until the context is canceled.
func (s *SweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.limiter.Sweep()
		}
	}
}

func (s *SweepService) String() string {
	return "ratelimit-sweep"
}
