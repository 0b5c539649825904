// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package ingest

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/regattahq/tracker/internal/events"
	"github.com/regattahq/tracker/internal/logging"
	"github.com/regattahq/tracker/internal/metrics"
	"github.com/regattahq/tracker/internal/models"
	"github.com/regattahq/tracker/internal/ratelimit"
	"github.com/regattahq/tracker/internal/tracker"
)

// Result is the outcome of handling one raw report. Status is the HTTP
// status the HTTP transport should use; the UDP transport sends the Ack
// regardless (and stays silent for malformed payloads).
type Result struct {
	Status    int
	Ack       models.Ack
	Malformed bool

	// Report is set only when the report reached a tracker, for the
	// optional raw log on the UDP path.
	Report *models.Report
}

// Router is the shared dispatch path behind both transports: decode,
// sanitize, resolve the event, authenticate, then hand the report to the
// event's tracker and build the ACK.
type Router struct {
	dir      events.Directory
	trackers *tracker.Manager
	limiter  *ratelimit.Limiter
	log      zerolog.Logger

	// legacy suppresses the event name in success ACKs, matching what
	// single-event deployments always sent.
	legacy bool

	// badPacketLog throttles malformed-payload warnings; a misconfigured
	// device can spam hundreds per second.
	badPacketLog *rate.Limiter

	// now is replaceable for tests.
	now func() time.Time
}

// NewRouter wires the dispatch path. Set legacy for single-event mode.
func NewRouter(dir events.Directory, trackers *tracker.Manager, limiter *ratelimit.Limiter, legacy bool) *Router {
	return &Router{
		dir:          dir,
		trackers:     trackers,
		limiter:      limiter,
		log:          logging.WithComponent("ingest"),
		legacy:       legacy,
		badPacketLog: rate.NewLimiter(rate.Every(time.Second), 5),
		now:          time.Now,
	}
}

// Handle processes one raw JSON payload from srcIP over the named
// transport ("udp" or "http").
func (r *Router) Handle(data []byte, srcIP, transport string) Result {
	var packet map[string]any
	if err := json.Unmarshal(data, &packet); err != nil {
		metrics.RecordReport(transport, "malformed")
		if r.badPacketLog.Allow() {
			r.log.Warn().
				Str("ip", srcIP).
				Str("via", transport).
				Int("bytes", len(data)).
				Msg("Malformed report payload")
		}
		return Result{Status: http.StatusBadRequest, Malformed: true}
	}

	rep := Sanitize(packet)
	recv := r.now().Unix()

	ev, ok := r.dir.Get(rep.EID)
	if !ok {
		metrics.RecordReport(transport, "event")
		return Result{
			Status: http.StatusNotFound,
			Ack: models.Ack{
				Ack:   rep.Seq,
				TS:    recv,
				Error: "event",
				Msg:   fmt.Sprintf("Event %d not found", rep.EID),
			},
		}
	}
	if ev.Archived {
		metrics.RecordReport(transport, "event")
		return Result{
			Status: http.StatusBadRequest,
			Ack: models.Ack{
				Ack:   rep.Seq,
				TS:    recv,
				Error: "event",
				Msg:   fmt.Sprintf("Event %d is archived", rep.EID),
			},
		}
	}

	// An event with an empty tracker password accepts everyone.
	if ev.TrackerPassword != "" {
		if r.limiter.Blocked(srcIP) {
			metrics.RecordReport(transport, "rate_limited")
			return Result{
				Status: http.StatusTooManyRequests,
				Ack: models.Ack{
					Ack:   rep.Seq,
					TS:    recv,
					Error: "auth",
					Msg:   "Too many attempts",
				},
			}
		}
		if subtle.ConstantTimeCompare([]byte(rep.Password), []byte(ev.TrackerPassword)) != 1 {
			r.limiter.RecordFailure(srcIP)
			metrics.RecordReport(transport, "auth")
			metrics.AuthFailuresTotal.WithLabelValues(transport).Inc()
			r.log.Warn().
				Str("ip", srcIP).
				Str("sailor", rep.ID).
				Int("eid", rep.EID).
				Msg("Rejected report with bad password")
			return Result{
				Status: http.StatusUnauthorized,
				Ack: models.Ack{
					Ack:   rep.Seq,
					TS:    recv,
					Error: "auth",
					Msg:   "Invalid password",
				},
			}
		}
	}

	// Pure credential probe from the app's settings screen; nothing is
	// tracked and the ACK carries no event name.
	if rep.AuthCheck {
		metrics.RecordReport(transport, "ok")
		return Result{
			Status: http.StatusOK,
			Ack:    models.Ack{Ack: rep.Seq, TS: recv},
		}
	}

	tr, err := r.trackers.Get(rep.EID)
	if err != nil {
		r.log.Error().Err(err).Int("eid", rep.EID).Msg("Tracker unavailable")
		return Result{
			Status: http.StatusInternalServerError,
			Ack: models.Ack{
				Ack:   rep.Seq,
				TS:    recv,
				Error: "server",
				Msg:   "Internal error",
			},
		}
	}

	if tr.Process(rep, srcIP, transport) {
		metrics.RecordReport(transport, "ok")
	} else {
		metrics.RecordReport(transport, "duplicate")
	}

	ack := models.Ack{Ack: rep.Seq, TS: recv}
	if !r.legacy {
		ack.Event = ev.Name
	}
	return Result{Status: http.StatusOK, Ack: ack, Report: rep}
}
