// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordReport(t *testing.T) {
	before := testutil.ToFloat64(ReportsTotal.WithLabelValues("udp", "duplicate"))
	RecordReport("udp", "duplicate")
	RecordReport("udp", "duplicate")
	after := testutil.ToFloat64(ReportsTotal.WithLabelValues("udp", "duplicate"))
	require.Equal(t, before+2, after)

	// Other label pairs are unaffected.
	httpOK := testutil.ToFloat64(ReportsTotal.WithLabelValues("http", "ok"))
	RecordReport("udp", "ok")
	require.Equal(t, httpOK, testutil.ToFloat64(ReportsTotal.WithLabelValues("http", "ok")))
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/events", "200"))
	RecordAPIRequest("GET", "/api/events", "200", 12*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/events", "200"))
	require.Equal(t, before+1, after)
}

func TestTrackActiveRequest(t *testing.T) {
	base := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	require.Equal(t, base+2, testutil.ToFloat64(APIActiveRequests))
	TrackActiveRequest(false)
	require.Equal(t, base+1, testutil.ToFloat64(APIActiveRequests))
	TrackActiveRequest(false)
}

func TestLiveSailorsGauge(t *testing.T) {
	LiveSailors.WithLabelValues("42").Set(7)
	require.Equal(t, 7.0, testutil.ToFloat64(LiveSailors.WithLabelValues("42")))
	LiveSailors.WithLabelValues("42").Set(0)
}
