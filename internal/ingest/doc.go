// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

// Package ingest accepts position reports from tracker devices. Both
// transports (UDP datagrams and POST /api/tracker) carry the same JSON
// payload and flow through the same sanitize/authenticate/dispatch path,
// differing only in how the ACK travels back.
package ingest
