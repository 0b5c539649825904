// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/regattahq/tracker/internal/logging"
)

// maxDatagram bounds a single report; a 100-sample batch with full
// telemetry stays well under this.
const maxDatagram = 64 * 1024

// UDPService receives position reports over UDP and replies with an ACK
// datagram. It implements suture.Service; the socket is bound in the
// constructor so a busy port fails startup instead of flapping the
// supervisor.
type UDPService struct {
	conn   *net.UDPConn
	router *Router
	log    zerolog.Logger

	// rawLog, when set, records every accepted report.
	rawLog *RawLog
}

// SetRawLog enables the legacy raw report log. Call before Serve.
func (s *UDPService) SetRawLog(l *RawLog) {
	s.rawLog = l
}

// NewUDPService binds addr (e.g. ":41234") and returns the service.
func NewUDPService(addr string, router *Router) (*UDPService, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	return &UDPService{
		conn:   conn,
		router: router,
		log:    logging.WithComponent("udp"),
	}, nil
}

// LocalAddr returns the bound address.
func (s *UDPService) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Serve reads datagrams until the context is canceled.
func (s *UDPService) Serve(ctx context.Context) error {
	defer s.conn.Close()
	s.log.Info().Stringer("addr", s.conn.LocalAddr()).Msg("Listening for position reports")

	buf := make([]byte, maxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Short deadline so cancellation is noticed between packets.
		if err := s.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		n, remote, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read datagram: %w", err)
		}

		s.handlePacket(buf[:n], remote)
	}
}

// handlePacket dispatches one datagram. A malformed payload gets no reply;
// everything else is acknowledged. A panic in the dispatch path is
// contained to the packet that caused it.
func (s *UDPService) handlePacket(data []byte, remote *net.UDPAddr) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Stringer("remote", remote).
				Msg("Recovered while handling datagram")
		}
	}()

	res := s.router.Handle(data, remote.IP.String(), "udp")
	if res.Malformed {
		return
	}

	if s.rawLog != nil && res.Report != nil {
		if err := s.rawLog.Write(res.Report, remote.IP.String(), remote.Port, time.Now()); err != nil {
			s.log.Warn().Err(err).Msg("Raw log write failed")
		}
	}

	reply, err := json.Marshal(res.Ack)
	if err != nil {
		s.log.Error().Err(err).Msg("ACK marshal failed")
		return
	}
	if _, err := s.conn.WriteToUDP(reply, remote); err != nil {
		s.log.Warn().Err(err).Stringer("remote", remote).Msg("ACK send failed")
	}
}

func (s *UDPService) String() string {
	return "udp-ingest"
}
