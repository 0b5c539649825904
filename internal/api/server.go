// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/regattahq/tracker/internal/logging"
)

// HTTPService runs the HTTP server under the supervisor. The listener is
// bound in the constructor so a busy port fails startup immediately.
type HTTPService struct {
	listener net.Listener
	server   *http.Server
}

// NewHTTPService binds addr and prepares the server around handler.
func NewHTTPService(addr string, handler http.Handler) (*HTTPService, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	return &HTTPService{
		listener: ln,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}, nil
}

// Addr returns the bound listen address.
func (s *HTTPService) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the server until the context is canceled, then drains
// in-flight requests.
func (s *HTTPService) Serve(ctx context.Context) error {
	logging.Info().Stringer("addr", s.listener.Addr()).Msg("HTTP server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *HTTPService) String() string {
	return "http-api"
}
