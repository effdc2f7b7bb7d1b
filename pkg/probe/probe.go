// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package probe serves the liveness and readiness endpoints of the node together with its prometheus metrics.
package probe

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/pkg/util/httputil"
)

type (
	// Server answers /liveness as soon as it listens. /readiness and /health fail until Ready is called, and
	// afterwards whenever the readiness check fails.
	Server struct {
		ready  atomic.Bool
		check  func() error
		server http.Server
	}

	// Option sets an option of the probe server
	Option func(*Server)
)

// WithReadinessCheck adds a check run on every readiness request, e.g. reading the chain height
func WithReadinessCheck(check func() error) Option {
	return func(s *Server) {
		s.check = check
	}
}

// New creates a new probe server.
func New(port int, opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/liveness", func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusOK, "OK")
	})
	mux.HandleFunc("/readiness", s.readiness)
	mux.HandleFunc("/health", s.readiness)
	mux.Handle("/metrics", promhttp.Handler())
	s.server = httputil.NewServer(fmt.Sprintf(":%d", port), mux)
	return s
}

// Start listens on the port and serves in the background
func (s *Server) Start(_ context.Context) error {
	ln, err := httputil.LimitListener(s.server.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.server.Serve(ln); err != nil {
			log.L().Info("Probe server stopped.", zap.Error(err))
		}
	}()
	return nil
}

// Ready turns the readiness endpoints on
func (s *Server) Ready() { s.ready.Store(true) }

// NotReady turns the readiness endpoints off
func (s *Server) NotReady() { s.ready.Store(false) }

// Stop shutdown the probe server.
func (s *Server) Stop(ctx context.Context) error { return s.server.Shutdown(ctx) }

func (s *Server) readiness(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		respond(w, http.StatusServiceUnavailable, "FAIL")
		return
	}
	if s.check != nil {
		if err := s.check(); err != nil {
			respond(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	respond(w, http.StatusOK, "OK")
}

func respond(w http.ResponseWriter, code int, body string) {
	w.WriteHeader(code)
	if _, err := w.Write([]byte(body)); err != nil {
		log.L().Warn("Failed to send http response.", zap.Error(err))
	}
}
