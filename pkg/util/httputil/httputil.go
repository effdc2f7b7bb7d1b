// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package httputil

import (
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"
)

// _connectionCount caps the simultaneous connections of the probe and admin ports
const _connectionCount = 400

type (
	// ServerOption is a server option
	ServerOption func(cfg *serverConfig)

	serverConfig struct {
		ReadHeaderTimeout time.Duration
		ReadTimeout       time.Duration
		WriteTimeout      time.Duration
		IdleTimeout       time.Duration
	}
)

// DefaultServerConfig is the default server config
var DefaultServerConfig = serverConfig{
	ReadHeaderTimeout: 10 * time.Second,
	ReadTimeout:       30 * time.Second,
	WriteTimeout:      30 * time.Second,
	IdleTimeout:       120 * time.Second,
}

// ReadHeaderTimeout sets header timeout
func ReadHeaderTimeout(d time.Duration) ServerOption {
	return func(cfg *serverConfig) { cfg.ReadHeaderTimeout = d }
}

// WriteTimeout sets the time a response may take, profiles streamed by the admin port need more than the default
func WriteTimeout(d time.Duration) ServerOption {
	return func(cfg *serverConfig) { cfg.WriteTimeout = d }
}

// NewServer creates a HTTP server with time out settings.
func NewServer(addr string, handler http.Handler, opts ...ServerOption) http.Server {
	cfg := DefaultServerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// LimitListener listens on addr and accepts at most _connectionCount simultaneous connections
func LimitListener(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return netutil.LimitListener(ln, _connectionCount), nil
}
