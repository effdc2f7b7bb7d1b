// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package itx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/chainservice"
	"github.com/iotexproject/iotex-npos/config"
	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/pkg/probe"
	"github.com/iotexproject/iotex-npos/pkg/routine"
	"github.com/iotexproject/iotex-npos/pkg/util/httputil"
)

// Server is the node instance containing all components.
type Server struct {
	chainService *chainservice.ChainService
}

// NewServer creates a new server
func NewServer(cfg config.Config, opts ...chainservice.Option) (*Server, error) {
	cs, err := chainservice.New(cfg, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "fail to create chain service")
	}
	return &Server{chainService: cs}, nil
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	if err := s.chainService.Start(ctx); err != nil {
		return errors.Wrap(err, "error when starting chain service")
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	if err := s.chainService.Stop(ctx); err != nil {
		return errors.Wrap(err, "error when stopping chain service")
	}
	return nil
}

// ChainService returns the chain service of the node
func (s *Server) ChainService() *chainservice.ChainService {
	return s.chainService
}

// StartServer starts the node, marks the probe ready and blocks until ctx is done. The heartbeat and the pprof admin
// port are optional and driven by cfg.System.
func StartServer(ctx context.Context, svr *Server, probeSvr *probe.Server, cfg config.Config) {
	if err := svr.Start(ctx); err != nil {
		log.L().Fatal("Failed to start server.", zap.Error(err))
		return
	}
	if probeSvr != nil {
		probeSvr.Ready()
	}

	if cfg.System.HeartbeatInterval > 0 {
		task := routine.NewRecurringTask(NewHeartbeatHandler(svr).Log, cfg.System.HeartbeatInterval)
		if err := task.Start(ctx); err != nil {
			log.L().Panic("Failed to start heartbeat routine.", zap.Error(err))
		}
		defer func() {
			if err := task.Stop(ctx); err != nil {
				log.L().Panic("Failed to stop heartbeat routine.", zap.Error(err))
			}
		}()
	}

	var admin *http.Server
	if cfg.System.HTTPAdminPort > 0 {
		admin = startAdminServer(cfg.System.HTTPAdminPort)
	}

	<-ctx.Done()
	if probeSvr != nil {
		probeSvr.NotReady()
	}
	stopCtx := context.Background()
	if admin != nil {
		if err := admin.Shutdown(stopCtx); err != nil {
			log.L().Error("Error when stopping the admin server.", zap.Error(err))
		}
	}
	if err := svr.Stop(stopCtx); err != nil {
		log.L().Panic("Failed to stop server.", zap.Error(err))
	}
}

// startAdminServer serves the runtime profiles of the node
func startAdminServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	admin := httputil.NewServer(fmt.Sprintf(":%d", port), mux, httputil.WriteTimeout(2*time.Minute))
	runtime.SetMutexProfileFraction(1)
	runtime.SetBlockProfileRate(1)
	ln, err := httputil.LimitListener(admin.Addr)
	if err != nil {
		log.L().Error("Error when listen to profiling port.", zap.Error(err))
		return nil
	}
	go func() {
		if err := admin.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.L().Error("Error when serving performance profiling data.", zap.Error(err))
		}
	}()
	return &admin
}
