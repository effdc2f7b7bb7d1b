// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package itx

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/pkg/log"
)

var heartbeatMtc = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "npos_heartbeat_status",
		Help: "Node heartbeat status.",
	},
	[]string{"status_type", "source"},
)

func init() {
	prometheus.MustRegister(heartbeatMtc)
}

// HeartbeatHandler is the handler to periodically log the system key metrics
type HeartbeatHandler struct {
	s *Server
}

// NewHeartbeatHandler instantiates a HeartbeatHandler instance
func NewHeartbeatHandler(s *Server) *HeartbeatHandler {
	return &HeartbeatHandler{s: s}
}

// Log executes the logging logic
func (h *HeartbeatHandler) Log() {
	cs := h.s.ChainService()
	sr := cs.StateReader()
	height := cs.Height()
	currentEra, _, err := cs.Staking().CurrentEra(sr)
	if err != nil {
		log.L().Error("Error when reading the current era.", zap.Error(err))
		return
	}
	var activeEra uint32
	active, ok, err := cs.Staking().ActiveEra(sr)
	if err != nil {
		log.L().Error("Error when reading the active era.", zap.Error(err))
		return
	}
	if ok {
		activeEra = active.Index
	}
	status, err := cs.Staking().ElectionStatus(sr)
	if err != nil {
		log.L().Error("Error when reading the election status.", zap.Error(err))
		return
	}
	pending := cs.ActPool().GetSize()
	log.L().Info("Node status.",
		zap.Uint64("height", height),
		zap.Uint32("currentEra", currentEra),
		zap.Uint32("activeEra", activeEra),
		zap.Bool("electionOpen", status.Open),
		zap.Uint64("pendingActions", pending),
		zap.Uint64("offchainSubmitted", cs.Worker().Submitted()))

	heartbeatMtc.WithLabelValues("height", "chain").Set(float64(height))
	heartbeatMtc.WithLabelValues("currentEra", "staking").Set(float64(currentEra))
	heartbeatMtc.WithLabelValues("activeEra", "staking").Set(float64(activeEra))
	heartbeatMtc.WithLabelValues("pendingActions", "actpool").Set(float64(pending))
	heartbeatMtc.WithLabelValues("offchainSubmitted", "offchain").Set(float64(cs.Worker().Submitted()))
}
