// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	_stakingActionMtc = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "npos_staking_action",
			Help: "Staking actions handled, by type and result.",
		},
		[]string{"type", "result"},
	)
	_eraMtc = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "npos_staking_era",
			Help: "Current and active era.",
		},
		[]string{"type"},
	)
	_electionMtc = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "npos_staking_election",
			Help: "Elections and solutions, by compute and result.",
		},
		[]string{"compute", "result"},
	)
)

func init() {
	prometheus.MustRegister(_stakingActionMtc)
	prometheus.MustRegister(_eraMtc)
	prometheus.MustRegister(_electionMtc)
}
