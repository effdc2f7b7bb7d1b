// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package actpool

import "time"

// Config bounds the pending staking calls
type Config struct {
	// MaxNumActsPerPool caps the pending calls of all origins
	MaxNumActsPerPool uint64 `yaml:"maxNumActsPerPool"`
	// MaxNumActsPerAcct caps the pending calls of a single caller, root and unsigned calls share one queue each
	MaxNumActsPerAcct uint64        `yaml:"maxNumActsPerAcct"`
	ActionExpiry      time.Duration `yaml:"actionExpiry"`
	// BlackList holds the encoded addresses whose signed calls are refused
	BlackList []string `yaml:"blackList"`
}

// DefaultConfig is the pool config of a node
var DefaultConfig = Config{
	MaxNumActsPerPool: 8192,
	MaxNumActsPerAcct: 64,
	ActionExpiry:      5 * time.Minute,
}
