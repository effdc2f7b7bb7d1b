// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package itx

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatHandler_Log(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s, err := NewServer(testConfig())
	require.NoError(err)
	require.NoError(s.Start(ctx))
	defer func() {
		require.NoError(s.Stop(ctx))
	}()

	for i := 0; i < 3; i++ {
		_, err = s.ChainService().ProduceBlock(ctx)
		require.NoError(err)
	}
	handler := NewHeartbeatHandler(s)
	handler.Log()
	require.Equal(float64(3), testutil.ToFloat64(heartbeatMtc.WithLabelValues("height", "chain")))
	require.Equal(float64(0), testutil.ToFloat64(heartbeatMtc.WithLabelValues("pendingActions", "actpool")))
}
