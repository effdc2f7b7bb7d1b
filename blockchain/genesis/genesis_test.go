// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package genesis

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/test/identityset"
)

func TestDefaultConfig(t *testing.T) {
	require := require.New(t)
	g := Default
	require.EqualValues(10, g.SessionLength)
	require.Equal(6*time.Second, g.BlockInterval)
	require.Equal(big.NewInt(1), g.ExistentialDeposit())
	require.Equal(big.NewInt(1), g.MinimumBond())
	require.Zero(g.MinimumBondThreshold().Sign())
	require.Equal("Validator", g.SlashingAllowedFor)
	require.Empty(g.Invulnerables())
}

func TestNew(t *testing.T) {
	require := require.New(t)
	stash, controller := identityset.Address(0), identityset.Address(1)
	content := `
blockchain:
  sessionLength: 5
account:
  initBalances:
    ` + stash.String() + `: "1000"
staking:
  sessionsPerEra: 6
  stakers:
    - stash: ` + stash.String() + `
      controller: ` + controller.String() + `
      value: "300"
      validator: true
`
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(os.WriteFile(path, []byte(content), 0600))

	g, err := New(path)
	require.NoError(err)
	require.EqualValues(5, g.SessionLength)
	require.EqualValues(6, g.SessionsPerEra)
	require.EqualValues(3, g.BondingDuration)
	addrs, amounts := g.InitBalances()
	require.Equal([]string{stash.String()}, []string{addrs[0].String()})
	require.Equal(big.NewInt(1000), amounts[0])
	require.Len(g.Stakers, 1)
	require.Equal(stash, g.Stakers[0].Stash())
	require.Equal(controller, g.Stakers[0].Controller())
	require.Equal(big.NewInt(300), g.Stakers[0].Value())

	_, err = New(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(err)
}

func TestHash(t *testing.T) {
	require := require.New(t)
	g := defaultConfig()
	h := g.Hash()
	require.Equal(h, g.Hash())

	g.InitBalanceMap[identityset.Address(0).String()] = "100"
	changed := g.Hash()
	require.NotEqual(h, changed)
	g.SessionLength++
	require.NotEqual(changed, g.Hash())
}

func TestIdentity(t *testing.T) {
	require := require.New(t)
	addr := identityset.Address(2)
	id := GenesisIdentity{Accounts: []string{addr.String()}}
	require.Equal(DeriveDID(addr), id.DID())
	require.Equal(addr, id.AccountAddrs()[0])
	require.NotEqual(DeriveDID(addr), DeriveDID(identityset.Address(3)))

	require.Panics(func() {
		empty := GenesisIdentity{}
		empty.DID()
	})
	require.Panics(func() {
		bad := GenesisIdentity{DIDStr: "zz"}
		bad.DID()
	})
}
