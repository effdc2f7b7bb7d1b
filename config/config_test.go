// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/db"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
	"github.com/iotexproject/iotex-npos/test/identityset"
)

// defaultCopy returns a copy of Default that the test can modify freely
func defaultCopy() Config {
	return deepcopy.Copy(Default).(Config)
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg, err := New([]string{})
	require.NoError(t, err)
	require.Equal(t, Default.Chain, cfg.Chain)
	require.Equal(t, Default.Chain.ChainDBPath, cfg.DB.DbPath)
	require.Equal(t, Default.Genesis.SessionsPerEra, cfg.Genesis.SessionsPerEra)
	require.Nil(t, cfg.ProducerAddress())
}

func TestNewConfigWithWrongConfigPath(t *testing.T) {
	_, err := New([]string{"wrong_path"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no such file or directory")
}

func TestNewConfigWithOverride(t *testing.T) {
	require := require.New(t)
	producer := identityset.Address(0).String()
	os.Setenv("NPOS_TEST_PRODUCER", producer)
	defer os.Unsetenv("NPOS_TEST_PRODUCER")
	path := writeConfig(t, `
chain:
  producer: ${NPOS_TEST_PRODUCER}
  produceInterval: 2s
db:
  backend: pebbledb
  dbPath: /tmp/npos.pebble
actPool:
  maxNumActsPerAcct: 10
offchain:
  repeat: 8
genesis:
  blockchain:
    sessionLength: 20
  staking:
    sessionsPerEra: 6
    slashingAllowedFor: ValidatorAndNominator
`)
	cfg, err := New([]string{path})
	require.NoError(err)
	require.Equal(producer, cfg.ProducerAddress().String())
	require.Equal(2*time.Second, cfg.Chain.ProduceInterval)
	require.Equal(db.BackendPebble, cfg.DB.Backend)
	require.Equal("/tmp/npos.pebble", cfg.DB.DbPath)
	require.EqualValues(10, cfg.ActPool.MaxNumActsPerAcct)
	require.Equal(Default.ActPool.MaxNumActsPerPool, cfg.ActPool.MaxNumActsPerPool)
	require.EqualValues(8, cfg.Offchain.Repeat)
	require.True(cfg.Offchain.Enabled)
	require.EqualValues(20, cfg.Genesis.SessionLength)
	require.EqualValues(6, cfg.Genesis.SessionsPerEra)
	require.Equal(Default.Genesis.BondingDuration, cfg.Genesis.BondingDuration)

	// the overrides must not leak into the defaults
	require.EqualValues(10, Default.Genesis.SessionLength)
}

func TestNewConfigFailsValidation(t *testing.T) {
	path := writeConfig(t, `
genesis:
  staking:
    slashingAllowedFor: Everyone
`)
	_, err := New([]string{path})
	require.Equal(t, ErrInvalidCfg, errors.Cause(err))

	cfg, err := New([]string{path}, DoNotValidate)
	require.NoError(t, err)
	require.Equal(t, "Everyone", cfg.Genesis.SlashingAllowedFor)
}

func TestValidateChain(t *testing.T) {
	cfg := defaultCopy()
	cfg.Chain.ProducerAddr = "io1invalid"
	err := ValidateChain(cfg)
	require.Equal(t, ErrInvalidCfg, errors.Cause(err))
	require.True(t, strings.Contains(err.Error(), "invalid producer address"))

	cfg = defaultCopy()
	cfg.Chain.MaxActsPerBlock = 0
	require.Equal(t, ErrInvalidCfg, errors.Cause(ValidateChain(cfg)))

	cfg = defaultCopy()
	cfg.Chain.ProduceInterval = -time.Second
	require.Equal(t, ErrInvalidCfg, errors.Cause(ValidateChain(cfg)))
}

func TestValidateDB(t *testing.T) {
	cfg := defaultCopy()
	cfg.DB.Backend = "rocksdb"
	require.Equal(t, ErrInvalidCfg, errors.Cause(ValidateDB(cfg)))

	cfg = defaultCopy()
	cfg.DB.DbPath = ""
	require.Equal(t, ErrInvalidCfg, errors.Cause(ValidateDB(cfg)))
	cfg.DB.Backend = db.BackendInMemDB
	require.NoError(t, ValidateDB(cfg))
}

func TestValidateActPool(t *testing.T) {
	cfg := defaultCopy()
	cfg.ActPool.MaxNumActsPerAcct = 0
	err := ValidateActPool(cfg)
	require.Equal(t, ErrInvalidCfg, errors.Cause(err))
	require.True(
		t,
		strings.Contains(err.Error(), "maximum number of actions per pool or per account cannot be zero or negative"),
	)

	cfg.ActPool.MaxNumActsPerAcct = 100
	cfg.ActPool.MaxNumActsPerPool = 99
	err = ValidateActPool(cfg)
	require.Equal(t, ErrInvalidCfg, errors.Cause(err))
	require.True(
		t,
		strings.Contains(
			err.Error(),
			"maximum number of actions per pool cannot be less than maximum number of actions per account",
		),
	)
}

func TestValidateOffchain(t *testing.T) {
	cfg := defaultCopy()
	cfg.Offchain.RetryInterval = -time.Second
	require.Equal(t, ErrInvalidCfg, errors.Cause(ValidateOffchain(cfg)))
	cfg.Offchain.Enabled = false
	require.NoError(t, ValidateOffchain(cfg))
}

func TestValidateStaking(t *testing.T) {
	require.NoError(t, ValidateStaking(defaultCopy()))

	for _, c := range []struct {
		name   string
		modify func(*Config)
	}{
		{"zero session length", func(c *Config) { c.Genesis.SessionLength = 0 }},
		{"zero sessions per era", func(c *Config) { c.Genesis.SessionsPerEra = 0 }},
		{"lookahead", func(c *Config) { c.Genesis.ElectionLookahead = c.Genesis.SessionLength }},
		{"defer", func(c *Config) { c.Genesis.SlashDeferDuration = c.Genesis.BondingDuration }},
		{"nominations", func(c *Config) { c.Genesis.MaxNominations = 0 }},
		{"history", func(c *Config) { c.Genesis.HistoryDepth = 0 }},
		{"validator count", func(c *Config) { c.Genesis.MinimumValidatorCount = c.Genesis.ValidatorCount + 1 }},
		{"fraction", func(c *Config) { c.Genesis.SlashRewardFraction = perbill.One() + 1 }},
		{"switch", func(c *Config) { c.Genesis.SlashingAllowedFor = "All" }},
	} {
		t.Run(c.name, func(t *testing.T) {
			cfg := defaultCopy()
			c.modify(&cfg)
			require.Equal(t, ErrInvalidCfg, errors.Cause(ValidateStaking(cfg)))
		})
	}
}
