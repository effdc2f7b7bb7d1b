// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package config

import (
	"os"
	"time"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	uconfig "go.uber.org/config"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol/staking/offchain"
	"github.com/iotexproject/iotex-npos/actpool"
	"github.com/iotexproject/iotex-npos/blockchain/genesis"
	"github.com/iotexproject/iotex-npos/db"
	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// IMPORTANT: to define a config, add a field or a new config type to the existing config types. In addition, provide
// the default value in Default var.

var (
	// Default is the default config
	Default = Config{
		Chain: Chain{
			ChainDBPath:     "/var/data/npos.db",
			ProduceInterval: 0,
			MaxActsPerBlock: 1000,
		},
		System: System{
			HeartbeatInterval: 10 * time.Second,
			HTTPProbePort:     8080,
			HTTPAdminPort:     0,
		},
		ActPool:  actpool.DefaultConfig,
		Offchain: offchain.DefaultConfig,
		DB:       db.DefaultConfig,
		SubLogs:  make(map[string]log.GlobalConfig),
		Genesis:  genesis.Default,
	}

	// ErrInvalidCfg indicates the invalid config value
	ErrInvalidCfg = errors.New("invalid config value")

	// Validates is the collection config validation functions
	Validates = []Validate{
		ValidateChain,
		ValidateDB,
		ValidateActPool,
		ValidateOffchain,
		ValidateStaking,
	}
)

type (
	// Chain is the config struct for the node driving the blocks
	Chain struct {
		ChainDBPath string `yaml:"chainDBPath"`
		// ProducerAddr is credited with the block author points, empty leaves the blocks without producer
		ProducerAddr string `yaml:"producer"`
		// ProduceInterval produces blocks periodically from the pending actions, 0 disables it
		ProduceInterval time.Duration `yaml:"produceInterval"`
		// MaxActsPerBlock caps the number of actions taken from the pool into one block
		MaxActsPerBlock int `yaml:"maxActsPerBlock"`
	}

	// System is the system config
	System struct {
		HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
		// HTTPProbePort serves liveness, readiness and the metrics, 0 disables it
		HTTPProbePort int `yaml:"httpProbePort"`
		// HTTPAdminPort serves the log level and performance profiling data, 0 disables it
		HTTPAdminPort int `yaml:"httpAdminPort"`
	}

	// Config is the root config struct, each package's config should be put as its sub struct
	Config struct {
		Chain    Chain                       `yaml:"chain"`
		System   System                      `yaml:"system"`
		ActPool  actpool.Config              `yaml:"actPool"`
		Offchain offchain.Config             `yaml:"offchain"`
		DB       db.Config                   `yaml:"db"`
		Log      log.GlobalConfig            `yaml:"log"`
		SubLogs  map[string]log.GlobalConfig `yaml:"subLogs"`
		Genesis  genesis.Genesis             `yaml:"genesis"`
	}

	// Validate is the interface of validating the config
	Validate func(Config) error
)

// New creates a config instance. It first loads the default configs. If the config path is not empty, it will read from
// the file and override the default configs. By default, it will apply all validation functions. To bypass validation,
// use DoNotValidate instead.
func New(configPaths []string, validates ...Validate) (Config, error) {
	opts := make([]uconfig.YAMLOption, 0)
	opts = append(opts, uconfig.Static(Default))
	opts = append(opts, uconfig.Expand(os.LookupEnv))
	for _, path := range configPaths {
		if path != "" {
			opts = append(opts, uconfig.File(path))
		}
	}
	yaml, err := uconfig.NewYAML(opts...)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to init config")
	}

	var cfg Config
	if err := yaml.Get(uconfig.Root).Populate(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal YAML config to struct")
	}
	if cfg.DB.DbPath == "" {
		cfg.DB.DbPath = cfg.Chain.ChainDBPath
	}

	// By default, the config needs to pass all the validation
	if len(validates) == 0 {
		validates = Validates
	}
	for _, validate := range validates {
		if err := validate(cfg); err != nil {
			return Config{}, errors.Wrap(err, "failed to validate config")
		}
	}
	return cfg, nil
}

// ProducerAddress returns the configured producer, nil if none is set
func (cfg Config) ProducerAddress() address.Address {
	if cfg.Chain.ProducerAddr == "" {
		return nil
	}
	addr, err := address.FromString(cfg.Chain.ProducerAddr)
	if err != nil {
		log.S().Panicf("Error when decoding producer address %s", cfg.Chain.ProducerAddr)
	}
	return addr
}

// ValidateChain validates the chain configs
func ValidateChain(cfg Config) error {
	if cfg.Chain.ProducerAddr != "" {
		if _, err := address.FromString(cfg.Chain.ProducerAddr); err != nil {
			return errors.Wrapf(ErrInvalidCfg, "invalid producer address %s", cfg.Chain.ProducerAddr)
		}
	}
	if cfg.Chain.ProduceInterval < 0 {
		return errors.Wrap(ErrInvalidCfg, "produce interval should not be less than 0")
	}
	if cfg.Chain.MaxActsPerBlock <= 0 {
		return errors.Wrap(ErrInvalidCfg, "maximum number of actions per block should be greater than 0")
	}
	return nil
}

// ValidateDB validates the db configs
func ValidateDB(cfg Config) error {
	switch cfg.DB.Backend {
	case db.BackendBolt, db.BackendPebble, db.BackendLevel, db.BackendInMemDB:
	default:
		return errors.Wrapf(ErrInvalidCfg, "unknown db backend %s", cfg.DB.Backend)
	}
	if cfg.DB.Backend != db.BackendInMemDB && cfg.DB.DbPath == "" {
		return errors.Wrap(ErrInvalidCfg, "db path is empty")
	}
	return nil
}

// ValidateActPool validates the given config
func ValidateActPool(cfg Config) error {
	maxNumActPerPool := cfg.ActPool.MaxNumActsPerPool
	maxNumActPerAcct := cfg.ActPool.MaxNumActsPerAcct
	if maxNumActPerPool <= 0 || maxNumActPerAcct <= 0 {
		return errors.Wrap(
			ErrInvalidCfg,
			"maximum number of actions per pool or per account cannot be zero or negative",
		)
	}
	if maxNumActPerPool < maxNumActPerAcct {
		return errors.Wrap(
			ErrInvalidCfg,
			"maximum number of actions per pool cannot be less than maximum number of actions per account",
		)
	}
	return nil
}

// ValidateOffchain validates the off-chain worker configs
func ValidateOffchain(cfg Config) error {
	if !cfg.Offchain.Enabled {
		return nil
	}
	if cfg.Offchain.MaxIterations < 0 {
		return errors.Wrap(ErrInvalidCfg, "offchain max iterations should not be less than 0")
	}
	if cfg.Offchain.RetryInterval < 0 {
		return errors.Wrap(ErrInvalidCfg, "offchain retry interval should not be less than 0")
	}
	return nil
}

// ValidateStaking validates the staking constants of the genesis
func ValidateStaking(cfg Config) error {
	g := cfg.Genesis
	switch {
	case g.SessionLength == 0:
		return errors.Wrap(ErrInvalidCfg, "session length should be greater than 0")
	case g.SessionsPerEra == 0:
		return errors.Wrap(ErrInvalidCfg, "sessions per era should be greater than 0")
	case g.ElectionLookahead >= g.SessionLength:
		return errors.Wrap(ErrInvalidCfg, "election lookahead should be shorter than a session")
	case g.SlashDeferDuration > 0 && g.SlashDeferDuration >= g.BondingDuration:
		return errors.Wrap(ErrInvalidCfg, "slash defer duration should be shorter than the bonding duration")
	case g.MaxNominations == 0:
		return errors.Wrap(ErrInvalidCfg, "max nominations should be greater than 0")
	case g.HistoryDepth == 0:
		return errors.Wrap(ErrInvalidCfg, "history depth should be greater than 0")
	case g.MinimumValidatorCount > g.ValidatorCount:
		return errors.Wrap(ErrInvalidCfg, "minimum validator count is greater than validator count")
	}
	for name, p := range map[string]perbill.Perbill{
		"minSolutionScoreBump":         g.MinSolutionScoreBump,
		"offendingValidatorsThreshold": g.OffendingValidatorsThreshold,
		"slashRewardFraction":          g.SlashRewardFraction,
		"validatorCommissionCap":       g.ValidatorCommissionCap,
	} {
		if p > perbill.One() {
			return errors.Wrapf(ErrInvalidCfg, "%s exceeds one", name)
		}
	}
	if _, err := action.ParseSlashingSwitch(g.SlashingAllowedFor); err != nil {
		return errors.Wrapf(ErrInvalidCfg, "unknown slashing switch %s", g.SlashingAllowedFor)
	}
	return nil
}

// DoNotValidate validates the given config
func DoNotValidate(cfg Config) error { return nil }
