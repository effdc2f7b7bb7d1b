// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package genesis

import (
	"encoding/hex"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"go.uber.org/config"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// Default contains the default genesis config
var Default = defaultConfig()

func defaultConfig() Genesis {
	return Genesis{
		Blockchain: Blockchain{
			Timestamp:     1546329600,
			BlockInterval: 6 * time.Second,
			SessionLength: 10,
		},
		Account: Account{
			InitBalanceMap:        make(map[string]string),
			ExistentialDepositStr: "1",
		},
		Staking: Staking{
			SessionsPerEra:                   3,
			BondingDuration:                  3,
			SlashDeferDuration:               0,
			HistoryDepth:                     84,
			MaxNominations:                   16,
			MaxUnlockingChunks:               32,
			ElectionLookahead:                3,
			MaxIterations:                    10,
			MinSolutionScoreBump:             perbill.FromParts(50_000),
			MaxNominatorRewardedPerValidator: 64,
			OffendingValidatorsThreshold:     perbill.FromPercent(17),
			MaxValidatorPerIdentity:          perbill.One(),
			SlashRewardFraction:              perbill.FromPercent(10),
			MaxSnapshotValidators:            1000,
			MaxSnapshotNominators:            20000,
			ValidatorCount:                   2,
			MinimumValidatorCount:            1,
			DefaultIntendedCount:             1,
			ValidatorCommissionCap:           perbill.One(),
			SlashingAllowedFor:               "Validator",
			MinimumBondStr:                   "1",
			MinimumBondThresholdStr:          "0",

			MaxVariableInflationTotalIssuanceStr: "1000000000000000000",
			FixedYearlyRewardStr:                 "200000000000000000",

			RewardCurve: RewardCurve{
				MinInflation:  perbill.FromParts(25_000_000),
				MaxInflation:  perbill.FromParts(140_000_000),
				IdealStake:    perbill.FromParts(700_000_000),
				Falloff:       perbill.FromParts(50_000_000),
				MaxPieceCount: 40,
				TestPrecision: perbill.FromParts(5_000_000),
			},
		},
	}
}

type (
	// Genesis is the root level of genesis config. Genesis config is the network-wide blockchain config. All the nodes
	// participating into the same network should use EXACTLY SAME genesis config.
	Genesis struct {
		Blockchain `yaml:"blockchain"`
		Account    `yaml:"account"`
		Identity   `yaml:"identity"`
		Staking    `yaml:"staking"`
	}

	// Blockchain contains blockchain level configs
	Blockchain struct {
		// Timestamp is the timestamp of the genesis block
		Timestamp int64 `yaml:"timestamp"`
		// BlockInterval is the interval between two blocks
		BlockInterval time.Duration `yaml:"blockInterval"`
		// SessionLength is the number of blocks in a session
		SessionLength uint64 `yaml:"sessionLength"`
	}

	// Account contains the configs for account protocol
	Account struct {
		// InitBalanceMap is the address and initial balance mapping before the first block.
		InitBalanceMap map[string]string `yaml:"initBalances"`
		// ExistentialDepositStr is the minimum balance an account must keep to exist
		ExistentialDepositStr string `yaml:"existentialDeposit"`
	}

	// Identity contains the identities registered at genesis
	Identity struct {
		Identities []GenesisIdentity `yaml:"identities"`
	}

	// GenesisIdentity is one identity with its linked accounts and due diligence claim
	GenesisIdentity struct {
		// DIDStr is the hex encoded identity, derived from the first account if empty
		DIDStr   string   `yaml:"did"`
		Accounts []string `yaml:"accounts"`
		// CDD grants a due diligence claim
		CDD bool `yaml:"cdd"`
		// CDDExpiry is the unix time the claim expires, zero never expires
		CDDExpiry int64 `yaml:"cddExpiry"`
	}

	// Staking contains the configs for the staking protocol
	Staking struct {
		SessionsPerEra                       uint32          `yaml:"sessionsPerEra"`
		BondingDuration                      uint32          `yaml:"bondingDuration"`
		SlashDeferDuration                   uint32          `yaml:"slashDeferDuration"`
		HistoryDepth                         uint32          `yaml:"historyDepth"`
		MaxNominations                       uint32          `yaml:"maxNominations"`
		MaxUnlockingChunks                   uint32          `yaml:"maxUnlockingChunks"`
		ElectionLookahead                    uint64          `yaml:"electionLookahead"`
		MaxIterations                        int             `yaml:"maxIterations"`
		MinSolutionScoreBump                 perbill.Perbill `yaml:"minSolutionScoreBump"`
		MaxNominatorRewardedPerValidator     uint32          `yaml:"maxNominatorRewardedPerValidator"`
		OffendingValidatorsThreshold         perbill.Perbill `yaml:"offendingValidatorsThreshold"`
		MaxValidatorPerIdentity              perbill.Perbill `yaml:"maxValidatorPerIdentity"`
		SlashRewardFraction                  perbill.Perbill `yaml:"slashRewardFraction"`
		MaxSnapshotValidators                int             `yaml:"maxSnapshotValidators"`
		MaxSnapshotNominators                int             `yaml:"maxSnapshotNominators"`
		ValidatorCount                       uint32          `yaml:"validatorCount"`
		MinimumValidatorCount                uint32          `yaml:"minimumValidatorCount"`
		DefaultIntendedCount                 uint32          `yaml:"defaultIntendedCount"`
		ValidatorCommissionCap               perbill.Perbill `yaml:"validatorCommissionCap"`
		SlashingAllowedFor                   string          `yaml:"slashingAllowedFor"`
		MinimumBondStr                       string          `yaml:"minimumBond"`
		MinimumBondThresholdStr              string          `yaml:"minimumBondThreshold"`
		MaxVariableInflationTotalIssuanceStr string          `yaml:"maxVariableInflationTotalIssuance"`
		FixedYearlyRewardStr                 string          `yaml:"fixedYearlyReward"`
		RewardCurve                          RewardCurve     `yaml:"rewardCurve"`
		InvulnerableAddrs                    []string        `yaml:"invulnerables"`
		Stakers                              []Staker        `yaml:"stakers"`
	}

	// RewardCurve parametrizes the piecewise linear inflation curve
	RewardCurve struct {
		MinInflation  perbill.Perbill `yaml:"minInflation"`
		MaxInflation  perbill.Perbill `yaml:"maxInflation"`
		IdealStake    perbill.Perbill `yaml:"idealStake"`
		Falloff       perbill.Perbill `yaml:"falloff"`
		MaxPieceCount uint32          `yaml:"maxPieceCount"`
		TestPrecision perbill.Perbill `yaml:"testPrecision"`
	}

	// Staker is a stash bonded at genesis
	Staker struct {
		StashAddr      string   `yaml:"stash"`
		ControllerAddr string   `yaml:"controller"`
		ValueStr       string   `yaml:"value"`
		Validator      bool     `yaml:"validator"`
		Targets        []string `yaml:"targets"`
	}
)

// New constructs a genesis config. It loads the default values, and could be overwritten by values defined in the yaml
// config files
func New(genesisPath string) (Genesis, error) {
	def := defaultConfig()

	opts := make([]config.YAMLOption, 0)
	opts = append(opts, config.Static(def))
	if genesisPath != "" {
		opts = append(opts, config.File(genesisPath))
	}
	yaml, err := config.NewYAML(opts...)
	if err != nil {
		return Genesis{}, errors.Wrap(err, "error when constructing a genesis in yaml")
	}

	var genesis Genesis
	if err := yaml.Get(config.Root).Populate(&genesis); err != nil {
		return Genesis{}, errors.Wrap(err, "failed to unmarshal yaml genesis to struct")
	}
	return genesis, nil
}

type genesisRLP struct {
	Timestamp     uint64
	BlockInterval uint64
	SessionLength uint64
	Balances      []string
	Deposit       string
	Identities    [][]string
	Staking       []string
}

// Hash is the hash of genesis config
func (g *Genesis) Hash() hash.Hash256 {
	addrs := make([]string, 0, len(g.InitBalanceMap))
	for addr := range g.InitBalanceMap {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	balances := make([]string, 0, 2*len(addrs))
	for _, addr := range addrs {
		balances = append(balances, addr, g.InitBalanceMap[addr])
	}
	ids := make([][]string, 0, len(g.Identities))
	for _, id := range g.Identities {
		ids = append(ids, append([]string{id.DIDStr}, id.Accounts...))
	}
	stakers := make([]string, 0, len(g.Stakers))
	for _, s := range g.Stakers {
		stakers = append(stakers, s.StashAddr, s.ControllerAddr, s.ValueStr)
	}
	b, err := rlp.EncodeToBytes(&genesisRLP{
		Timestamp:     uint64(g.Timestamp),
		BlockInterval: uint64(g.BlockInterval),
		SessionLength: g.SessionLength,
		Balances:      balances,
		Deposit:       g.ExistentialDepositStr,
		Identities:    ids,
		Staking:       stakers,
	})
	if err != nil {
		log.L().Panic("Error when encoding genesis", zap.Error(err))
	}
	return hash.Hash256b(b)
}

// InitBalances returns the address that have initial balances and the corresponding amounts. The i-th amount is the
// i-th address' balance.
func (a *Account) InitBalances() ([]address.Address, []*big.Int) {
	// Make the list always be ordered
	addrStrs := make([]string, 0)
	for addrStr := range a.InitBalanceMap {
		addrStrs = append(addrStrs, addrStr)
	}
	sort.Strings(addrStrs)
	addrs := make([]address.Address, 0)
	amounts := make([]*big.Int, 0)
	for _, addrStr := range addrStrs {
		addr, err := address.FromString(addrStr)
		if err != nil {
			log.L().Panic("Error when decoding the account protocol init balance address from string.", zap.Error(err))
		}
		addrs = append(addrs, addr)
		amount, ok := new(big.Int).SetString(a.InitBalanceMap[addrStr], 10)
		if !ok {
			log.S().Panicf("Error when casting init balance string %s into big int", a.InitBalanceMap[addrStr])
		}
		amounts = append(amounts, amount)
	}
	return addrs, amounts
}

// ExistentialDeposit returns the minimum balance of an account
func (a *Account) ExistentialDeposit() *big.Int { return mustBig(a.ExistentialDepositStr) }

// DID returns the identity, derived from the first account when not given
func (i *GenesisIdentity) DID() hash.Hash256 {
	if i.DIDStr != "" {
		b, err := hex.DecodeString(i.DIDStr)
		if err != nil || len(b) != len(hash.ZeroHash256) {
			log.S().Panicf("Error when decoding identity %s", i.DIDStr)
		}
		return hash.BytesToHash256(b)
	}
	if len(i.Accounts) == 0 {
		log.S().Panic("Identity without accounts")
	}
	return DeriveDID(mustAddress(i.Accounts[0]))
}

// AccountAddrs returns the linked accounts
func (i *GenesisIdentity) AccountAddrs() []address.Address {
	addrs := make([]address.Address, 0, len(i.Accounts))
	for _, a := range i.Accounts {
		addrs = append(addrs, mustAddress(a))
	}
	return addrs
}

// DeriveDID returns the identity derived from an account
func DeriveDID(addr address.Address) hash.Hash256 {
	return hash.Hash256b(append([]byte("did:"), addr.Bytes()...))
}

// MinimumBond returns the minimum amount of a bond
func (s *Staking) MinimumBond() *big.Int { return mustBig(s.MinimumBondStr) }

// MinimumBondThreshold returns the minimum active stake of a validator
func (s *Staking) MinimumBondThreshold() *big.Int { return mustBig(s.MinimumBondThresholdStr) }

// MaxVariableInflationTotalIssuance returns the issuance above which the yearly reward is fixed
func (s *Staking) MaxVariableInflationTotalIssuance() *big.Int {
	return mustBig(s.MaxVariableInflationTotalIssuanceStr)
}

// FixedYearlyReward returns the yearly reward once the issuance passed the variable inflation cap
func (s *Staking) FixedYearlyReward() *big.Int { return mustBig(s.FixedYearlyRewardStr) }

// Invulnerables returns the validators that are never slashed
func (s *Staking) Invulnerables() []address.Address {
	addrs := make([]address.Address, 0, len(s.InvulnerableAddrs))
	for _, a := range s.InvulnerableAddrs {
		addrs = append(addrs, mustAddress(a))
	}
	return addrs
}

// Stash returns the stash of a genesis staker
func (s *Staker) Stash() address.Address { return mustAddress(s.StashAddr) }

// Controller returns the controller of a genesis staker
func (s *Staker) Controller() address.Address { return mustAddress(s.ControllerAddr) }

// Value returns the bonded value of a genesis staker
func (s *Staker) Value() *big.Int { return mustBig(s.ValueStr) }

// TargetAddrs returns the nominated stashes of a genesis staker
func (s *Staker) TargetAddrs() []address.Address {
	addrs := make([]address.Address, 0, len(s.Targets))
	for _, a := range s.Targets {
		addrs = append(addrs, mustAddress(a))
	}
	return addrs
}

func mustBig(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		log.S().Panicf("Error when casting string %s into big int", s)
	}
	return v
}

func mustAddress(s string) address.Address {
	addr, err := address.FromString(s)
	if err != nil {
		log.L().Panic("Error when decoding address", zap.String("address", s), zap.Error(err))
	}
	return addr
}
