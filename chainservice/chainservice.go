// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package chainservice

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/action/protocol/account"
	"github.com/iotexproject/iotex-npos/action/protocol/identity"
	"github.com/iotexproject/iotex-npos/action/protocol/session"
	"github.com/iotexproject/iotex-npos/action/protocol/staking"
	"github.com/iotexproject/iotex-npos/action/protocol/staking/offchain"
	"github.com/iotexproject/iotex-npos/actpool"
	"github.com/iotexproject/iotex-npos/blockchain/block"
	"github.com/iotexproject/iotex-npos/config"
	"github.com/iotexproject/iotex-npos/db"
	"github.com/iotexproject/iotex-npos/pkg/lifecycle"
	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/pkg/routine"
	"github.com/iotexproject/iotex-npos/state/factory"
)

// ErrUnhandledAction indicates no registered protocol handles the action
var ErrUnhandledAction = errors.New("no protocol handles the action")

var _blockMtc = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "npos_chainservice_block",
		Help: "Blocks and actions applied by the chain service.",
	},
	[]string{"type"},
)

func init() {
	prometheus.MustRegister(_blockMtc)
}

// ChainService is a node applying blocks to the staking state
type ChainService struct {
	mu        sync.Mutex
	cfg       config.Config
	sf        *factory.StateDB
	registry  *protocol.Registry
	account   *account.Protocol
	identity  *identity.Protocol
	session   *session.Protocol
	staking   *staking.Protocol
	actpool   actpool.ActPool
	worker    *offchain.Worker
	producer  *routine.RecurringTask
	readCache *ReadCache
	lifecycle lifecycle.Lifecycle
	logger    *zap.Logger
	// genesisOrder lists the protocols in the order their genesis states are created
	genesisOrder []protocol.GenesisStateCreator
}

type optionParams struct {
	kv      db.KVStore
	offOpts []offchain.Option
	apOpts  []actpool.Option
}

// Option sets an option of the chain service
type Option func(ops *optionParams) error

// WithKVStore runs the service over the given store instead of the configured one
func WithKVStore(kv db.KVStore) Option {
	return func(ops *optionParams) error {
		ops.kv = kv
		return nil
	}
}

// WithOffchainOptions passes options to the off-chain worker
func WithOffchainOptions(opts ...offchain.Option) Option {
	return func(ops *optionParams) error {
		ops.offOpts = append(ops.offOpts, opts...)
		return nil
	}
}

// WithActPoolOptions passes options to the actpool
func WithActPoolOptions(opts ...actpool.Option) Option {
	return func(ops *optionParams) error {
		ops.apOpts = append(ops.apOpts, opts...)
		return nil
	}
}

// New creates a chain service
func New(cfg config.Config, opts ...Option) (*ChainService, error) {
	ops := &optionParams{}
	for _, opt := range opts {
		if err := opt(ops); err != nil {
			return nil, err
		}
	}
	kv := ops.kv
	if kv == nil {
		var err error
		if kv, err = db.CreateKVStore(cfg.DB); err != nil {
			return nil, errors.Wrap(err, "failed to create the state store")
		}
	}
	sf := factory.NewStateDB(kv)

	g := cfg.Genesis
	accountProtocol := account.NewProtocol(g.Account)
	identityProtocol := identity.NewProtocol(g.Identity)
	sessionProtocol := session.NewProtocol(g.Blockchain)
	stakingProtocol, err := staking.NewProtocol(g.Blockchain, g.Staking, accountProtocol, identityProtocol, sessionProtocol)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the staking protocol")
	}
	sessionProtocol.SetManager(stakingProtocol)

	// the session rotates before staking starts its eras on the same block
	registry := protocol.NewRegistry()
	for _, p := range []protocol.Protocol{accountProtocol, identityProtocol, sessionProtocol, stakingProtocol} {
		if err := p.Register(registry); err != nil {
			return nil, err
		}
	}

	ap, err := actpool.NewActPool(sf, cfg.ActPool, ops.apOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create actpool")
	}
	for _, p := range registry.All() {
		ap.AddActionValidators(p)
	}

	cs := &ChainService{
		cfg:       cfg,
		sf:        sf,
		registry:  registry,
		account:   accountProtocol,
		identity:  identityProtocol,
		session:   sessionProtocol,
		staking:   stakingProtocol,
		actpool:   ap,
		readCache: NewReadCache(time.Minute),
		logger:    log.Logger("chainservice"),
		genesisOrder: []protocol.GenesisStateCreator{
			accountProtocol,
			identityProtocol,
			stakingProtocol,
			sessionProtocol,
		},
	}
	cs.worker = offchain.NewWorker(cfg.Offchain, kv, stakingProtocol, ap, ops.offOpts...)
	cs.lifecycle.Add(cs.worker)
	if cfg.Chain.ProduceInterval > 0 {
		cs.producer = routine.NewRecurringTask(cs.produce, cfg.Chain.ProduceInterval)
		cs.lifecycle.Add(cs.producer)
	}
	return cs, nil
}

// Start opens the state, commits the genesis states on an empty store and starts the background tasks
func (cs *ChainService) Start(ctx context.Context) error {
	if err := cs.sf.Start(ctx); err != nil {
		return errors.Wrap(err, "error when starting state db")
	}
	if !cs.sf.Initialized() {
		if err := cs.createGenesisStates(ctx); err != nil {
			return errors.Wrap(err, "error when creating genesis states")
		}
	}
	return cs.lifecycle.OnStartSequentially(ctx)
}

// Stop stops the background tasks and closes the state
func (cs *ChainService) Stop(ctx context.Context) error {
	if err := cs.lifecycle.OnStopSequentially(ctx); err != nil {
		return err
	}
	return cs.sf.Stop(ctx)
}

func (cs *ChainService) createGenesisStates(ctx context.Context) error {
	ws, err := cs.sf.NewGenesisWorkingSet()
	if err != nil {
		return err
	}
	ctx = cs.genesisBlock().Context(ctx)
	for _, p := range cs.genesisOrder {
		if err := p.CreateGenesisStates(ctx, ws); err != nil {
			return err
		}
	}
	if err := cs.sf.Commit(ws); err != nil {
		return err
	}
	genesisHash := cs.cfg.Genesis.Hash()
	cs.logger.Info("Created genesis states", zap.String("genesis", hex.EncodeToString(genesisHash[:])))
	return nil
}

func (cs *ChainService) genesisBlock() *block.Block {
	return block.NewBuilder(0, time.Unix(cs.cfg.Genesis.Timestamp, 0)).Build()
}

// Height returns the height of the last applied block
func (cs *ChainService) Height() uint64 {
	h, _ := cs.sf.Height()
	return h
}

// StateReader returns the reader of the committed state
func (cs *ChainService) StateReader() protocol.StateReader { return cs.sf }

// Registry returns the registered protocols
func (cs *ChainService) Registry() *protocol.Registry { return cs.registry }

// Staking returns the staking protocol
func (cs *ChainService) Staking() *staking.Protocol { return cs.staking }

// Account returns the account protocol
func (cs *ChainService) Account() *account.Protocol { return cs.account }

// ActPool returns the pool of pending actions
func (cs *ChainService) ActPool() actpool.ActPool { return cs.actpool }

// Worker returns the off-chain election worker
func (cs *ChainService) Worker() *offchain.Worker { return cs.worker }

// HandleAction adds an incoming action into the pool
func (cs *ChainService) HandleAction(ctx context.Context, env *protocol.Envelope) error {
	err := cs.actpool.Add(ctx, env)
	if err != nil {
		log.L().Debug(err.Error())
	}
	return err
}

// NextBlockTime returns the timestamp of the block at height
func (cs *ChainService) NextBlockTime(height uint64) time.Time {
	g := cs.cfg.Genesis
	return time.Unix(g.Timestamp, 0).Add(time.Duration(height) * g.BlockInterval)
}

// ProduceBlock builds the next block out of the pending actions and applies it
func (cs *ChainService) ProduceBlock(ctx context.Context) (*block.Block, error) {
	height := cs.Height() + 1
	pending := cs.actpool.PendingActions()
	if len(pending) > cs.cfg.Chain.MaxActsPerBlock {
		pending = pending[:cs.cfg.Chain.MaxActsPerBlock]
	}
	blk := block.NewBuilder(height, cs.NextBlockTime(height)).
		SetProducer(cs.cfg.ProducerAddress()).
		AddActions(pending...).
		Build()
	if err := cs.ApplyBlock(ctx, blk); err != nil {
		return nil, err
	}
	return blk, nil
}

func (cs *ChainService) produce() {
	blk, err := cs.ProduceBlock(context.Background())
	if err != nil {
		cs.logger.Error("Failed to produce block", zap.Error(err))
		return
	}
	cs.logger.Debug("Produced block", zap.Uint64("height", blk.Height()), zap.Int("actions", len(blk.Actions)))
}

// ApplyBlock runs the block hooks and the actions of the block on top of the committed state and commits the result.
// A rejected action reverts its own changes and gets a failed receipt, the block is still applied.
func (cs *ChainService) ApplyBlock(ctx context.Context, blk *block.Block) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	tip, err := cs.sf.Height()
	if err != nil {
		return err
	}
	if blk.Height() != tip+1 {
		return errors.Errorf("invalid block height %d, expecting %d", blk.Height(), tip+1)
	}
	ws := cs.sf.NewWorkingSet()
	events := &protocol.EventLog{}
	ctx = protocol.WithEventLog(blk.Context(ctx), events)

	for _, p := range cs.registry.All() {
		if bi, ok := p.(protocol.BlockInitializer); ok {
			if err := bi.OnInitialize(ctx, ws); err != nil {
				return errors.Wrapf(err, "failed to initialize block %d", blk.Height())
			}
		}
	}
	receipts := make([]*action.Receipt, 0, len(blk.Actions))
	for _, env := range blk.Actions {
		receipt, err := cs.runAction(ctx, ws, events, env)
		if err != nil {
			return err
		}
		receipts = append(receipts, receipt)
	}
	for _, p := range cs.registry.All() {
		if bf, ok := p.(protocol.BlockFinalizer); ok {
			if err := bf.OnFinalize(ctx, ws); err != nil {
				return errors.Wrapf(err, "failed to finalize block %d", blk.Height())
			}
		}
	}
	if err := cs.sf.Commit(ws); err != nil {
		return errors.Wrapf(err, "failed to commit block %d", blk.Height())
	}
	blk.Receipts = receipts
	blk.Logs = events.Logs()
	_blockMtc.WithLabelValues("block").Inc()

	cs.readCache.Clear()
	cs.actpool.ReceiveBlock(blk.Actions)
	cs.worker.OnBlock(cs.sf, blk.Height(), blk.Timestamp())
	return nil
}

// runAction dispatches an action to the first protocol handling it. The error is only set if the state can no longer
// be reverted.
func (cs *ChainService) runAction(ctx context.Context, ws *factory.WorkingSet, events *protocol.EventLog, env *protocol.Envelope) (*action.Receipt, error) {
	height := protocol.MustGetBlockCtx(ctx).BlockHeight
	if err := env.SanityCheck(); err != nil {
		return cs.failedReceipt(height, err), nil
	}
	ctx = env.Context(ctx)
	snapshot, logs := ws.Snapshot(), events.Len()
	for _, p := range cs.registry.All() {
		receipt, err := p.Handle(ctx, env.Action, ws)
		if err != nil {
			if rerr := ws.Revert(snapshot); rerr != nil {
				return nil, errors.Wrap(rerr, "failed to revert rejected action")
			}
			events.Truncate(logs)
			return cs.failedReceipt(height, err), nil
		}
		if receipt != nil {
			_blockMtc.WithLabelValues("action").Inc()
			return receipt.AddLogs(events.Logs()[logs:]...), nil
		}
	}
	return cs.failedReceipt(height, ErrUnhandledAction), nil
}

func (cs *ChainService) failedReceipt(height uint64, err error) *action.Receipt {
	_blockMtc.WithLabelValues("failedAction").Inc()
	cs.logger.Debug("Action rejected", zap.Uint64("height", height), zap.Error(err))
	return &action.Receipt{
		Status:      action.FailureReceiptStatus,
		BlockHeight: height,
		ErrorCode:   staking.ErrorCode(err),
	}
}

// ReadState reads the committed state of a protocol, results are cached until the next block
func (cs *ChainService) ReadState(ctx context.Context, protocolID string, method []byte, args ...[]byte) ([]byte, error) {
	p, ok := cs.registry.Find(protocolID)
	if !ok {
		return nil, errors.Wrapf(protocol.ErrUnimplemented, "protocol %s isn't registered", protocolID)
	}
	key := ReadKey{
		Protocol: protocolID,
		Height:   cs.Height(),
		Method:   method,
		Args:     args,
	}
	h := key.Hash()
	if d, ok := cs.readCache.Get(h); ok {
		return d, nil
	}
	d, err := p.ReadState(ctx, cs.sf, method, args...)
	if err != nil {
		return nil, err
	}
	cs.readCache.Put(h, d)
	return d, nil
}
