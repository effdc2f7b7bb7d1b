// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package offchain runs the election off chain while the election window is open and submits the solution as an
// unsigned action.
package offchain

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/action/protocol/staking"
	"github.com/iotexproject/iotex-npos/db"
	"github.com/iotexproject/iotex-npos/pkg/lifecycle"
	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/pkg/routine"
	"github.com/iotexproject/iotex-npos/pkg/util/byteutil"
)

const (
	// _headNS keeps the bookkeeping of the worker, it is local to the node and never part of the state
	_headNS  = "offchain"
	_headKey = "head"
)

// Errors
var (
	ErrFork             = errors.New("fork")
	ErrRecentlyExecuted = errors.New("recently executed")
	ErrWorkerBusy       = errors.New("worker is busy")
)

var _workerMtc = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "npos_offchain_worker",
		Help: "Runs of the off-chain election worker.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(_workerMtc)
}

type (
	// Config is the config of the worker
	Config struct {
		Enabled bool `yaml:"enabled"`
		// MaxIterations of balancing, the staking constant is used when zero
		MaxIterations int `yaml:"maxIterations"`
		// Repeat is the number of blocks the worker stays quiet after a run
		Repeat uint64 `yaml:"repeat"`
		// SubmitRetries bounds the attempts to hand the solution to the pool
		SubmitRetries uint64        `yaml:"submitRetries"`
		RetryInterval time.Duration `yaml:"retryInterval"`
	}

	// Solver computes the solution of an open election
	Solver interface {
		ElectionStatus(protocol.StateReader) (*staking.ElectionStatus, error)
		ComputeOffchainSolution(protocol.StateReader, time.Time, int) (*action.SubmitElectionSolutionUnsigned, error)
	}

	// Submitter accepts the unsigned solution for inclusion
	Submitter interface {
		Add(context.Context, *protocol.Envelope) error
	}

	// Option is an option of the worker
	Option func(*Worker)

	tip struct {
		sr        protocol.StateReader
		height    uint64
		timestamp time.Time
	}

	// Worker runs the off-chain election once per block while the window is open
	Worker struct {
		cfg       Config
		kv        db.KVStore
		solver    Solver
		submitter Submitter
		clock     clock.Clock
		task      *routine.TriggerTask
		logger    *zap.Logger

		mu      sync.Mutex
		latest  *tip
		ctx     context.Context
		running atomic.Bool

		runs      atomic.Uint64
		submitted atomic.Uint64
	}
)

// DefaultConfig is the default config of the worker
var DefaultConfig = Config{
	Enabled:       true,
	Repeat:        5,
	SubmitRetries: 3,
	RetryInterval: 500 * time.Millisecond,
}

var _ lifecycle.StartStopper = (*Worker)(nil)

// WithClock sets the clock the worker measures its runs on
func WithClock(c clock.Clock) Option {
	return func(w *Worker) {
		w.clock = c
	}
}

// NewWorker creates a worker keeping its head marker in kv
func NewWorker(cfg Config, kv db.KVStore, solver Solver, submitter Submitter, opts ...Option) *Worker {
	w := &Worker{
		cfg:       cfg,
		kv:        kv,
		solver:    solver,
		submitter: submitter,
		clock:     clock.New(),
		logger:    log.Logger("offchain"),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(w)
	}
	// one pending trigger is enough, the worker always runs on the latest block
	w.task = routine.NewTriggerTask(w.runLatest, routine.TriggerBufferSize(1))
	return w
}

// Start starts the worker
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()
	return w.task.Start(ctx)
}

// Stop stops the worker once the current run returns
func (w *Worker) Stop(ctx context.Context) error {
	return w.task.Stop(ctx)
}

// OnBlock schedules a run on a newly committed block. It returns false if the worker is disabled or stopped.
func (w *Worker) OnBlock(sr protocol.StateReader, height uint64, timestamp time.Time) bool {
	if !w.cfg.Enabled {
		return false
	}
	w.mu.Lock()
	w.latest = &tip{sr: sr, height: height, timestamp: timestamp}
	w.mu.Unlock()
	return w.task.Trigger()
}

// Runs returns the number of runs that computed a solution
func (w *Worker) Runs() uint64 { return w.runs.Load() }

// Submitted returns the number of solutions handed to the pool
func (w *Worker) Submitted() uint64 { return w.submitted.Load() }

func (w *Worker) runLatest() {
	w.mu.Lock()
	t, ctx := w.latest, w.ctx
	w.latest = nil
	w.mu.Unlock()
	if t == nil {
		return
	}
	if err := w.Run(ctx, t.sr, t.height, t.timestamp); err != nil {
		w.logger.Warn("Skipping offchain worker in open election window", zap.Uint64("height", t.height), zap.Error(err))
	}
}

// Run computes and submits a solution if the election window is open at height
func (w *Worker) Run(ctx context.Context, sr protocol.StateReader, height uint64, timestamp time.Time) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrWorkerBusy
	}
	defer w.running.Store(false)

	status, err := w.solver.ElectionStatus(sr)
	if err != nil {
		return err
	}
	if !status.Open || status.Block > height {
		return nil
	}
	if err := w.checkExecution(height); err != nil {
		_workerMtc.WithLabelValues("skipped").Inc()
		return err
	}

	start := w.clock.Now()
	sol, err := w.solver.ComputeOffchainSolution(sr, timestamp, w.cfg.MaxIterations)
	if err != nil {
		_workerMtc.WithLabelValues("failure").Inc()
		return errors.Wrap(err, "failed to compute the election")
	}
	w.runs.Inc()
	env := protocol.NewEnvelope(sol, protocol.OriginNone)
	submit := func() error { return w.submitter.Add(ctx, env) }
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(w.cfg.RetryInterval), w.cfg.SubmitRetries)
	if err := backoff.Retry(submit, policy); err != nil {
		_workerMtc.WithLabelValues("failure").Inc()
		return errors.Wrap(err, "failed to submit the election solution")
	}
	w.submitted.Inc()
	_workerMtc.WithLabelValues("submitted").Inc()
	w.logger.Info("Submitted offchain election solution",
		zap.Uint64("height", height),
		zap.Uint32("era", sol.Era()),
		zap.Int("winners", len(sol.Winners())),
		zap.Duration("elapsed", w.clock.Now().Sub(start)))
	return nil
}

// checkExecution moves the head marker to height unless the worker ran within the last Repeat blocks or the chain
// went back to a block before the last run
func (w *Worker) checkExecution(height uint64) error {
	value, err := w.kv.Get(_headNS, []byte(_headKey))
	switch errors.Cause(err) {
	case nil:
		head := byteutil.BytesToUint64BigEndian(value)
		if height < head {
			return ErrFork
		}
		if height <= head+w.cfg.Repeat {
			return ErrRecentlyExecuted
		}
	case db.ErrNotExist:
	default:
		return err
	}
	return w.kv.Put(_headNS, []byte(_headKey), byteutil.Uint64ToBytesBigEndian(height))
}
