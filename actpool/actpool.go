// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package actpool

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/pkg/log"
)

var (
	_actpoolMtc = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "npos_actpool_rejection_metrics",
		Help: "actpool metrics.",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(_actpoolMtc)
}

// Errors
var (
	ErrActPoolOverflow = errors.New("act pool is full")
	ErrAccountOverflow = errors.New("account queue is full")
)

// ActPool is the interface of actpool
type ActPool interface {
	// Reset drops every pending action
	Reset()
	// PendingActions returns the accepted actions in the order they were added
	PendingActions() []*protocol.Envelope
	// Add adds an action into the pool after passing validation
	Add(context.Context, *protocol.Envelope) error
	// Validate checks an action against the committed state without adding it
	Validate(context.Context, *protocol.Envelope) error
	// GetSize returns the act pool size
	GetSize() uint64
	// GetCapacity returns the act pool capacity
	GetCapacity() uint64
	// ReceiveBlock removes the actions included in a committed block
	ReceiveBlock([]*protocol.Envelope)

	AddActionValidators(...protocol.ActionValidator)
}

// Option sets an option of the actpool
type Option func(*actPool) error

// WithClock sets the clock actions expire on
func WithClock(c clock.Clock) Option {
	return func(ap *actPool) error {
		ap.clock = c
		return nil
	}
}

type (
	pendingAct struct {
		env      *protocol.Envelope
		seq      uint64
		deadline time.Time
	}

	actPool struct {
		mutex           sync.RWMutex
		cfg             Config
		sr              protocol.StateReader
		clock           clock.Clock
		validators      []protocol.ActionValidator
		queues          map[string][]*pendingAct
		size            uint64
		seq             uint64
		senderBlackList map[string]bool
	}
)

// NewActPool constructs a new actpool
func NewActPool(sr protocol.StateReader, cfg Config, opts ...Option) (ActPool, error) {
	if sr == nil {
		return nil, errors.New("Try to attach a nil state reader")
	}

	senderBlackList := make(map[string]bool)
	for _, bannedSender := range cfg.BlackList {
		senderBlackList[bannedSender] = true
	}

	ap := &actPool{
		cfg:             cfg,
		sr:              sr,
		clock:           clock.New(),
		queues:          make(map[string][]*pendingAct),
		senderBlackList: senderBlackList,
	}
	for _, opt := range opts {
		if err := opt(ap); err != nil {
			return nil, err
		}
	}
	return ap, nil
}

func (ap *actPool) AddActionValidators(vs ...protocol.ActionValidator) {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()
	ap.validators = append(ap.validators, vs...)
}

func (ap *actPool) Reset() {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()

	ap.queues = make(map[string][]*pendingAct)
	ap.size = 0
}

func (ap *actPool) PendingActions() []*protocol.Envelope {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()

	// Remove the actions that are already timeout
	ap.removeExpired()

	all := make([]*pendingAct, 0, ap.size)
	for _, queue := range ap.queues {
		all = append(all, queue...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	envs := make([]*protocol.Envelope, 0, len(all))
	for _, p := range all {
		envs = append(envs, p.env)
	}
	return envs
}

func (ap *actPool) Add(ctx context.Context, env *protocol.Envelope) error {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()

	// Reject action if pool space is full
	if ap.size >= ap.cfg.MaxNumActsPerPool {
		_actpoolMtc.WithLabelValues("overMaxNumActsPerPool").Inc()
		return ErrActPoolOverflow
	}
	if err := ap.validate(ctx, env); err != nil {
		return err
	}

	key := queueKey(env)
	queue := ap.queues[key]
	p := &pendingAct{env: env, seq: ap.seq, deadline: ap.clock.Now().Add(ap.cfg.ActionExpiry)}
	ap.seq++
	if env.Origin == protocol.OriginNone {
		// a newer unsigned action of the same kind replaces the pending one
		for i, q := range queue {
			if reflect.TypeOf(q.env.Action) == reflect.TypeOf(env.Action) {
				queue[i] = p
				_actpoolMtc.WithLabelValues("replacedUnsigned").Inc()
				return nil
			}
		}
	}
	if uint64(len(queue)) >= ap.cfg.MaxNumActsPerAcct {
		_actpoolMtc.WithLabelValues("overMaxNumActsPerAcct").Inc()
		return errors.Wrapf(ErrAccountOverflow, "queue %s", key)
	}
	ap.queues[key] = append(queue, p)
	ap.size++
	return nil
}

func (ap *actPool) Validate(ctx context.Context, env *protocol.Envelope) error {
	ap.mutex.RLock()
	defer ap.mutex.RUnlock()
	return ap.validate(ctx, env)
}

func (ap *actPool) GetSize() uint64 {
	ap.mutex.RLock()
	defer ap.mutex.RUnlock()
	return ap.size
}

func (ap *actPool) GetCapacity() uint64 {
	return ap.cfg.MaxNumActsPerPool
}

func (ap *actPool) ReceiveBlock(included []*protocol.Envelope) {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()

	done := make(map[*protocol.Envelope]struct{}, len(included))
	for _, env := range included {
		done[env] = struct{}{}
	}
	ap.filter(func(p *pendingAct) bool {
		_, ok := done[p.env]
		return !ok
	})
	ap.removeExpired()
}

func (ap *actPool) validate(ctx context.Context, env *protocol.Envelope) error {
	if err := env.SanityCheck(); err != nil {
		_actpoolMtc.WithLabelValues("sanityCheck").Inc()
		return err
	}
	if env.Caller != nil {
		if _, ok := ap.senderBlackList[env.Caller.String()]; ok {
			_actpoolMtc.WithLabelValues("blacklisted").Inc()
			return errors.Wrap(action.ErrAddress, "action source address is blacklisted")
		}
	}
	ctx = env.Context(ctx)
	for _, v := range ap.validators {
		if err := v.Validate(ctx, env.Action, ap.sr); err != nil {
			_actpoolMtc.WithLabelValues("invalid").Inc()
			return err
		}
	}
	return nil
}

func (ap *actPool) removeExpired() {
	now := ap.clock.Now()
	ap.filter(func(p *pendingAct) bool {
		if now.After(p.deadline) {
			log.L().Debug("Action expired in pool", zap.String("queue", queueKey(p.env)))
			return false
		}
		return true
	})
}

func (ap *actPool) filter(keep func(*pendingAct) bool) {
	for key, queue := range ap.queues {
		kept := queue[:0]
		for _, p := range queue {
			if keep(p) {
				kept = append(kept, p)
				continue
			}
			ap.size--
		}
		if len(kept) == 0 {
			delete(ap.queues, key)
			continue
		}
		ap.queues[key] = kept
	}
}

func queueKey(env *protocol.Envelope) string {
	if env.Origin == protocol.OriginSigned && env.Caller != nil {
		return env.Caller.String()
	}
	return "origin:" + env.Origin.String()
}
