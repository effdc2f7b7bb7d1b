// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package routine

import (
	"context"
	"time"

	"github.com/facebookgo/clock"

	"github.com/iotexproject/iotex-npos/pkg/lifecycle"
)

var _ lifecycle.StartStopper = (*RecurringTask)(nil)

// Task is the function run by a task
type Task func()

// RecurringTaskOption is an option of RecurringTask
type RecurringTaskOption func(*RecurringTask)

// WithClock runs the task on the given clock
func WithClock(c clock.Clock) RecurringTaskOption {
	return func(t *RecurringTask) {
		t.clock = c
	}
}

// RecurringTask represents a recurring task
type RecurringTask struct {
	t        Task
	interval time.Duration
	clock    clock.Clock
	ticker   *clock.Ticker
	ch       chan struct{}
	done     chan struct{}
}

// NewRecurringTask creates an instance of RecurringTask
func NewRecurringTask(t Task, i time.Duration, opts ...RecurringTaskOption) *RecurringTask {
	rt := &RecurringTask{
		t:        t,
		interval: i,
		clock:    clock.New(),
		ch:       make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Start starts the timer
func (t *RecurringTask) Start(_ context.Context) error {
	t.ticker = t.clock.Ticker(t.interval)
	ready := make(chan struct{})
	go func() {
		defer close(t.done)
		close(ready)
		for {
			select {
			case <-t.ch:
				return
			case <-t.ticker.C:
				t.t()
			}
		}
	}()

	<-ready
	return nil
}

// Stop stops the timer and waits for a running task to return
func (t *RecurringTask) Stop(_ context.Context) error {
	if t.ticker == nil {
		return nil
	}
	t.ticker.Stop()
	t.ch <- struct{}{}
	<-t.done
	return nil
}
