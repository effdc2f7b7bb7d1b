// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package routine

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/iotexproject/iotex-npos/pkg/lifecycle"
	"github.com/iotexproject/iotex-npos/pkg/log"
)

var _ lifecycle.StartStopper = (*TriggerTask)(nil)

// TriggerTaskOption is an option of TriggerTask
type TriggerTaskOption func(*TriggerTask)

// DelayTimeBeforeTrigger sets the delay time before trigger
func DelayTimeBeforeTrigger(d time.Duration) TriggerTaskOption {
	return func(t *TriggerTask) {
		t.delay = d
	}
}

// TriggerBufferSize sets the buffer size of trigger channel
func TriggerBufferSize(sz int) TriggerTaskOption {
	return func(t *TriggerTask) {
		t.sz = sz
	}
}

// TriggerClock sets the clock the delay is waited on
func TriggerClock(c clock.Clock) TriggerTaskOption {
	return func(t *TriggerTask) {
		t.clock = c
	}
}

// TriggerTask represents a task that runs once per trigger. Triggers beyond the buffer are dropped.
type TriggerTask struct {
	lifecycle.Readiness
	delay time.Duration
	clock clock.Clock
	cb    Task
	sz    int
	ch    chan struct{}
	done  chan struct{}
	mu    sync.Mutex
}

// NewTriggerTask creates an instance of TriggerTask
func NewTriggerTask(cb Task, ops ...TriggerTaskOption) *TriggerTask {
	tt := &TriggerTask{
		cb:    cb,
		clock: clock.New(),
		done:  make(chan struct{}),
	}
	for _, opt := range ops {
		opt(tt)
	}
	tt.ch = make(chan struct{}, tt.sz)
	return tt
}

// Start starts the task
func (t *TriggerTask) Start(_ context.Context) error {
	ready := make(chan struct{})
	go func() {
		defer close(t.done)
		close(ready)
		for range t.ch {
			if t.delay > 0 {
				t.clock.Sleep(t.delay)
			}
			t.cb()
		}
	}()
	// ensure the goroutine has been running
	<-ready
	return t.TurnOn()
}

// Trigger triggers the task without blocking, it returns true if the trigger was accepted
func (t *TriggerTask) Trigger() bool {
	if !t.IsReady() {
		log.S().Warnf("trigger task is not ready")
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case t.ch <- struct{}{}:
		return true
	default:
	}
	return false
}

// Stop stops the task once the accepted triggers ran
func (t *TriggerTask) Stop(_ context.Context) error {
	// prevent stop is called before start.
	if err := t.TurnOff(); err != nil {
		return err
	}
	t.mu.Lock()
	close(t.ch)
	t.mu.Unlock()
	<-t.done
	return nil
}
