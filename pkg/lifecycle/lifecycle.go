// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package lifecycle provides application models' lifecycle management.
package lifecycle

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type (
	// Model is application model which may require to start and stop in application lifecycle.
	Model interface{}

	// Starter is Model has a Start method.
	Starter interface {
		// Start runs on lifecycle start phase.
		Start(context.Context) error
	}

	// Stopper is Model has a Stop method.
	Stopper interface {
		// Stop runs on lifecycle stop phase.
		Stop(context.Context) error
	}

	// StartStopper is the interface that groups Start and Stop.
	StartStopper interface {
		Starter
		Stopper
	}
)

// Lifecycle manages lifecycle for models. All models in a Lifecycle are required to succeed on both phases.
type Lifecycle struct {
	models []Model
}

// Add adds a model into LifeCycle.
func (lc *Lifecycle) Add(m Model) { lc.models = append(lc.models, m) }

// AddModels adds multiple models into LifeCycle.
func (lc *Lifecycle) AddModels(m ...Model) { lc.models = append(lc.models, m...) }

// OnStart runs models' Start in parallel. The context passed to them is canceled on the first failure.
func (lc *Lifecycle) OnStart(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, m := range lc.models {
		if starter, ok := m.(Starter); ok {
			g.Go(func() error { return starter.Start(ctx) })
		}
	}
	return g.Wait()
}

// OnStop runs models' Stop in parallel.
func (lc *Lifecycle) OnStop(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, m := range lc.models {
		if stopper, ok := m.(Stopper); ok {
			g.Go(func() error { return stopper.Stop(ctx) })
		}
	}
	return g.Wait()
}

// OnStartSequentially runs models' Start one by one in the order they were added.
func (lc *Lifecycle) OnStartSequentially(ctx context.Context) error {
	for _, m := range lc.models {
		if starter, ok := m.(Starter); ok {
			if err := starter.Start(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnStopSequentially runs models' Stop in the reverse order they were added.
func (lc *Lifecycle) OnStopSequentially(ctx context.Context) error {
	for i := len(lc.models) - 1; i >= 0; i-- {
		if stopper, ok := lc.models[i].(Stopper); ok {
			if err := stopper.Stop(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
