package component

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/veesix-networks/reflector/pkg/logger"
)

// Orchestrator starts components in registration order and stops them in
// reverse.
type Orchestrator struct {
	components []Component
	started    int
	mu         sync.RWMutex
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		components: make([]Component, 0),
	}
}

func (o *Orchestrator) Register(comp Component) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.components = append(o.components, comp)
}

// Start starts every component. When one fails, the ones already running
// are stopped again before the error is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	log := logger.Component(logger.Main)
	for i, comp := range o.components {
		if err := comp.Start(ctx); err != nil {
			o.started = i
			if serr := o.stopStarted(ctx); serr != nil {
				log.Warn("Failed to unwind components", "error", serr)
			}
			return fmt.Errorf("failed to start %s: %w", comp.Name(), err)
		}
		log.Debug("Started component", "component", comp.Name())
	}
	o.started = len(o.components)
	return nil
}

// Stop stops every started component, newest first, and reports all
// failures together.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopStarted(ctx)
}

func (o *Orchestrator) stopStarted(ctx context.Context) error {
	var errs []error
	for i := o.started - 1; i >= 0; i-- {
		comp := o.components[i]
		if err := comp.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", comp.Name(), err))
		}
	}
	o.started = 0
	return errors.Join(errs...)
}
