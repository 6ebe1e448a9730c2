package component

import (
	"context"
	"log/slog"
	"sync"

	"github.com/veesix-networks/reflector/pkg/logger"
)

// Base carries the context, logger and goroutine bookkeeping most components
// need. Goroutines started with Go must return once Ctx is done.
type Base struct {
	name   string
	logger *slog.Logger
	Ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBase names the component after the logger component it logs as.
func NewBase(name string) *Base {
	return &Base{
		name:   name,
		logger: logger.Component(name),
		Ctx:    context.Background(),
	}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Logger() *slog.Logger {
	return b.logger
}

func (b *Base) StartContext(parentCtx context.Context) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	b.Ctx, b.cancel = context.WithCancel(parentCtx)
}

// StopContext cancels Ctx and waits for every goroutine started with Go.
func (b *Base) StopContext() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

func (b *Base) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

func (b *Base) Done() <-chan struct{} {
	return b.Ctx.Done()
}
