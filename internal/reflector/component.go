package reflector

import (
	"context"

	"github.com/veesix-networks/reflector/pkg/component"
	"github.com/veesix-networks/reflector/pkg/logger"
)

// Component runs a Reflector under the process lifecycle. The result of Run
// is delivered once on Err.
type Component struct {
	*component.Base

	reflector *Reflector
	errCh     chan error
}

func NewComponent(r *Reflector) *Component {
	return &Component{
		Base:      component.NewBase(logger.Reflector),
		reflector: r,
		errCh:     make(chan error, 1),
	}
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.Go(func() {
		c.errCh <- c.reflector.Run(c.Ctx)
	})
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.Logger().Debug("Stopping reflector", "run_id", c.reflector.RunID())
	c.reflector.Stop()
	c.StopContext()
	return nil
}

func (c *Component) Err() <-chan error {
	return c.errCh
}

func (c *Component) Reflector() *Reflector {
	return c.reflector
}
