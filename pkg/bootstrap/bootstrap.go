// Package bootstrap brings up the execution environment: the buffer pool
// and the configured port, handed back as owned handles.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/veesix-networks/reflector/pkg/config"
	"github.com/veesix-networks/reflector/pkg/logger"
	"github.com/veesix-networks/reflector/pkg/mbuf"
	"github.com/veesix-networks/reflector/pkg/port"
)

type Env struct {
	Config *config.Config
	Pool   *mbuf.Pool
	Port   port.Port

	logger *slog.Logger
}

// Init creates the pool and configures the port. The port is not started.
// Nothing is left allocated when Init fails.
func Init(cfg *config.Config) (*Env, error) {
	log := logger.Component(logger.Bootstrap)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	pool, err := mbuf.New(cfg.PoolName(), cfg.Pool.Capacity, cfg.Pool.DataRoom)
	if err != nil {
		return nil, fmt.Errorf("create buffer pool: %w", err)
	}
	log.Info("Created buffer pool",
		"pool", pool.Name(),
		"capacity", pool.Cap(),
		"data_room", pool.DataRoom(),
	)

	p, err := port.Open(cfg.PortConfig(), pool)
	if err != nil {
		if cerr := pool.Close(); cerr != nil {
			log.Warn("Failed to destroy buffer pool", "pool", pool.Name(), "error", cerr)
		}
		return nil, err
	}

	info := p.Info()
	log.Info("Execution environment ready",
		"port", info.Name,
		"driver", info.Driver,
		"mac", info.MAC.String(),
	)

	return &Env{
		Config: cfg,
		Pool:   pool,
		Port:   p,
		logger: log,
	}, nil
}

// Close stops the port, which returns its buffers, then destroys the pool.
func (e *Env) Close() error {
	var errs []error
	if err := e.Port.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop port: %w", err))
	}
	if err := e.Pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("destroy pool: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	e.logger.Info("Execution environment released")
	return nil
}
