package port

import (
	"fmt"
	"sort"
	"sync"

	"github.com/veesix-networks/reflector/pkg/logger"
	"github.com/veesix-networks/reflector/pkg/mbuf"
)

type Factory func(cfg Config, pool *mbuf.Pool) (Port, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("port driver %s already registered", name))
	}

	registry[name] = factory
}

func Get(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()

	factory, exists := registry[name]
	return factory, exists
}

func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open configures a port through its registered driver. The returned port
// is not started.
func Open(cfg Config, pool *mbuf.Pool) (Port, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(pool); err != nil {
		return nil, err
	}

	factory, ok := Get(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("%w: unknown driver %q (available: %v)", ErrInvalidConfig, cfg.Driver, Drivers())
	}

	p, err := factory(cfg, pool)
	if err != nil {
		return nil, fmt.Errorf("configure %s port %s: %w", cfg.Driver, cfg.Interface, err)
	}

	logger.Component(logger.Port).Info("Configured port",
		"port", cfg.Interface,
		"driver", cfg.Driver,
		"rx_desc", cfg.RxDesc,
		"tx_desc", cfg.TxDesc,
		"pool", pool.Name(),
	)

	return p, nil
}
