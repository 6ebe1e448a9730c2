// Package monitor exports pool, port and loop counters to Prometheus and
// serves liveness and readiness probes next to them.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veesix-networks/reflector/pkg/component"
	"github.com/veesix-networks/reflector/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	ListenAddress string
	Sources       Sources
}

type Component struct {
	*component.Base

	addr     string
	sources  Sources
	registry *prometheus.Registry
	server   *http.Server

	mu       sync.RWMutex
	listener net.Listener
	running  bool
}

func New(cfg Config) *Component {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(cfg.Sources))
	registry.MustRegister(collectors.NewGoCollector())

	return &Component{
		Base:     component.NewBase(logger.Monitor),
		addr:     cfg.ListenAddress,
		sources:  cfg.Sources,
		registry: registry,
	}
}

// Addr returns the bound address once started, the configured one before.
func (c *Component) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listener != nil {
		return c.listener.Addr().String()
	}
	return c.addr
}

func (c *Component) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *Component) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)

	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", c.addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", HealthzHandler())
	mux.Handle("/readyz", ReadyzHandler(c.sources))
	mux.Handle("/loglevel", LogLevelHandler())
	c.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	c.mu.Lock()
	c.listener = ln
	c.running = true
	c.mu.Unlock()

	c.Logger().Info("Metrics server listening", "addr", ln.Addr().String())

	c.Go(func() {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.Logger().Error("Metrics server error", "error", err)
		}
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	})

	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.Logger().Info("Stopping metrics server")

	var err error
	if c.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = c.server.Shutdown(shutdownCtx)
	}

	c.StopContext()
	return err
}
