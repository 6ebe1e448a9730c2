package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/veesix-networks/reflector/internal/reflector"
	"github.com/veesix-networks/reflector/pkg/logger"
	"github.com/veesix-networks/reflector/pkg/mbuf"
	"github.com/veesix-networks/reflector/pkg/port"
)

const DefaultDriver = "afpacket"

func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Read parses path and fills in defaults without validating, so command
// line overrides can complete the configuration first.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default filled in. It still
// needs an interface before it validates.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = string(logger.LogLevelInfo)
	}

	if c.Pool.Capacity == 0 {
		c.Pool.Capacity = mbuf.DefaultCapacity
	}
	if c.Pool.DataRoom == 0 {
		c.Pool.DataRoom = mbuf.DefaultDataRoom
	}

	if c.Port.Driver == "" {
		c.Port.Driver = DefaultDriver
	}
	if c.Port.RxDesc == 0 {
		c.Port.RxDesc = port.DefaultRingDepth
	}
	if c.Port.TxDesc == 0 {
		c.Port.TxDesc = port.DefaultRingDepth
	}
	if c.Port.Promiscuous == nil {
		on := true
		c.Port.Promiscuous = &on
	}
	if c.Port.LinkTimeout == 0 {
		c.Port.LinkTimeout = port.DefaultLinkTimeout
	}
	if c.Port.LockDir == "" {
		c.Port.LockDir = port.DefaultLockDir
	}

	if c.Reflector.BurstSize == 0 {
		c.Reflector.BurstSize = reflector.DefaultBurstSize
	}
	if c.Reflector.TxRetries == 0 {
		c.Reflector.TxRetries = reflector.DefaultTxRetries
	}
	if c.Reflector.IdleSpins == 0 {
		c.Reflector.IdleSpins = reflector.DefaultIdleSpins
	}
	if c.Reflector.IdleBackoff == 0 {
		c.Reflector.IdleBackoff = reflector.DefaultIdleBackoff
	}
	if c.Reflector.StatsInterval == 0 {
		c.Reflector.StatsInterval = reflector.DefaultStatsInterval
	}
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	if err := validLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	for name, level := range c.Logging.Components {
		if err := validLevel(level); err != nil {
			return fmt.Errorf("logging.components.%s: %w", name, err)
		}
	}

	if c.Pool.Capacity < 0 || c.Pool.DataRoom < 0 {
		return fmt.Errorf("pool: %w: negative size %d x %d", port.ErrInvalidConfig, c.Pool.Capacity, c.Pool.DataRoom)
	}

	if c.Port.Interface == "" {
		return fmt.Errorf("port.interface: %w: interface is required", port.ErrInvalidConfig)
	}
	if c.Port.RxDesc < 1 || c.Port.RxDesc > port.MaxRingDepth {
		return fmt.Errorf("port.rx_desc: %w: %d out of range 1-%d", port.ErrInvalidConfig, c.Port.RxDesc, port.MaxRingDepth)
	}
	if c.Port.TxDesc < 1 || c.Port.TxDesc > port.MaxRingDepth {
		return fmt.Errorf("port.tx_desc: %w: %d out of range 1-%d", port.ErrInvalidConfig, c.Port.TxDesc, port.MaxRingDepth)
	}
	if c.Port.Driver == "pcap" && c.Port.RxPcap == "" && c.Port.TxPcap == "" {
		return fmt.Errorf("port: %w: pcap driver needs rx_pcap or tx_pcap", port.ErrInvalidConfig)
	}

	if c.Reflector.BurstSize < 1 || c.Reflector.BurstSize > reflector.MaxBurst {
		return fmt.Errorf("reflector.burst_size: %w: %d out of range 1-%d", port.ErrInvalidConfig, c.Reflector.BurstSize, reflector.MaxBurst)
	}
	if c.Reflector.IdleBackoff > reflector.MaxIdleBackoff {
		return fmt.Errorf("reflector.idle_backoff: %w: %s exceeds %s", port.ErrInvalidConfig, c.Reflector.IdleBackoff, reflector.MaxIdleBackoff)
	}
	if c.Reflector.CPU != nil && *c.Reflector.CPU < 0 {
		return fmt.Errorf("reflector.cpu: %w: negative cpu %d", port.ErrInvalidConfig, *c.Reflector.CPU)
	}

	// Every RX descriptor holds a buffer and a burst may be in the loop's
	// hands at the same time.
	if need := c.Port.RxDesc + c.Reflector.BurstSize; c.Pool.Capacity < need {
		return fmt.Errorf("pool.capacity: %w: %d buffers, rx_desc %d plus burst %d needs %d",
			port.ErrInvalidConfig, c.Pool.Capacity, c.Port.RxDesc, c.Reflector.BurstSize, need)
	}

	return nil
}

func validLevel(level string) error {
	_, err := logger.ParseLevel(level)
	return err
}

func (c *Config) PoolName() string {
	return "mbuf_pool_" + c.Port.Interface
}

func (c *Config) PortConfig() port.Config {
	return port.Config{
		Driver:      c.Port.Driver,
		Interface:   c.Port.Interface,
		Netns:       c.Port.Netns,
		RxDesc:      c.Port.RxDesc,
		TxDesc:      c.Port.TxDesc,
		Promiscuous: c.Port.Promiscuous == nil || *c.Port.Promiscuous,
		LinkTimeout: c.Port.LinkTimeout,
		LockDir:     c.Port.LockDir,
		RxPcap:      c.Port.RxPcap,
		TxPcap:      c.Port.TxPcap,
		Loop:        c.Port.Loop,
	}
}

func (c *Config) ReflectorOptions() reflector.Options {
	opts := reflector.Options{
		BurstSize:     c.Reflector.BurstSize,
		TxRetries:     c.Reflector.TxRetries,
		IdleSpins:     c.Reflector.IdleSpins,
		IdleBackoff:   c.Reflector.IdleBackoff,
		StatsInterval: c.Reflector.StatsInterval,
	}
	if c.Reflector.CPU != nil {
		opts.PinCPU = true
		opts.CPU = *c.Reflector.CPU
	}
	return opts
}

func (c *Config) LogComponents() map[string]logger.LogLevel {
	return c.Logging.Levels()
}
