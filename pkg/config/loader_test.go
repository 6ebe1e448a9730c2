package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/veesix-networks/reflector/internal/reflector"
	"github.com/veesix-networks/reflector/pkg/logger"
	"github.com/veesix-networks/reflector/pkg/port"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reflector.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "port:\n  interface: eth1\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port.Driver != DefaultDriver {
		t.Errorf("driver = %q, want %q", cfg.Port.Driver, DefaultDriver)
	}
	if cfg.Port.RxDesc != 1024 || cfg.Port.TxDesc != 1024 {
		t.Errorf("descriptors = %d/%d, want 1024/1024", cfg.Port.RxDesc, cfg.Port.TxDesc)
	}
	if cfg.Pool.Capacity != 8192 || cfg.Pool.DataRoom != 2048 {
		t.Errorf("pool = %d x %d, want 8192 x 2048", cfg.Pool.Capacity, cfg.Pool.DataRoom)
	}
	if cfg.Port.LinkTimeout != 5*time.Second {
		t.Errorf("link timeout = %s", cfg.Port.LinkTimeout)
	}
	if cfg.Reflector.BurstSize != 32 || cfg.Reflector.TxRetries != 3 {
		t.Errorf("reflector = %+v", cfg.Reflector)
	}
	if cfg.PoolName() != "mbuf_pool_eth1" {
		t.Errorf("pool name = %q", cfg.PoolName())
	}
}

func TestLoadFullConfig(t *testing.T) {
	body := `
logging:
  format: json
  level: debug
  components:
    reflector: warn
pool:
  capacity: 512
  data_room: 4096
port:
  driver: pcap
  interface: replay0
  rx_desc: 256
  tx_desc: 128
  link_timeout: 2s
  rx_pcap: /tmp/in.pcap
  tx_pcap: /tmp/out.pcap
  loop: true
reflector:
  burst_size: 64
  tx_retries: -1
  idle_backoff: 250us
  stats_interval: 1m
  cpu: 0
monitoring:
  listen_address: ":9102"
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pc := cfg.PortConfig()
	want := port.Config{
		Driver:      "pcap",
		Interface:   "replay0",
		RxDesc:      256,
		TxDesc:      128,
		Promiscuous: true,
		LinkTimeout: 2 * time.Second,
		LockDir:     port.DefaultLockDir,
		RxPcap:      "/tmp/in.pcap",
		TxPcap:      "/tmp/out.pcap",
		Loop:        true,
	}
	if pc != want {
		t.Errorf("port config = %+v, want %+v", pc, want)
	}

	opts := cfg.ReflectorOptions()
	if opts.BurstSize != 64 || opts.TxRetries != -1 || opts.IdleBackoff != 250*time.Microsecond {
		t.Errorf("options = %+v", opts)
	}
	if !opts.PinCPU || opts.CPU != 0 {
		t.Errorf("cpu 0 should pin, got %+v", opts)
	}
	opts.ApplyDefaults()
	if opts.TxRetries != 0 {
		t.Errorf("negative retries should disable retrying, got %d", opts.TxRetries)
	}

	if got := cfg.LogComponents()["reflector"]; got != logger.LogLevelWarn {
		t.Errorf("reflector level = %q", got)
	}
	if cfg.Monitoring.ListenAddress != ":9102" {
		t.Errorf("listen address = %q", cfg.Monitoring.ListenAddress)
	}
}

func TestPromiscuousDefaultsOn(t *testing.T) {
	cfg, err := Load(writeConfig(t, "port:\n  interface: eth1\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.PortConfig().Promiscuous {
		t.Error("promiscuous mode should default to on")
	}

	cfg, err = Load(writeConfig(t, "port:\n  interface: eth1\n  promiscuous: false\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PortConfig().Promiscuous {
		t.Error("explicit promiscuous: false was overridden")
	}
}

func TestValidate(t *testing.T) {
	cpu := -2
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing interface", func(c *Config) { c.Port.Interface = "" }, "port.interface"},
		{"zero depth", func(c *Config) { c.Port.RxDesc = -1 }, "port.rx_desc"},
		{"depth above max", func(c *Config) { c.Port.TxDesc = port.MaxRingDepth + 1 }, "port.tx_desc"},
		{"burst above max", func(c *Config) { c.Reflector.BurstSize = reflector.MaxBurst + 1 }, "reflector.burst_size"},
		{"backoff above cap", func(c *Config) { c.Reflector.IdleBackoff = 5 * time.Millisecond }, "reflector.idle_backoff"},
		{"negative cpu", func(c *Config) { c.Reflector.CPU = &cpu }, "reflector.cpu"},
		{"pool smaller than ring plus burst", func(c *Config) { c.Pool.Capacity = 1024 }, "pool.capacity"},
		{"pcap without files", func(c *Config) { c.Port.Driver = "pcap" }, "pcap driver"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad component level", func(c *Config) { c.Logging.Components = map[string]string{"port": "loud"} }, "logging.components.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Port.Interface = "eth0"
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want error mentioning %q", err, tt.wantErr)
			}
			if strings.HasPrefix(tt.wantErr, "port") || strings.HasPrefix(tt.wantErr, "reflector") || strings.HasPrefix(tt.wantErr, "pool") {
				if !errors.Is(err, port.ErrInvalidConfig) {
					t.Fatalf("got %v, want ErrInvalidConfig", err)
				}
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "port: [unterminated")); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("got %v, want parse error", err)
	}
	if _, err := Load(writeConfig(t, "pool:\n  capacity: 8\n")); err == nil || !strings.Contains(err.Error(), "validate config") {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Port.Interface = "veth1"
	path := filepath.Join(t.TempDir(), "out.yaml")

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PortConfig() != cfg.PortConfig() || loaded.Reflector.IdleBackoff != cfg.Reflector.IdleBackoff {
		t.Fatalf("round trip changed config: %+v", loaded)
	}
}
