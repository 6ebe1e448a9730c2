package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/veesix-networks/reflector/pkg/config"
	"github.com/veesix-networks/reflector/pkg/mbuf"
	"github.com/veesix-networks/reflector/pkg/port"
	"github.com/veesix-networks/reflector/pkg/port/vport"
)

func virtualConfig() *config.Config {
	cfg := config.Default()
	cfg.Port.Driver = vport.DriverName
	cfg.Port.Interface = "vboot0"
	cfg.Port.RxDesc = 256
	cfg.Port.TxDesc = 256
	cfg.Pool.Capacity = 512
	cfg.Pool.DataRoom = 256
	return cfg
}

func TestInitAndClose(t *testing.T) {
	env, err := Init(virtualConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if env.Pool.Name() != "mbuf_pool_vboot0" || env.Pool.Cap() != 512 {
		t.Fatalf("pool = %s/%d", env.Pool.Name(), env.Pool.Cap())
	}
	info := env.Port.Info()
	if info.Driver != vport.DriverName || info.RxDesc != 256 {
		t.Fatalf("port info = %+v", info)
	}

	if err := env.Port.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	vp := env.Port.(*vport.Port)
	vp.Inject(make([]byte, 64))

	bufs := make([]*mbuf.Buffer, 4)
	n, err := env.Port.ReceiveBurst(bufs)
	if err != nil || n != 1 {
		t.Fatalf("receive = %d, %v", n, err)
	}
	if _, err := env.Port.TransmitBurst(bufs[:n]); err != nil {
		t.Fatalf("transmit: %v", err)
	}

	if err := env.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestCloseReportsLeakedBuffers(t *testing.T) {
	env, err := Init(virtualConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaked, _ := env.Pool.Alloc()

	err = env.Close()
	if !errors.Is(err, mbuf.ErrBuffersInFlight) {
		t.Fatalf("got %v, want ErrBuffersInFlight", err)
	}

	env.Pool.Release(leaked)
	if err := env.Pool.Close(); err != nil {
		t.Fatalf("close after release: %v", err)
	}
}

func TestInitErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"unknown driver", func(c *config.Config) { c.Port.Driver = "dpdk" }, port.ErrInvalidConfig},
		{"no interface", func(c *config.Config) { c.Port.Interface = "" }, port.ErrInvalidConfig},
		{"arena too large", func(c *config.Config) { c.Pool.Capacity = 1 << 24; c.Pool.DataRoom = 1 << 16 }, mbuf.ErrResourceExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := virtualConfig()
			tt.mutate(cfg)
			if _, err := Init(cfg); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}
