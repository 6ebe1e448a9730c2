package port

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/reflector/pkg/mbuf"
)

type nullPort struct {
	cfg Config
}

func (p *nullPort) Info() Info { return Info{Name: p.cfg.Interface, Driver: "null"} }
func (p *nullPort) Start(context.Context) error { return nil }
func (p *nullPort) ReceiveBurst([]*mbuf.Buffer) (int, error) { return 0, nil }
func (p *nullPort) TransmitBurst(b []*mbuf.Buffer) (int, error) { return 0, nil }
func (p *nullPort) Stop() error { return nil }
func (p *nullPort) Stats() Stats { return Stats{} }

func init() {
	Register("null", func(cfg Config, _ *mbuf.Pool) (Port, error) {
		return &nullPort{cfg: cfg}, nil
	})
}

func newPool(t *testing.T, capacity int) *mbuf.Pool {
	t.Helper()
	p, err := mbuf.New("port-test", capacity, 128)
	require.NoError(t, err)
	return p
}

func TestOpenAppliesDefaults(t *testing.T) {
	p, err := Open(Config{Driver: "null", Interface: "eth0"}, newPool(t, DefaultRingDepth))
	require.NoError(t, err)

	np := p.(*nullPort)
	assert.Equal(t, DefaultRingDepth, np.cfg.RxDesc)
	assert.Equal(t, DefaultRingDepth, np.cfg.TxDesc)
	assert.Equal(t, DefaultLinkTimeout, np.cfg.LinkTimeout)
	assert.Equal(t, DefaultLockDir, np.cfg.LockDir)
}

func TestOpenValidation(t *testing.T) {
	pool := newPool(t, 256)

	tests := []struct {
		name string
		cfg  Config
		pool *mbuf.Pool
	}{
		{"unknown driver", Config{Driver: "nope", Interface: "eth0", RxDesc: 64, TxDesc: 64}, pool},
		{"missing driver", Config{Interface: "eth0", RxDesc: 64, TxDesc: 64}, pool},
		{"missing interface", Config{Driver: "null", RxDesc: 64, TxDesc: 64}, pool},
		{"rx depth too deep", Config{Driver: "null", Interface: "eth0", RxDesc: MaxRingDepth + 1, TxDesc: 64}, pool},
		{"tx depth too deep", Config{Driver: "null", Interface: "eth0", RxDesc: 64, TxDesc: MaxRingDepth * 2}, pool},
		{"negative depth", Config{Driver: "null", Interface: "eth0", RxDesc: -1, TxDesc: 64}, pool},
		{"no pool", Config{Driver: "null", Interface: "eth0", RxDesc: 64, TxDesc: 64}, nil},
		{"pool smaller than rx ring", Config{Driver: "null", Interface: "eth0", RxDesc: 512, TxDesc: 64}, pool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.cfg, tt.pool)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDriversSorted(t *testing.T) {
	assert.Contains(t, Drivers(), "null")
	assert.Panics(t, func() {
		Register("null", nil)
	})
}

func TestLinkStateString(t *testing.T) {
	assert.Equal(t, "up", LinkUp.String())
	assert.Equal(t, "down", LinkDown.String())
}
