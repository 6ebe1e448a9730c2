package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veesix-networks/reflector/internal/reflector"
	"github.com/veesix-networks/reflector/pkg/mbuf"
	"github.com/veesix-networks/reflector/pkg/port"
)

type PoolSource interface {
	Stats() mbuf.Stats
}

type PortSource interface {
	Info() port.Info
	Stats() port.Stats
}

type LoopSource interface {
	Stats() reflector.Stats
}

// Sources are read on every scrape. Any of them may be nil.
type Sources struct {
	Pool PoolSource
	Port PortSource
	Loop LoopSource
}

type Collector struct {
	src   Sources
	descs map[string]*prometheus.Desc
}

func NewCollector(src Sources) *Collector {
	poolLabels := []string{"pool"}
	portLabels := []string{"port", "driver"}
	loopLabels := []string{"port"}

	return &Collector{
		src: src,
		descs: map[string]*prometheus.Desc{
			"pool_capacity":         prometheus.NewDesc("reflector_pool_capacity", "Number of buffers in the pool", poolLabels, nil),
			"pool_available":        prometheus.NewDesc("reflector_pool_available", "Number of free buffers in the pool", poolLabels, nil),
			"pool_in_use":           prometheus.NewDesc("reflector_pool_in_use", "Number of buffers currently in flight", poolLabels, nil),
			"pool_alloc_failures":   prometheus.NewDesc("reflector_pool_alloc_failures_total", "Allocations refused because the pool was empty", poolLabels, nil),
			"pool_invalid_releases": prometheus.NewDesc("reflector_pool_invalid_releases_total", "Releases rejected as foreign or double frees", poolLabels, nil),

			"port_up":           prometheus.NewDesc("reflector_port_up", "Whether the port link is up (1) or not (0)", portLabels, nil),
			"port_rx_packets":   prometheus.NewDesc("reflector_port_rx_packets_total", "Frames received", portLabels, nil),
			"port_rx_bytes":     prometheus.NewDesc("reflector_port_rx_bytes_total", "Bytes received", portLabels, nil),
			"port_rx_nobuf":     prometheus.NewDesc("reflector_port_rx_nobuf_total", "Receive attempts that found the pool empty", portLabels, nil),
			"port_rx_dropped":   prometheus.NewDesc("reflector_port_rx_dropped_total", "Frames dropped on receive", portLabels, nil),
			"port_tx_packets":   prometheus.NewDesc("reflector_port_tx_packets_total", "Frames transmitted", portLabels, nil),
			"port_tx_bytes":     prometheus.NewDesc("reflector_port_tx_bytes_total", "Bytes transmitted", portLabels, nil),
			"port_tx_rejected":  prometheus.NewDesc("reflector_port_tx_rejected_total", "Frames refused by a full transmit ring", portLabels, nil),
			"port_tx_errors":    prometheus.NewDesc("reflector_port_tx_errors_total", "Frames the device failed to send", portLabels, nil),
			"port_tx_in_flight": prometheus.NewDesc("reflector_port_tx_in_flight", "Buffers on the transmit ring awaiting completion", portLabels, nil),

			"loop_bursts":      prometheus.NewDesc("reflector_loop_bursts_total", "Non-empty receive bursts handled", loopLabels, nil),
			"loop_forwarded":   prometheus.NewDesc("reflector_loop_forwarded_total", "Frames handed back to the port", loopLabels, nil),
			"loop_retries":     prometheus.NewDesc("reflector_loop_tx_retries_total", "Transmit retries of rejected burst tails", loopLabels, nil),
			"loop_dropped":     prometheus.NewDesc("reflector_loop_dropped_total", "Frames released after the retry bound", loopLabels, nil),
			"loop_empty_polls": prometheus.NewDesc("reflector_loop_empty_polls_total", "Polls that found nothing to receive", loopLabels, nil),
			"loop_idle_sleeps": prometheus.NewDesc("reflector_loop_idle_sleeps_total", "Backoff sleeps taken while idle", loopLabels, nil),
		},
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range c.descs {
		ch <- desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.src.Pool != nil {
		c.collectPool(ch)
	}

	portName := ""
	if c.src.Port != nil {
		portName = c.collectPort(ch)
	}

	if c.src.Loop != nil {
		s := c.src.Loop.Stats()
		c.counter(ch, "loop_bursts", s.Bursts, portName)
		c.counter(ch, "loop_forwarded", s.TxPackets, portName)
		c.counter(ch, "loop_retries", s.TxRetries, portName)
		c.counter(ch, "loop_dropped", s.Dropped, portName)
		c.counter(ch, "loop_empty_polls", s.EmptyPolls, portName)
		c.counter(ch, "loop_idle_sleeps", s.IdleSleeps, portName)
	}
}

func (c *Collector) collectPool(ch chan<- prometheus.Metric) {
	s := c.src.Pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.descs["pool_capacity"], prometheus.GaugeValue, float64(s.Capacity), s.Name)
	ch <- prometheus.MustNewConstMetric(c.descs["pool_available"], prometheus.GaugeValue, float64(s.Available), s.Name)
	ch <- prometheus.MustNewConstMetric(c.descs["pool_in_use"], prometheus.GaugeValue, float64(s.InUse), s.Name)
	c.counter(ch, "pool_alloc_failures", s.AllocFailures, s.Name)
	c.counter(ch, "pool_invalid_releases", s.InvalidReleases, s.Name)
}

func (c *Collector) collectPort(ch chan<- prometheus.Metric) string {
	info := c.src.Port.Info()
	s := c.src.Port.Stats()
	labels := []string{info.Name, info.Driver}

	var up float64
	if info.Link == port.LinkUp {
		up = 1
	}
	ch <- prometheus.MustNewConstMetric(c.descs["port_up"], prometheus.GaugeValue, up, labels...)
	c.counter(ch, "port_rx_packets", s.RxPackets, labels...)
	c.counter(ch, "port_rx_bytes", s.RxBytes, labels...)
	c.counter(ch, "port_rx_nobuf", s.RxNoBuf, labels...)
	c.counter(ch, "port_rx_dropped", s.RxDropped, labels...)
	c.counter(ch, "port_tx_packets", s.TxPackets, labels...)
	c.counter(ch, "port_tx_bytes", s.TxBytes, labels...)
	c.counter(ch, "port_tx_rejected", s.TxRejected, labels...)
	c.counter(ch, "port_tx_errors", s.TxErrors, labels...)
	ch <- prometheus.MustNewConstMetric(c.descs["port_tx_in_flight"], prometheus.GaugeValue, float64(s.TxInFlight), labels...)

	return info.Name
}

func (c *Collector) counter(ch chan<- prometheus.Metric, name string, v uint64, labels ...string) {
	ch <- prometheus.MustNewConstMetric(c.descs[name], prometheus.CounterValue, float64(v), labels...)
}
