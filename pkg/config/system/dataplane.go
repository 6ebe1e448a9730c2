package system

import "time"

type PoolConfig struct {
	Capacity int `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	DataRoom int `json:"data_room,omitempty" yaml:"data_room,omitempty"`
}

type PortConfig struct {
	Driver      string        `json:"driver,omitempty" yaml:"driver,omitempty"`
	Interface   string        `json:"interface,omitempty" yaml:"interface,omitempty"`
	Netns       string        `json:"netns,omitempty" yaml:"netns,omitempty"`
	RxDesc      int           `json:"rx_desc,omitempty" yaml:"rx_desc,omitempty"`
	TxDesc      int           `json:"tx_desc,omitempty" yaml:"tx_desc,omitempty"`
	// Promiscuous defaults to on; frames addressed to other MACs are
	// reflected too.
	Promiscuous *bool         `json:"promiscuous,omitempty" yaml:"promiscuous,omitempty"`
	LinkTimeout time.Duration `json:"link_timeout,omitempty" yaml:"link_timeout,omitempty"`
	LockDir     string        `json:"lock_dir,omitempty" yaml:"lock_dir,omitempty"`
	RxPcap      string        `json:"rx_pcap,omitempty" yaml:"rx_pcap,omitempty"`
	TxPcap      string        `json:"tx_pcap,omitempty" yaml:"tx_pcap,omitempty"`
	Loop        bool          `json:"loop,omitempty" yaml:"loop,omitempty"`
}

type ReflectorConfig struct {
	BurstSize     int           `json:"burst_size,omitempty" yaml:"burst_size,omitempty"`
	TxRetries     int           `json:"tx_retries,omitempty" yaml:"tx_retries,omitempty"`
	IdleSpins     int           `json:"idle_spins,omitempty" yaml:"idle_spins,omitempty"`
	IdleBackoff   time.Duration `json:"idle_backoff,omitempty" yaml:"idle_backoff,omitempty"`
	StatsInterval time.Duration `json:"stats_interval,omitempty" yaml:"stats_interval,omitempty"`
	// CPU pins the polling thread when set.
	CPU *int `json:"cpu,omitempty" yaml:"cpu,omitempty"`
}
