package config

import (
	"github.com/veesix-networks/reflector/pkg/config/system"
)

type Config struct {
	Logging    system.LoggingConfig    `json:"logging,omitempty" yaml:"logging,omitempty"`
	Pool       system.PoolConfig       `json:"pool,omitempty" yaml:"pool,omitempty"`
	Port       system.PortConfig       `json:"port,omitempty" yaml:"port,omitempty"`
	Reflector  system.ReflectorConfig  `json:"reflector,omitempty" yaml:"reflector,omitempty"`
	Monitoring system.MonitoringConfig `json:"monitoring,omitempty" yaml:"monitoring,omitempty"`
}
