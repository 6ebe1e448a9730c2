package system

import (
	"strings"

	"github.com/veesix-networks/reflector/pkg/logger"
)

type LoggingConfig struct {
	Format     string            `json:"format,omitempty" yaml:"format,omitempty"`
	Level      string            `json:"level,omitempty" yaml:"level,omitempty"`
	Components map[string]string `json:"components,omitempty" yaml:"components,omitempty"`
}

// Levels returns the per-component overrides in the form logger.Configure
// takes them.
func (c LoggingConfig) Levels() map[string]logger.LogLevel {
	out := make(map[string]logger.LogLevel, len(c.Components))
	for name, level := range c.Components {
		out[name] = logger.LogLevel(strings.ToLower(level))
	}
	return out
}
