package cil

import "github.com/smilemakc/cil/internal/infrastructure/config"

// Config is the complete set of recognized CIL options, loaded from
// environment variables with an optional YAML overlay.
type Config = config.Config

// Re-exported config shapes for library consumers building a Config or a
// Kernel without reaching into internal/infrastructure/config directly.
type (
	TimeframeWeights = config.TimeframeWeights
	ResonanceConfig = config.ResonanceConfig
	LLMConfig = config.LLMConfig
	BraidQualityGate = config.BraidQualityGate
)

// LoadConfig builds a Config from environment variables, then applies an
// optional YAML overlay file for local overrides.
func LoadConfig() (*Config, error) {
	return config.Load()
}

// DefaultTimeframeWeights returns the weights configured by default.
func DefaultTimeframeWeights() TimeframeWeights {
	return config.DefaultTimeframeWeights()
}
