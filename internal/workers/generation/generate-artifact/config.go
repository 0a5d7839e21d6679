// internal/workers/generation/generate-artifact/config.go
package generateartifact

import (
	"time"

	"app-deployer/internal/common/config"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		BaseURL:     cfg.Generation.BaseURL,
		APIKey:      cfg.Generation.APIKey,
		Model:       cfg.Generation.Model,
		Timeout:     config.GetDuration(cfg.Generation.Timeout),
		Temperature: 0,
	}
}
