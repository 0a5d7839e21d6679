// internal/workers/delivery/notify-evaluator/config.go
package notifyevaluator

import (
	"time"

	"app-deployer/internal/common/config"
)

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		MaxAttempts: cfg.Notifier.MaxAttempts,
		BaseDelay:   config.GetDuration(cfg.Notifier.BaseDelay),
		Timeout:     config.GetDuration(cfg.Notifier.Timeout),
	}
}

func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		Timeout:     30 * time.Second,
	}
}
