// internal/workers/generation/compose-prompt/config.go
package composeprompt

import "app-deployer/internal/common/config"

type Config struct {
	PriorArtifactMaxChars int
	CDNBaseURL            string
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		PriorArtifactMaxChars: cfg.Generation.PriorArtifactMaxChars,
		CDNBaseURL:            "https://cdn.jsdelivr.net",
	}
}
