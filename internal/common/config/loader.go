// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.{APP_ENVIRONMENT}.yaml on top,
// applies environment overrides and defaults, then validates the result.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // the environment overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // tests under test/e2e
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from the conventional environment names
// when the YAML left them empty.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Server.Secret, "SERVER_SECRET")
	setIfEmpty(&cfg.GitHub.Token, "GITHUB_TOKEN")
	setIfEmpty(&cfg.GitHub.Owner, "GITHUB_OWNER")
	setIfEmpty(&cfg.GitHub.Org, "GITHUB_ORG")
	setIfEmpty(&cfg.Generation.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.Generation.BaseURL, "OPENAI_BASE_URL")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")

	// Repositories created under an org are owned by it.
	if cfg.GitHub.Owner == "" && cfg.GitHub.Org != "" {
		cfg.GitHub.Owner = cfg.GitHub.Org
	}
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "app-deployer"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 32 << 20
	}

	if cfg.Pool.Workers == 0 {
		cfg.Pool.Workers = 4
	}
	if cfg.Pool.QueueSize == 0 {
		cfg.Pool.QueueSize = 64
	}

	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o"
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 120000
	}
	if cfg.Generation.PriorArtifactMaxChars == 0 {
		cfg.Generation.PriorArtifactMaxChars = 20000
	}

	if cfg.GitHub.APIURL == "" {
		cfg.GitHub.APIURL = "https://api.github.com"
	}
	if cfg.GitHub.Branch == "" {
		cfg.GitHub.Branch = "main"
	}
	if cfg.GitHub.PagesDomain == "" {
		cfg.GitHub.PagesDomain = "github.io"
	}
	if cfg.GitHub.Timeout == 0 {
		cfg.GitHub.Timeout = 30000
	}
	if cfg.GitHub.GitUserName == "" {
		cfg.GitHub.GitUserName = "app-deployer-bot"
	}
	if cfg.GitHub.GitUserEmail == "" {
		cfg.GitHub.GitUserEmail = "app-deployer-bot@users.noreply.github.com"
	}

	if cfg.Git.Binary == "" {
		cfg.Git.Binary = "git"
	}
	if cfg.Git.CommandTimeout == 0 {
		cfg.Git.CommandTimeout = 120000
	}

	if cfg.Attachments.MaxBytes == 0 {
		cfg.Attachments.MaxBytes = 10 << 20
	}
	if cfg.Attachments.SampleRows == 0 {
		cfg.Attachments.SampleRows = 5
	}
	if cfg.Attachments.SampleLines == 0 {
		cfg.Attachments.SampleLines = 10
	}
	if cfg.Attachments.SampleChars == 0 {
		cfg.Attachments.SampleChars = 500
	}
	if cfg.Attachments.TesseractBinary == "" {
		cfg.Attachments.TesseractBinary = "tesseract"
	}
	if cfg.Attachments.OCRTimeout == 0 {
		cfg.Attachments.OCRTimeout = 20000
	}

	if cfg.Notifier.MaxAttempts == 0 {
		cfg.Notifier.MaxAttempts = 10
	}
	if cfg.Notifier.BaseDelay == 0 {
		cfg.Notifier.BaseDelay = 1000
	}
	if cfg.Notifier.Timeout == 0 {
		cfg.Notifier.Timeout = 30000
	}

	if cfg.Registry.Backend == "" {
		cfg.Registry.Backend = BackendMemory
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.KeyPrefix == "" {
		cfg.Database.Redis.KeyPrefix = "appdeployer:task:"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Server.Secret == "" {
		return fmt.Errorf("server.secret is required")
	}
	if cfg.GitHub.Token == "" {
		return fmt.Errorf("github.token is required")
	}
	if cfg.GitHub.Owner == "" {
		return fmt.Errorf("github.owner or github.org is required")
	}
	if cfg.Generation.APIKey == "" {
		return fmt.Errorf("generation.api_key is required")
	}
	if cfg.Pool.Workers < 0 || cfg.Pool.QueueSize < 0 {
		return fmt.Errorf("pool.workers and pool.queue_size must be positive")
	}
	if cfg.Notifier.MaxAttempts < 1 {
		return fmt.Errorf("notifier.max_attempts must be at least 1")
	}

	switch cfg.Registry.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis registry")
		}
	case BackendPostgres:
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.host and database.postgres.database are required for the postgres registry")
		}
	default:
		return fmt.Errorf("registry.backend %q is not one of memory, redis, postgres", cfg.Registry.Backend)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
