// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Pool        PoolConfig        `mapstructure:"pool"`
	Generation  GenerationConfig  `mapstructure:"generation"`
	GitHub      GitHubConfig      `mapstructure:"github"`
	Git         GitConfig         `mapstructure:"git"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Notifier    NotifierConfig    `mapstructure:"notifier"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the inbound endpoint settings.
type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Secret          string `mapstructure:"secret"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
}

// Address returns the listen address for http.Server.
func (s ServerConfig) Address() string {
	return fmt.Sprintf(":%d", s.Port)
}

// PoolConfig sizes the background round worker pool.
type PoolConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// GenerationConfig holds settings for the chat-completions backend.
type GenerationConfig struct {
	BaseURL               string `mapstructure:"base_url"`
	APIKey                string `mapstructure:"api_key"`
	Model                 string `mapstructure:"model"`
	Timeout               int    `mapstructure:"timeout"` // milliseconds
	PriorArtifactMaxChars int    `mapstructure:"prior_artifact_max_chars"`
}

// GitHubConfig holds settings for the repository host REST API.
type GitHubConfig struct {
	APIURL       string `mapstructure:"api_url"`
	Token        string `mapstructure:"token"`
	Owner        string `mapstructure:"owner"`
	Org          string `mapstructure:"org"`
	Branch       string `mapstructure:"branch"`
	Private      bool   `mapstructure:"private"`
	PagesDomain  string `mapstructure:"pages_domain"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
	GitUserName  string `mapstructure:"git_user_name"`
	GitUserEmail string `mapstructure:"git_user_email"`
}

// GitConfig holds settings for the version-control CLI.
type GitConfig struct {
	Binary         string `mapstructure:"binary"`
	CommandTimeout int    `mapstructure:"command_timeout"` // milliseconds
}

// AttachmentsConfig holds settings for decoding and digesting attachments.
type AttachmentsConfig struct {
	MaxBytes        int64  `mapstructure:"max_bytes"`
	SampleRows      int    `mapstructure:"sample_rows"`
	SampleLines     int    `mapstructure:"sample_lines"`
	SampleChars     int    `mapstructure:"sample_chars"`
	OCREnabled      bool   `mapstructure:"ocr_enabled"`
	TesseractBinary string `mapstructure:"tesseract_binary"`
	OCRTimeout      int    `mapstructure:"ocr_timeout"` // milliseconds
}

// NotifierConfig holds the evaluator delivery retry policy.
type NotifierConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BaseDelay   int `mapstructure:"base_delay"` // milliseconds
	Timeout     int `mapstructure:"timeout"`    // milliseconds, per attempt
}

// RegistryConfig selects the round state backend.
type RegistryConfig struct {
	Backend string `mapstructure:"backend"` // memory | redis | postgres
	TTL     int    `mapstructure:"ttl"`     // seconds, redis only; 0 keeps records forever
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Registry backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)
