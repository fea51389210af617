// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Chat       ChatConfig       `mapstructure:"chat"`
	APIs       APIsConfig       `mapstructure:"apis"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name           string `mapstructure:"name"`
	Version        string `mapstructure:"version"`
	Environment    string `mapstructure:"environment"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
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

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChatConfig holds the conversation-engine settings.
type ChatConfig struct {
	StateTTL       int    `mapstructure:"state_ttl"`        // seconds, sliding window per turn
	ToolConfigPath string `mapstructure:"tool_config_path"` // directory of per-context tool documents
	DocumentIndex  string `mapstructure:"document_index"`   // elasticsearch index prefix for passages
	MaxPassages    int    `mapstructure:"max_passages"`
	FallbackAnswer string `mapstructure:"fallback_answer"`
	FarewellAnswer string `mapstructure:"farewell_answer"`
}

// GetStateTTL returns the clarification deadline as a duration.
func (c ChatConfig) GetStateTTL() time.Duration {
	return time.Duration(c.StateTTL) * time.Second
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI GenAIConfig `mapstructure:"genai"`
}

// GenAIConfig holds settings for the internal GenAI HTTP API.
type GenAIConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	MaxRetries  int     `mapstructure:"max_retries"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// GetTimeout returns the GenAI call timeout as a duration.
func (g GenAIConfig) GetTimeout() time.Duration {
	return time.Duration(g.Timeout) * time.Millisecond
}

// EscalationConfig holds settings for the human hand-off notifier.
type EscalationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Email   string `mapstructure:"email"`
	Phone   string `mapstructure:"phone"`
	AWS     struct {
		Region    string `mapstructure:"region"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
