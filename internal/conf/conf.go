package conf

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/netocloud/slack-relay/internal/biz/usecase"
	"github.com/netocloud/slack-relay/internal/data"
)

// Config represents application configuration
type Config struct {
	// HTTP server configuration
	Server ServerConfig

	// Slack configuration
	Slack SlackConfig

	// Completion API configuration
	OpenAI OpenAIConfig

	// Warehouse configuration
	Warehouse WarehouseConfig

	// Delivery deduplication configuration
	Dedup DedupConfig

	// Prompts configuration (loaded from YAML)
	Prompts *PromptsConfig

	LogLevel string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// promptsErr is why an explicit PROMPTS_CONFIG_PATH was not used
	promptsErr error
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `env:"PORT" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// SlackConfig contains Slack configuration
type SlackConfig struct {
	BotToken      string `env:"SLACK_BOT_TOKEN"`
	SigningSecret string `env:"SLACK_SIGNING_SECRET"`
	APIURL        string `env:"SLACK_API_URL" validate:"omitempty,url"`
}

// OpenAIConfig contains completion API configuration
type OpenAIConfig struct {
	APIKey  string        `env:"OPENAI_API_KEY" validate:"required"`
	Model   string        `env:"OPENAI_MODEL"`
	BaseURL string        `env:"OPENAI_BASE_URL" validate:"omitempty,url"`
	Workers int           `env:"COMPLETION_WORKERS" validate:"min=1,max=256"`
	Timeout time.Duration `env:"COMPLETION_TIMEOUT" validate:"gt=0"`
}

// WarehouseConfig contains warehouse configuration
type WarehouseConfig struct {
	Driver   string `env:"WAREHOUSE_DRIVER" validate:"oneof=sqlite postgres"`
	DSN      string `env:"WAREHOUSE_DSN" validate:"required"`
	Table    string `env:"WAREHOUSE_TABLE" validate:"required"`
	Timezone string `env:"WAREHOUSE_TIMEZONE" validate:"required"`
}

// DedupConfig contains deduplication configuration
type DedupConfig struct {
	Window   time.Duration `env:"DEDUP_WINDOW" validate:"gt=0"`
	Capacity int           `env:"DEDUP_CAPACITY" validate:"min=1"`
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Warehouse DSN defaults to a local SQLite file
	warehouseDriver := envString("WAREHOUSE_DRIVER", data.DriverSQLite)
	warehouseDSN := os.Getenv("WAREHOUSE_DSN")
	if warehouseDSN == "" && warehouseDriver == data.DriverSQLite {
		homeDir, _ := os.UserHomeDir()
		warehouseDSN = filepath.Join(homeDir, ".slack-relay", "warehouse.db")
	}

	// Load prompts from YAML
	promptsConfig, promptsErr := LoadPromptsConfig(os.Getenv("PROMPTS_CONFIG_PATH"))
	if promptsErr != nil {
		promptsConfig = DefaultPromptsConfig()
	}

	// OPENAI_MODEL overrides the prompts file
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		promptsConfig.Model.Name = model
	}

	return &Config{
		Server: ServerConfig{
			Port:            envInt("PORT", 3000),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Slack: SlackConfig{
			BotToken:      os.Getenv("SLACK_BOT_TOKEN"),
			SigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
			APIURL:        os.Getenv("SLACK_API_URL"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   promptsConfig.Model.Name,
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Workers: envInt("COMPLETION_WORKERS", usecase.DefaultDispatcherConfig.Workers),
			Timeout: envDuration("COMPLETION_TIMEOUT", usecase.DefaultDispatcherConfig.Timeout),
		},
		Warehouse: WarehouseConfig{
			Driver:   warehouseDriver,
			DSN:      warehouseDSN,
			Table:    envString("WAREHOUSE_TABLE", "chat_messages"),
			Timezone: envString("WAREHOUSE_TIMEZONE", "America/Mexico_City"),
		},
		Dedup: DedupConfig{
			Window:   envDuration("DEDUP_WINDOW", usecase.DefaultDedupConfig.Window),
			Capacity: envInt("DEDUP_CAPACITY", usecase.DefaultDedupConfig.Capacity),
		},
		Prompts:    promptsConfig,
		LogLevel:   strings.ToLower(envString("LOG_LEVEL", "info")),
		promptsErr: promptsErr,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("env"); name != "" {
			return name
		}
		return field.Name
	})

	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ConfigError{Field: verrs[0].Field(), Message: describeTag(verrs[0])}
		}
		return &ConfigError{Field: "config", Message: err.Error()}
	}

	if _, err := c.Location(); err != nil {
		return &ConfigError{Field: "WAREHOUSE_TIMEZONE", Message: "unknown timezone " + c.Warehouse.Timezone}
	}
	return nil
}

// Location returns the warehouse timezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Warehouse.Timezone)
}

// Warnings lists settings that are valid but leave part of the relay inert
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Slack.SigningSecret == "" {
		warnings = append(warnings, "SLACK_SIGNING_SECRET not set, every delivery will be rejected")
	}
	if c.Slack.BotToken == "" {
		warnings = append(warnings, "SLACK_BOT_TOKEN not set, replies and reactions are disabled")
	}
	if c.promptsErr != nil {
		warnings = append(warnings, "PROMPTS_CONFIG_PATH not loaded, using default prompts: "+c.promptsErr.Error())
	}
	return warnings
}

// ToPromptConfig converts to prompt configuration
func (c *Config) ToPromptConfig() usecase.PromptConfig {
	cfg := usecase.DefaultPromptConfig
	if c.Prompts != nil {
		cfg.SystemPrompt = c.Prompts.SystemPrompt
		cfg.MaxHistoryTurns = c.Prompts.History.MaxTurns
	}
	return cfg
}

// ToModelParams converts to completion request parameters
func (c *Config) ToModelParams() data.ModelParams {
	params := data.DefaultModelParams
	if c.Prompts != nil {
		params.MaxTokens = c.Prompts.Model.MaxTokens
		params.Temperature = c.Prompts.Model.Temperature
	}
	if c.OpenAI.Model != "" {
		params.Model = c.OpenAI.Model
	}
	return params
}

// ToDispatcherConfig converts to dispatcher configuration
func (c *Config) ToDispatcherConfig() usecase.DispatcherConfig {
	return usecase.DispatcherConfig{Workers: c.OpenAI.Workers, Timeout: c.OpenAI.Timeout}
}

// ToDedupConfig converts to deduplicator configuration
func (c *Config) ToDedupConfig() usecase.DedupConfig {
	return usecase.DedupConfig{Window: c.Dedup.Window, Capacity: c.Dedup.Capacity}
}

// ToWarehouseConfig converts to warehouse connection configuration
func (c *Config) ToWarehouseConfig() data.WarehouseConfig {
	return data.WarehouseConfig{
		Driver: c.Warehouse.Driver,
		DSN:    c.Warehouse.DSN,
		Table:  c.Warehouse.Table,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a URL"
	case "min":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "invalid (" + fe.Tag() + ")"
	}
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}
