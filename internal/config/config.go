package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Broker   BrokerConfig   `mapstructure:"broker" validate:"required"`
	Dispatch DispatchConfig `mapstructure:"dispatch" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// BrokerConfig describes the message broker both processes share.
type BrokerConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`

	// Environment and InstanceID namespace the queue names so several
	// deployments can share one broker.
	Environment string `mapstructure:"environment" validate:"required,alphanum"`
	InstanceID  string `mapstructure:"instance_id" validate:"required,alphanum"`

	// ReceiveTimeout bounds each blocking receive so consume loops notice
	// shutdown promptly.
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout" validate:"required,gt=0"`

	ReconnectMaxAttempts uint64        `mapstructure:"reconnect_max_attempts" validate:"gte=0"`
	ReconnectBaseDelay   time.Duration `mapstructure:"reconnect_base_delay" validate:"required,gt=0"`
}

// OutboundQueue is the app → worker request queue.
func (b BrokerConfig) OutboundQueue() string {
	return fmt.Sprintf("%s_%s_BEtoAI", b.Environment, b.InstanceID)
}

// InboundQueue is the worker → app response queue.
func (b BrokerConfig) InboundQueue() string {
	return fmt.Sprintf("%s_%s_AItoBE", b.Environment, b.InstanceID)
}

// DispatchConfig tunes the application-side submission and dispatch loop.
type DispatchConfig struct {
	// DebounceWindow suppresses byte-identical sends within the window.
	DebounceWindow time.Duration `mapstructure:"debounce_window" validate:"required,gt=0"`

	// StaleTaskAge is how long an entity may sit in INPROGRESS before the
	// stale monitor reports it.
	StaleTaskAge time.Duration `mapstructure:"stale_task_age" validate:"required,gt=0"`

	// StaleCheckSchedule is a cron expression ("@every 5m" works).
	StaleCheckSchedule string `mapstructure:"stale_check_schedule" validate:"required"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	Provider          string `mapstructure:"provider" validate:"required,oneof=gemini ollama"`
	GeminiAPIKey      string `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	OllamaHost        string `mapstructure:"ollama_host" validate:"required_if=Provider ollama,omitempty,url"`
	ModelName         string `mapstructure:"model_name" validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
}
