package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// VIVAFLOW_DATABASE_URL for database.url.
const EnvPrefix = "VIVAFLOW"

// setDefaults registers a default for every key so viper's env binding can
// resolve nested keys during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("broker.url", "redis://localhost:6379/0")
	v.SetDefault("broker.environment", "dev")
	v.SetDefault("broker.instance_id", "local")
	v.SetDefault("broker.receive_timeout", "5s")
	v.SetDefault("broker.reconnect_max_attempts", 5)
	v.SetDefault("broker.reconnect_base_delay", "500ms")

	v.SetDefault("dispatch.debounce_window", "5s")
	v.SetDefault("dispatch.stale_task_age", "30m")
	v.SetDefault("dispatch.stale_check_schedule", "@every 5m")

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.ollama_host", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
}

// Process names the binary a configuration is loaded for. Each process
// validates only the groups it uses.
type Process int

const (
	// ProcessServer needs the database and dispatch groups but never calls
	// a model.
	ProcessServer Process = iota
	// ProcessWorker talks only to the broker and the model provider.
	ProcessWorker
)

// String implements fmt.Stringer.
func (p Process) String() string {
	switch p {
	case ProcessServer:
		return "server"
	case ProcessWorker:
		return "worker"
	default:
		return fmt.Sprintf("process(%d)", int(p))
	}
}

// skippedGroups lists the top-level Config fields p does not validate.
func (p Process) skippedGroups() []string {
	switch p {
	case ProcessServer:
		return []string{"LLM"}
	case ProcessWorker:
		return []string{"Database", "Dispatch"}
	default:
		return nil
	}
}

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(p Process) (*Config, error) {
	return load(viper.New(), ".", p)
}

// LoadFrom behaves like Load but reads config.yaml from dir.
func LoadFrom(dir string, p Process) (*Config, error) {
	return load(viper.New(), dir, p)
}

func load(v *viper.Viper, dir string, p Process) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg, p); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs the struct tag validation over the groups of cfg that p uses.
func Validate(cfg *Config, p Process) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructExcept(cfg, p.skippedGroups()...); err != nil {
		return fmt.Errorf("invalid %s configuration: %w", p, err)
	}
	return nil
}
