package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds process-wide settings read from .env/environment, separate
// from the per-run options validated by RunOptions.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	PromptLog PromptLogConfig `mapstructure:"prompt_log"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Queue     QueueConfig     `mapstructure:"queue"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type GatewayConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type PromptLogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type QueueConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Load reads a .env file if present (missing is not an error, matching
// how the original service treated a missing .env as "use process env"),
// then layers in process environment variables and defaults.
func Load() (*Config, error) {
	return load("")
}

// LoadFrom is Load, but reads the given path instead of the default ./.env
// — used by the CLI's --config flag.
func LoadFrom(envPath string) (*Config, error) {
	return load(envPath)
}

func load(envPath string) (*Config, error) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "./biasbench.db")
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("prompt_log.enabled", false)
	v.SetDefault("prompt_log.dir", "./prompt-logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("queue.poll_interval", 500*time.Millisecond)
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("gateway.base_url", "VLLM_BASE_URL")
	_ = v.BindEnv("gateway.api_key", "VLLM_API_KEY")
	_ = v.BindEnv("prompt_log.enabled", "PROMPT_LOG_ENABLED")
	_ = v.BindEnv("prompt_log.dir", "PROMPT_LOG_DIR")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
}
