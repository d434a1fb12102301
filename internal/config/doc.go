// Package config loads process-wide settings (database path, gateway
// base URL/key, prompt-log location, log level) from .env/environment via
// viper + godotenv, and validates per-run options with go-playground's
// validator before a task is allowed to reach internal/queue.
package config
