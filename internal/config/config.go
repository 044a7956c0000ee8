package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Store  StoreConfig  `mapstructure:"store"`
	Worker WorkerConfig `mapstructure:"worker"`
	Server ServerConfig `mapstructure:"server"`
	GitHub GitHubConfig `mapstructure:"github"`
	Vercel VercelConfig `mapstructure:"vercel"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig configures the durable store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// WorkerConfig configures the polling scheduler.
type WorkerConfig struct {
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	ShutdownPollInterval time.Duration `mapstructure:"shutdown_poll_interval"`
	ToolTimeout          time.Duration `mapstructure:"tool_timeout"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	EnableCORS bool   `mapstructure:"enable_cors"`
}

// GitHubConfig configures GitHub access for the repo outline tool.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
}

// VercelConfig configures Vercel access for the deployments tool.
type VercelConfig struct {
	Token string `mapstructure:"token"`
}

// OpenAIConfig configures the LLM tool.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}
