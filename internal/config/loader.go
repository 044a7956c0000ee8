package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "WORKBENCH",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "WORKBENCH",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (WORKBENCH_*)
// 3. Project config (.workbench/config.yaml in current directory)
// 4. User config (~/.config/workbench/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".workbench")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "workbench"))
		}
	}

	// Read config file (ignore not found)
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("store.path", ".workbench/state/workbench.db")

	l.v.SetDefault("worker.poll_interval", "5s")
	l.v.SetDefault("worker.shutdown_poll_interval", "1s")
	l.v.SetDefault("worker.tool_timeout", "5m")

	l.v.SetDefault("server.host", "localhost")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.enable_cors", true)

	l.v.SetDefault("openai.model", "gpt-3.5-turbo")
}
