package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/caravan-llm/caravan/internal/core/domain"
)

const (
	DefaultPort = 3000
	DefaultHost = "localhost"

	// EnvAPIKeys is the comma-separated pool of provider keys. Keys never
	// appear in config files.
	EnvAPIKeys = "CARAVAN_API_KEYS"

	// EnvAPIKeysLegacy is honoured when EnvAPIKeys is unset, for
	// deployments carried over from the Node relay.
	EnvAPIKeysLegacy = "OPENROUTER_API_KEYS"
)

// DefaultModels is the out-of-the-box allow-list of free-tier models.
var DefaultModels = []string{
	"z-ai/glm-4.5-air:free",
	"tngtech/deepseek-r1t2-chimera:free",
	"deepseek/deepseek-chat-v3-0324:free",
	"qwen/qwen3-coder:free",
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestLogging:  true,
			AllowedOrigin:   "*",
			RequestLimits: ServerRequestLimits{
				MaxBodySize: 1 << 20, // 1MB
			},
			RateLimits: ServerRateLimits{
				PerIPRequestsPerMinute: 60,
				BurstSize:              20,
				CleanupInterval:        5 * time.Minute,
				TrustProxyHeaders:      false,
			},
		},
		Upstream: UpstreamConfig{
			URL:                 "https://openrouter.ai/api/v1/chat/completions",
			AttemptTimeout:      30 * time.Second,
			ConnectionTimeout:   30 * time.Second,
			ConnectionKeepAlive: 30 * time.Second,
			StreamBufferSize:    8 * 1024,
		},
		Models: ModelsConfig{
			Allowed: DefaultModels,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("CARAVAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, check if we have CARAVAN_CONFIG_FILE env var
		if configFile := os.Getenv("CARAVAN_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	} else {
		config.Filename = viper.ConfigFileUsed()
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.Upstream.APIKeys = loadAPIKeysFromEnv()

	return config, nil
}

// loadAPIKeysFromEnv reads the key pool from the environment. Order is
// preserved; it determines rotation order.
func loadAPIKeysFromEnv() []domain.APIKey {
	raw := os.Getenv(EnvAPIKeys)
	if raw == "" {
		raw = os.Getenv(EnvAPIKeysLegacy)
	}
	return domain.ParseAPIKeys(raw)
}
