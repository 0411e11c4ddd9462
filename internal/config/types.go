package config

import (
	"fmt"
	"time"

	"github.com/caravan-llm/caravan/internal/core/domain"
)

// Config holds all configuration for the application
type Config struct {
	Filename string         `yaml:"-"`
	Logging  LoggingConfig  `yaml:"logging"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Models   ModelsConfig   `yaml:"models"`
	Server   ServerConfig   `yaml:"server"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string              `yaml:"host"`
	AllowedOrigin   string              `yaml:"allowed_origin"`
	RateLimits      ServerRateLimits    `yaml:"rate_limits"`
	RequestLimits   ServerRequestLimits `yaml:"request_limits"`
	Port            int                 `yaml:"port"`
	ReadTimeout     time.Duration       `yaml:"read_timeout"`
	IdleTimeout     time.Duration       `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration       `yaml:"shutdown_timeout"`
	RequestLogging  bool                `yaml:"request_logging"`
}

// GetAddress returns the server address in host:port format
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ServerRequestLimits defines request size limits
type ServerRequestLimits struct {
	MaxBodySize int64 `yaml:"max_body_size"`
}

// ServerRateLimits defines per-client rate limiting configuration
type ServerRateLimits struct {
	PerIPRequestsPerMinute int           `yaml:"per_ip_requests_per_minute"`
	BurstSize              int           `yaml:"burst_size"`
	CleanupInterval        time.Duration `yaml:"cleanup_interval"`
	TrustProxyHeaders      bool          `yaml:"trust_proxy_headers"`
}

// UpstreamConfig holds settings for the completion provider.
// API keys are deliberately absent from the YAML surface; they are
// read from the environment only so config files stay shareable.
type UpstreamConfig struct {
	URL                 string          `yaml:"url"`
	Referer             string          `yaml:"referer"`
	Title               string          `yaml:"title"`
	APIKeys             []domain.APIKey `yaml:"-"`
	AttemptTimeout      time.Duration   `yaml:"attempt_timeout"`
	ConnectionTimeout   time.Duration   `yaml:"connection_timeout"`
	ConnectionKeepAlive time.Duration   `yaml:"connection_keepalive"`
	StreamBufferSize    int             `yaml:"stream_buffer_size"`
}

// ModelsConfig holds the model allow-list exposed to clients
type ModelsConfig struct {
	Allowed []string `yaml:"allowed"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}
