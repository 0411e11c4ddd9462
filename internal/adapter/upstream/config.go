package upstream

import "time"

const (
	DefaultCompletionsURL = "https://openrouter.ai/api/v1/chat/completions"

	DefaultAttemptTimeout = 30 * time.Second

	DefaultSetNoDelay = true

	DefaultConnectionTimeout   = 60 * time.Second
	DefaultConnectionKeepAlive = 60 * time.Second

	DefaultMaxIdleConns        = 20
	DefaultMaxIdleConnsPerHost = 5

	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second
)

// Configuration holds upstream client settings
type Configuration struct {
	CompletionsURL      string
	Referer             string
	Title               string
	AttemptTimeout      time.Duration
	ConnectionTimeout   time.Duration
	ConnectionKeepAlive time.Duration
}

func (c *Configuration) GetCompletionsURL() string {
	if c.CompletionsURL == "" {
		return DefaultCompletionsURL
	}
	return c.CompletionsURL
}

// GetAttemptTimeout bounds one attempt up to response headers. Streaming the
// body afterwards is not covered by this timeout.
func (c *Configuration) GetAttemptTimeout() time.Duration {
	if c.AttemptTimeout == 0 {
		return DefaultAttemptTimeout
	}
	return c.AttemptTimeout
}

func (c *Configuration) GetConnectionTimeout() time.Duration {
	if c.ConnectionTimeout == 0 {
		return DefaultConnectionTimeout
	}
	return c.ConnectionTimeout
}

func (c *Configuration) GetConnectionKeepAlive() time.Duration {
	if c.ConnectionKeepAlive == 0 {
		return DefaultConnectionKeepAlive
	}
	return c.ConnectionKeepAlive
}
