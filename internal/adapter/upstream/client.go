package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/caravan-llm/caravan/internal/core/domain"
	"github.com/caravan-llm/caravan/internal/logger"
)

const maxErrorBodyBytes = 32 * 1024

// Client issues one streaming completion request per attempt and classifies
// the raw response. It never touches the key pool; rotation decisions belong
// to the relay service.
type Client struct {
	transport     *http.Transport
	configuration *Configuration
	logger        *logger.StyledLogger
}

// completionPayload is the upstream request body; stream requests
// incremental delivery.
type completionPayload struct {
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

func NewClient(configuration *Configuration, logger *logger.StyledLogger) *Client {
	// TCP tuning for token streaming, Nagle off so deltas flush promptly
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{
				Timeout:   configuration.GetConnectionTimeout(),
				KeepAlive: configuration.GetConnectionKeepAlive(),
			}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				if terr := tcpConn.SetNoDelay(DefaultSetNoDelay); terr != nil {
					logger.Warn("failed to set NoDelay", "err", terr)
				}
			}
			return conn, nil
		},
	}

	return &Client{
		transport:     transport,
		configuration: configuration,
		logger:        logger,
	}
}

// Attempt performs one streaming POST with the given key. The attempt
// timeout covers connection and response headers; once a success stream is
// handed back, reading it is bounded only by the caller's context.
func (c *Client) Attempt(ctx context.Context, key domain.APIKey, req *domain.ChatRequest) domain.AttemptOutcome {
	attemptCtx, cancel := context.WithCancel(ctx)

	var timedOut atomic.Bool
	timer := newAttemptTimer(c.configuration.GetAttemptTimeout(), &timedOut, cancel)

	body, err := json.Marshal(completionPayload{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   true,
	})
	if err != nil {
		timer.Stop()
		cancel()
		return domain.AttemptOutcome{Kind: domain.OutcomeTransportError, Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.configuration.GetCompletionsURL(), bytes.NewReader(body))
	if err != nil {
		timer.Stop()
		cancel()
		return domain.AttemptOutcome{Kind: domain.OutcomeTransportError, Message: err.Error()}
	}

	httpReq.Header.Set("Authorization", "Bearer "+string(key))
	httpReq.Header.Set("Content-Type", "application/json")
	if referer := c.configuration.Referer; referer != "" {
		httpReq.Header.Set("HTTP-Referer", referer)
	}
	if title := c.configuration.Title; title != "" {
		httpReq.Header.Set("X-Title", title)
	}

	resp, err := c.transport.RoundTrip(httpReq)
	if err != nil {
		timer.Stop()
		cancel()
		if timedOut.Load() {
			return domain.AttemptOutcome{Kind: domain.OutcomeTimeout, Message: "Request timed out"}
		}
		return domain.AttemptOutcome{Kind: domain.OutcomeTransportError, Message: err.Error()}
	}

	// Headers arrived, the attempt timeout no longer applies
	timer.Stop()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.discard(resp.Body)
		cancel()
		return domain.AttemptOutcome{Kind: domain.OutcomeRateLimited, Message: "Rate limited"}

	case resp.StatusCode == http.StatusUnauthorized:
		c.discard(resp.Body)
		cancel()
		return domain.AttemptOutcome{Kind: domain.OutcomeUnauthorized, Message: "Invalid API Key"}

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		c.discard(resp.Body)
		cancel()
		return domain.AttemptOutcome{
			Kind:    domain.OutcomeTransportError,
			Message: domain.NewUpstreamError(resp.StatusCode, string(errBody)).Error(),
		}
	}

	return domain.AttemptOutcome{
		Kind:   domain.OutcomeSuccess,
		Stream: &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
	}
}

// Cleanup closes idle upstream connections.
func (c *Client) Cleanup() {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
}

func (c *Client) discard(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBodyBytes))
	_ = body.Close()
}

// newAttemptTimer aborts the in-flight request when the attempt deadline
// passes, recording that the cancellation was a timeout rather than a
// caller disconnect.
func newAttemptTimer(d time.Duration, fired *atomic.Bool, cancel context.CancelFunc) *time.Timer {
	return time.AfterFunc(d, func() {
		fired.Store(true)
		cancel()
	})
}

// cancelOnClose releases the attempt's request context when the caller is
// done with the success stream.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
