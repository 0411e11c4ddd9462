package ports

import (
	"context"

	"github.com/caravan-llm/caravan/internal/core/domain"
)

// KeySelector owns the rotating credential pool. The cursor is shared
// process-wide: concurrent requests observe and advance the same position.
type KeySelector interface {
	Current() (domain.APIKey, error)
	Advance()
	Size() int
}

// CompletionClient performs one streaming upstream attempt with one key and
// classifies the result. It never mutates the key pool.
type CompletionClient interface {
	Attempt(ctx context.Context, key domain.APIKey, req *domain.ChatRequest) domain.AttemptOutcome
}

// EventSink receives the outbound event stream for a single chat turn.
// Implementations flush each event immediately.
type EventSink interface {
	Send(event domain.StreamEvent) error
}

// RelayService ties validation, key rotation, upstream attempts and stream
// reframing together for one chat turn.
type RelayService interface {
	// Validate rejects malformed requests before any streaming has begun.
	// Returns *domain.ValidationError or domain.ErrNoKeys.
	Validate(req *domain.ChatRequest) error

	// Relay runs the attempt loop and streams events into the sink. By the
	// time it returns, exactly one terminal event has been sent unless the
	// caller disconnected first.
	Relay(ctx context.Context, req *domain.ChatRequest, sink EventSink) error
}

// RelayStats is a point-in-time snapshot of relay activity.
type RelayStats struct {
	TotalRequests      int64
	RejectedRequests   int64
	Attempts           int64
	RateLimitedKeys    int64
	UnauthorizedKeys   int64
	Timeouts           int64
	TransportErrors    int64
	CompletedStreams   int64
	InterruptedStreams int64
	ExhaustedRequests  int64
	EventsForwarded    int64
	BytesStreamed      int64
}

// StatsCollector aggregates relay activity for the status endpoint.
type StatsCollector interface {
	RecordRequest()
	RecordRejection()
	RecordAttemptFailure(kind domain.OutcomeKind)
	RecordStreamCompleted(events int64, bytes int64)
	RecordStreamInterrupted()
	RecordExhaustion()
	GetRelayStats() RelayStats
}
