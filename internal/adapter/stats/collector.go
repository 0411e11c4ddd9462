package stats

/*
	Caravan Stats Collector

	Every relay request reports here so the status endpoint can show what the
	process has been doing: attempts per failure class, completed and
	interrupted streams, bytes pushed to clients. Plain atomics, hit on every
	request, no locks.
*/

import (
	"sync/atomic"

	"github.com/caravan-llm/caravan/internal/core/domain"
	"github.com/caravan-llm/caravan/internal/core/ports"
	"github.com/caravan-llm/caravan/internal/logger"
)

type Collector struct {
	logger *logger.StyledLogger

	totalRequests    int64
	rejectedRequests int64

	attempts        int64
	rateLimited     int64
	unauthorized    int64
	timeouts        int64
	transportErrors int64

	completedStreams   int64
	interruptedStreams int64
	exhaustedRequests  int64

	eventsForwarded int64
	bytesStreamed   int64
}

func NewCollector(logger *logger.StyledLogger) *Collector {
	return &Collector{logger: logger}
}

func (c *Collector) RecordRequest() {
	atomic.AddInt64(&c.totalRequests, 1)
}

func (c *Collector) RecordRejection() {
	atomic.AddInt64(&c.rejectedRequests, 1)
}

func (c *Collector) RecordAttemptFailure(kind domain.OutcomeKind) {
	atomic.AddInt64(&c.attempts, 1)

	switch kind {
	case domain.OutcomeRateLimited:
		atomic.AddInt64(&c.rateLimited, 1)
	case domain.OutcomeUnauthorized:
		atomic.AddInt64(&c.unauthorized, 1)
	case domain.OutcomeTimeout:
		atomic.AddInt64(&c.timeouts, 1)
	case domain.OutcomeTransportError:
		atomic.AddInt64(&c.transportErrors, 1)
	case domain.OutcomeSuccess:
		// successes are recorded when the stream terminates
	}
}

func (c *Collector) RecordStreamCompleted(events int64, bytes int64) {
	atomic.AddInt64(&c.attempts, 1)
	atomic.AddInt64(&c.completedStreams, 1)
	atomic.AddInt64(&c.eventsForwarded, events)
	atomic.AddInt64(&c.bytesStreamed, bytes)
}

func (c *Collector) RecordStreamInterrupted() {
	atomic.AddInt64(&c.attempts, 1)
	atomic.AddInt64(&c.interruptedStreams, 1)
}

func (c *Collector) RecordExhaustion() {
	atomic.AddInt64(&c.exhaustedRequests, 1)
}

func (c *Collector) GetRelayStats() ports.RelayStats {
	return ports.RelayStats{
		TotalRequests:      atomic.LoadInt64(&c.totalRequests),
		RejectedRequests:   atomic.LoadInt64(&c.rejectedRequests),
		Attempts:           atomic.LoadInt64(&c.attempts),
		RateLimitedKeys:    atomic.LoadInt64(&c.rateLimited),
		UnauthorizedKeys:   atomic.LoadInt64(&c.unauthorized),
		Timeouts:           atomic.LoadInt64(&c.timeouts),
		TransportErrors:    atomic.LoadInt64(&c.transportErrors),
		CompletedStreams:   atomic.LoadInt64(&c.completedStreams),
		InterruptedStreams: atomic.LoadInt64(&c.interruptedStreams),
		ExhaustedRequests:  atomic.LoadInt64(&c.exhaustedRequests),
		EventsForwarded:    atomic.LoadInt64(&c.eventsForwarded),
		BytesStreamed:      atomic.LoadInt64(&c.bytesStreamed),
	}
}
