package stats

import (
	"sync"
	"testing"

	"github.com/caravan-llm/caravan/internal/core/domain"
)

func TestCollector_ClassifiesAttemptFailures(t *testing.T) {
	c := NewCollector(nil)

	c.RecordRequest()
	c.RecordAttemptFailure(domain.OutcomeRateLimited)
	c.RecordAttemptFailure(domain.OutcomeRateLimited)
	c.RecordAttemptFailure(domain.OutcomeUnauthorized)
	c.RecordAttemptFailure(domain.OutcomeTimeout)
	c.RecordAttemptFailure(domain.OutcomeTransportError)
	c.RecordExhaustion()

	s := c.GetRelayStats()
	if s.TotalRequests != 1 {
		t.Errorf("expected 1 total request, got %d", s.TotalRequests)
	}
	if s.Attempts != 5 {
		t.Errorf("expected 5 attempts, got %d", s.Attempts)
	}
	if s.RateLimitedKeys != 2 {
		t.Errorf("expected 2 rate limited, got %d", s.RateLimitedKeys)
	}
	if s.UnauthorizedKeys != 1 {
		t.Errorf("expected 1 unauthorized, got %d", s.UnauthorizedKeys)
	}
	if s.Timeouts != 1 {
		t.Errorf("expected 1 timeout, got %d", s.Timeouts)
	}
	if s.TransportErrors != 1 {
		t.Errorf("expected 1 transport error, got %d", s.TransportErrors)
	}
	if s.ExhaustedRequests != 1 {
		t.Errorf("expected 1 exhausted request, got %d", s.ExhaustedRequests)
	}
}

func TestCollector_StreamCompletionAccumulates(t *testing.T) {
	c := NewCollector(nil)

	c.RecordStreamCompleted(3, 120)
	c.RecordStreamCompleted(7, 880)
	c.RecordStreamInterrupted()

	s := c.GetRelayStats()
	if s.CompletedStreams != 2 {
		t.Errorf("expected 2 completed streams, got %d", s.CompletedStreams)
	}
	if s.InterruptedStreams != 1 {
		t.Errorf("expected 1 interrupted stream, got %d", s.InterruptedStreams)
	}
	if s.EventsForwarded != 10 {
		t.Errorf("expected 10 events forwarded, got %d", s.EventsForwarded)
	}
	if s.BytesStreamed != 1000 {
		t.Errorf("expected 1000 bytes streamed, got %d", s.BytesStreamed)
	}
	if s.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", s.Attempts)
	}
}

func TestCollector_ConcurrentUpdates(t *testing.T) {
	c := NewCollector(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordRequest()
				c.RecordAttemptFailure(domain.OutcomeRateLimited)
				c.RecordStreamCompleted(1, 10)
			}
		}()
	}
	wg.Wait()

	s := c.GetRelayStats()
	if s.TotalRequests != 2000 {
		t.Errorf("expected 2000 requests, got %d", s.TotalRequests)
	}
	if s.RateLimitedKeys != 2000 {
		t.Errorf("expected 2000 rate limited, got %d", s.RateLimitedKeys)
	}
	if s.Attempts != 4000 {
		t.Errorf("expected 4000 attempts, got %d", s.Attempts)
	}
	if s.BytesStreamed != 20000 {
		t.Errorf("expected 20000 bytes, got %d", s.BytesStreamed)
	}
}
