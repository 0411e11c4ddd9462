package relay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/caravan-llm/caravan/internal/core/constants"
	"github.com/caravan-llm/caravan/internal/core/domain"
	"github.com/caravan-llm/caravan/internal/core/ports"
	"github.com/caravan-llm/caravan/internal/logger"
)

const (
	DefaultStreamBufferSize = 8 * 1024

	msgRateLimitExhausted = "All API keys are currently rate limited. Please try again in a few minutes."
	msgUnreachableFmt     = "Unable to reach AI service. Please check your connection. (Error: %s)"
	msgStreamingError     = "Streaming error"
	msgBlankKey           = "API key is missing or empty"
)

// relayState names the phase a chat turn is in. Transitions only move
// forward; stateTerminated is absorbing.
type relayState int

const (
	stateValidating relayState = iota
	stateAttempting
	stateStreaming
	stateTerminated
)

func (s relayState) String() string {
	switch s {
	case stateValidating:
		return "validating"
	case stateAttempting:
		return "attempting"
	case stateStreaming:
		return "streaming"
	case stateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Service is the retry orchestrator: it validates the turn, walks the key
// pool attempt by attempt, and hands successful streams to the reframer.
// Retry is only ever legal before the first byte of a success stream has
// been forwarded; mid-stream failures are terminal.
type Service struct {
	keys          ports.KeySelector
	client        ports.CompletionClient
	stats         ports.StatsCollector
	logger        *logger.StyledLogger
	allowedModels map[string]struct{}
	bufferSize    int
}

func NewService(
	keys ports.KeySelector,
	client ports.CompletionClient,
	stats ports.StatsCollector,
	allowedModels []string,
	bufferSize int,
	logger *logger.StyledLogger,
) *Service {
	allowed := make(map[string]struct{}, len(allowedModels))
	for _, model := range allowedModels {
		allowed[model] = struct{}{}
	}

	if bufferSize <= 0 {
		bufferSize = DefaultStreamBufferSize
	}

	return &Service{
		keys:          keys,
		client:        client,
		stats:         stats,
		logger:        logger,
		allowedModels: allowed,
		bufferSize:    bufferSize,
	}
}

// Validate rejects malformed turns before any streaming has begun. No key is
// consumed and no upstream attempt is made for a rejected request.
func (s *Service) Validate(req *domain.ChatRequest) error {
	if err := s.validate(req); err != nil {
		s.stats.RecordRejection()
		return err
	}
	return nil
}

func (s *Service) validate(req *domain.ChatRequest) error {
	if req == nil {
		return domain.NewValidationError("body", "request body is required")
	}
	if req.Model == "" {
		return domain.NewValidationError("model", "model is required")
	}
	if _, ok := s.allowedModels[req.Model]; !ok {
		return domain.NewValidationError("model", "model is not in the allowed list")
	}
	if len(req.Messages) == 0 {
		return domain.NewValidationError("messages", "a non-empty messages array is required")
	}
	if s.keys.Size() == 0 {
		return domain.ErrNoKeys
	}
	return nil
}

// Relay runs the attempt loop for one chat turn. By the time it returns,
// exactly one terminal event has reached the sink unless the caller
// disconnected first or validation failed.
func (s *Service) Relay(ctx context.Context, req *domain.ChatRequest, sink ports.EventSink) error {
	rlog := s.requestLogger(ctx)

	state := stateValidating
	defer func() {
		rlog.Debug("relay finished", "state", state.String())
	}()

	if err := s.validate(req); err != nil {
		state = stateTerminated
		return err
	}

	s.stats.RecordRequest()
	state = stateAttempting

	maxAttempts := s.keys.Size()
	var lastKind domain.OutcomeKind
	var lastMessage string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			// Caller is gone, there is nobody left to emit to
			state = stateTerminated
			return ctx.Err()
		}

		key, err := s.keys.Current()
		if err != nil {
			state = stateTerminated
			return err
		}

		// Fail closed on blank pool entries rather than sending an empty bearer
		if key.IsBlank() {
			rlog.Warn("Skipping blank API key", "attempt", attempt)
			s.stats.RecordAttemptFailure(domain.OutcomeTransportError)
			lastKind, lastMessage = domain.OutcomeTransportError, msgBlankKey
			s.keys.Advance()
			continue
		}

		rlog.InfoWithKey("Dispatching upstream attempt with key", key.Mask(),
			"attempt", attempt, "model", req.Model)

		outcome := s.client.Attempt(ctx, key, req)

		if outcome.Kind == domain.OutcomeSuccess {
			state = stateStreaming
			err := s.streamToSink(ctx, outcome.Stream, sink, rlog)
			state = stateTerminated
			return err
		}

		rlog.WarnWithKey("Upstream attempt failed for key", key.Mask(),
			"class", outcome.Kind.String(), "reason", outcome.Message, "attempt", attempt)
		s.stats.RecordAttemptFailure(outcome.Kind)
		lastKind, lastMessage = outcome.Kind, outcome.Message
		s.keys.Advance()
	}

	state = stateTerminated
	s.stats.RecordExhaustion()
	rlog.Error("All API keys exhausted", "attempts", maxAttempts, "last_error", lastMessage)
	return sink.Send(domain.Failed(exhaustionMessage(lastKind, lastMessage)))
}

// streamToSink drains a success stream through the reframer into the sink.
// This path is never retried: partial content may already have reached the
// caller and cannot be un-sent.
func (s *Service) streamToSink(ctx context.Context, stream io.ReadCloser, sink ports.EventSink, rlog *logger.StyledLogger) error {
	defer stream.Close()

	reframer := NewReframer()
	buffer := make([]byte, s.bufferSize)

	var eventsForwarded int64
	var bytesRead int64

	for {
		n, readErr := stream.Read(buffer)

		if n > 0 {
			bytesRead += int64(n)
			for _, event := range reframer.Feed(buffer[:n]) {
				if err := sink.Send(event); err != nil {
					rlog.Info("Client disconnected during streaming",
						"events_forwarded", eventsForwarded, "bytes_read", bytesRead)
					return err
				}
				eventsForwarded++
				if event.Terminal() {
					s.stats.RecordStreamCompleted(eventsForwarded, bytesRead)
					rlog.Debug("Stream completed on upstream sentinel",
						"events_forwarded", eventsForwarded, "bytes_read", bytesRead)
					return nil
				}
			}
		}

		if readErr == nil {
			continue
		}

		if errors.Is(readErr, io.EOF) {
			// Upstream closed without [DONE]; treat EOF as implicit completion
			for _, event := range reframer.Finish() {
				if err := sink.Send(event); err != nil {
					return err
				}
				eventsForwarded++
			}
			s.stats.RecordStreamCompleted(eventsForwarded, bytesRead)
			rlog.Debug("Stream completed on transport EOF",
				"events_forwarded", eventsForwarded, "bytes_read", bytesRead)
			return nil
		}

		if ctx.Err() != nil {
			rlog.Info("Client disconnected during streaming",
				"events_forwarded", eventsForwarded, "bytes_read", bytesRead)
			return ctx.Err()
		}

		rlog.Error("Stream read error", "error", readErr,
			"events_forwarded", eventsForwarded, "bytes_read", bytesRead)
		s.stats.RecordStreamInterrupted()
		return sink.Send(domain.Failed(msgStreamingError))
	}
}

func (s *Service) requestLogger(ctx context.Context) *logger.StyledLogger {
	if id, ok := ctx.Value(constants.ContextRequestIdKey).(string); ok && id != "" {
		return s.logger.WithRequestID(id)
	}
	return s.logger
}

func exhaustionMessage(kind domain.OutcomeKind, lastMessage string) string {
	if kind == domain.OutcomeRateLimited {
		return msgRateLimitExhausted
	}
	return fmt.Sprintf(msgUnreachableFmt, lastMessage)
}
