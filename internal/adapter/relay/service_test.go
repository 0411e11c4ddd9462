package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/caravan-llm/caravan/internal/core/domain"
	"github.com/caravan-llm/caravan/internal/core/ports"
	"github.com/caravan-llm/caravan/internal/logger"
	"github.com/caravan-llm/caravan/theme"
)

const testModel = "test-vendor/test-model:free"

func newTestLogger() *logger.StyledLogger {
	return logger.NewStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), theme.Default())
}

func validRequest() *domain.ChatRequest {
	return &domain.ChatRequest{
		Model:    testModel,
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	}
}

// fakeSelector records rotation without real key storage semantics.
type fakeSelector struct {
	keys     []domain.APIKey
	cursor   int
	advances int
}

func (f *fakeSelector) Current() (domain.APIKey, error) {
	if len(f.keys) == 0 {
		return "", domain.ErrNoKeys
	}
	return f.keys[f.cursor%len(f.keys)], nil
}

func (f *fakeSelector) Advance() {
	f.cursor++
	f.advances++
}

func (f *fakeSelector) Size() int {
	return len(f.keys)
}

// fakeClient replays a scripted outcome per attempt and records the key each
// attempt used.
type fakeClient struct {
	outcomes []domain.AttemptOutcome
	keysUsed []domain.APIKey
}

func (f *fakeClient) Attempt(ctx context.Context, key domain.APIKey, req *domain.ChatRequest) domain.AttemptOutcome {
	f.keysUsed = append(f.keysUsed, key)
	if len(f.outcomes) == 0 {
		return domain.AttemptOutcome{Kind: domain.OutcomeTransportError, Message: "script exhausted"}
	}
	outcome := f.outcomes[0]
	f.outcomes = f.outcomes[1:]
	return outcome
}

type fakeSink struct {
	events    []domain.StreamEvent
	failAfter int // fail Send once this many events have been accepted, -1 never
}

func newFakeSink() *fakeSink {
	return &fakeSink{failAfter: -1}
}

func (f *fakeSink) Send(event domain.StreamEvent) error {
	if f.failAfter >= 0 && len(f.events) >= f.failAfter {
		return errors.New("client gone")
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSink) terminalCount() int {
	count := 0
	for _, e := range f.events {
		if e.Terminal() {
			count++
		}
	}
	return count
}

type nopStats struct{}

func (nopStats) RecordRequest()                          {}
func (nopStats) RecordRejection()                        {}
func (nopStats) RecordAttemptFailure(domain.OutcomeKind) {}
func (nopStats) RecordStreamCompleted(int64, int64)      {}
func (nopStats) RecordStreamInterrupted()                {}
func (nopStats) RecordExhaustion()                       {}
func (nopStats) GetRelayStats() ports.RelayStats         { return ports.RelayStats{} }

func successStream(body string) domain.AttemptOutcome {
	return domain.AttemptOutcome{
		Kind:   domain.OutcomeSuccess,
		Stream: io.NopCloser(strings.NewReader(body)),
	}
}

func newTestService(keys *fakeSelector, client *fakeClient) *Service {
	return NewService(keys, client, nopStats{}, []string{testModel}, 0, newTestLogger())
}

func TestValidate_RejectsUnknownModel(t *testing.T) {
	svc := newTestService(&fakeSelector{keys: []domain.APIKey{"sk-1"}}, &fakeClient{})

	err := svc.Validate(&domain.ChatRequest{
		Model:    "not/allowed",
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if validationErr.Field != "model" {
		t.Errorf("expected model field rejected, got %s", validationErr.Field)
	}
}

func TestValidate_RejectsEmptyMessages(t *testing.T) {
	svc := newTestService(&fakeSelector{keys: []domain.APIKey{"sk-1"}}, &fakeClient{})

	err := svc.Validate(&domain.ChatRequest{Model: testModel})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidate_NoKeysConfigured(t *testing.T) {
	svc := newTestService(&fakeSelector{}, &fakeClient{})

	err := svc.Validate(validRequest())
	if !errors.Is(err, domain.ErrNoKeys) {
		t.Fatalf("expected ErrNoKeys, got %v", err)
	}
}

func TestRelay_InvalidRequestMakesNoAttempts(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(&fakeSelector{keys: []domain.APIKey{"sk-1"}}, client)
	sink := newFakeSink()

	err := svc.Relay(context.Background(), &domain.ChatRequest{Model: "nope"}, sink)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(client.keysUsed) != 0 {
		t.Errorf("expected zero upstream attempts, got %d", len(client.keysUsed))
	}
	if len(sink.events) != 0 {
		t.Errorf("expected no events for rejected request, got %v", sink.events)
	}
}

func TestRelay_SuccessStreamsToSink(t *testing.T) {
	keys := &fakeSelector{keys: []domain.APIKey{"sk-1", "sk-2"}}
	client := &fakeClient{outcomes: []domain.AttemptOutcome{
		successStream(deltaFrame("Hello") + deltaFrame(" there") + "data: [DONE]\n"),
	}}
	svc := newTestService(keys, client)
	sink := newFakeSink()

	if err := svc.Relay(context.Background(), validRequest(), sink); err != nil {
		t.Fatalf("Relay failed: %v", err)
	}

	if len(sink.events) != 3 {
		t.Fatalf("expected 3 events, got %d: %v", len(sink.events), sink.events)
	}
	if sink.events[0].Content != "Hello" || sink.events[1].Content != " there" {
		t.Errorf("unexpected deltas: %v", sink.events)
	}
	if !sink.events[2].Done || sink.events[2].Err != "" {
		t.Errorf("expected clean terminal event, got %+v", sink.events[2])
	}
	if keys.advances != 0 {
		t.Errorf("successful first attempt should not rotate, got %d advances", keys.advances)
	}
}

func TestRelay_EOFWithoutSentinelCompletes(t *testing.T) {
	keys := &fakeSelector{keys: []domain.APIKey{"sk-1"}}
	client := &fakeClient{outcomes: []domain.AttemptOutcome{
		successStream(deltaFrame("tail")),
	}}
	svc := newTestService(keys, client)
	sink := newFakeSink()

	if err := svc.Relay(context.Background(), validRequest(), sink); err != nil {
		t.Fatalf("Relay failed: %v", err)
	}

	if sink.terminalCount() != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", sink.terminalCount())
	}
	last := sink.events[len(sink.events)-1]
	if !last.Done || last.Err != "" {
		t.Errorf("expected implicit completion, got %+v", last)
	}
}

func TestRelay_MidStreamFailureIsTerminal(t *testing.T) {
	keys := &fakeSelector{keys: []domain.APIKey{"sk-1", "sk-2"}}
	client := &fakeClient{outcomes: []domain.AttemptOutcome{
		{Kind: domain.OutcomeSuccess, Stream: io.NopCloser(io.MultiReader(
			strings.NewReader(deltaFrame("partial")),
			&failingReader{},
		))},
		successStream("data: [DONE]\n"), // must never be reached
	}}
	svc := newTestService(keys, client)
	sink := newFakeSink()

	if err := svc.Relay(context.Background(), validRequest(), sink); err != nil {
		t.Fatalf("Relay failed: %v", err)
	}

	if len(client.keysUsed) != 1 {
		t.Fatalf("mid-stream failure must not retry, got %d attempts", len(client.keysUsed))
	}
	last := sink.events[len(sink.events)-1]
	if last.Err != "Streaming error" {
		t.Errorf("expected streaming error event, got %+v", last)
	}
	if sink.terminalCount() != 1 {
		t.Errorf("expected exactly one terminal event, got %d", sink.terminalCount())
	}
}

type failingReader struct{}

func (*failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestRelay_ClientDisconnectStopsSilently(t *testing.T) {
	keys := &fakeSelector{keys: []domain.APIKey{"sk-1"}}
	client := &fakeClient{outcomes: []domain.AttemptOutcome{
		successStream(deltaFrame("a") + deltaFrame("b") + "data: [DONE]\n"),
	}}
	svc := newTestService(keys, client)
	sink := newFakeSink()
	sink.failAfter = 1

	err := svc.Relay(context.Background(), validRequest(), sink)
	if err == nil {
		t.Fatal("expected sink error surfaced")
	}
	if len(sink.events) != 1 {
		t.Errorf("expected streaming to stop at sink failure, got %v", sink.events)
	}
}

func TestRelay_CancelledContextBeforeAttempt(t *testing.T) {
	keys := &fakeSelector{keys: []domain.APIKey{"sk-1"}}
	client := &fakeClient{}
	svc := newTestService(keys, client)
	sink := newFakeSink()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Relay(ctx, validRequest(), sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if len(client.keysUsed) != 0 {
		t.Errorf("expected no attempts after cancellation, got %d", len(client.keysUsed))
	}
}
