package relay

import (
	"fmt"
	"testing"

	"github.com/caravan-llm/caravan/internal/core/domain"
)

func deltaFrame(content string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n", content)
}

func collect(r *Reframer, chunks ...string) []domain.StreamEvent {
	var events []domain.StreamEvent
	for _, chunk := range chunks {
		events = append(events, r.Feed([]byte(chunk))...)
	}
	return events
}

func TestReframer_SingleCompleteFrame(t *testing.T) {
	r := NewReframer()

	events := collect(r, deltaFrame("Hello"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Content != "Hello" || events[0].Done {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestReframer_FrameSplitAcrossEveryOffset(t *testing.T) {
	// A frame must decode identically no matter where the transport splits it
	stream := deltaFrame("Hel") + deltaFrame("lo ") + deltaFrame("world") + "data: [DONE]\n"

	for offset := 1; offset < len(stream)-1; offset++ {
		r := NewReframer()
		events := collect(r, stream[:offset], stream[offset:])

		if len(events) != 4 {
			t.Fatalf("offset %d: expected 4 events, got %d", offset, len(events))
		}

		var text string
		for _, event := range events[:3] {
			if event.Done {
				t.Fatalf("offset %d: premature terminal event", offset)
			}
			text += event.Content
		}
		if text != "Hello world" {
			t.Errorf("offset %d: expected %q, got %q", offset, "Hello world", text)
		}
		if !events[3].Done {
			t.Errorf("offset %d: expected terminal event last", offset)
		}
	}
}

func TestReframer_ByteAtATime(t *testing.T) {
	stream := deltaFrame("drip") + "data: [DONE]\n"

	r := NewReframer()
	var events []domain.StreamEvent
	for i := 0; i < len(stream); i++ {
		events = append(events, r.Feed([]byte{stream[i]})...)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Content != "drip" {
		t.Errorf("expected content 'drip', got %q", events[0].Content)
	}
	if !events[1].Done {
		t.Error("expected terminal event")
	}
}

func TestReframer_DoneSentinelStopsProcessing(t *testing.T) {
	r := NewReframer()

	events := collect(r, "data: [DONE]\n"+deltaFrame("after"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].Done {
		t.Error("expected terminal event")
	}
	if !r.Finished() {
		t.Error("expected reframer finished after sentinel")
	}
	if got := r.Feed([]byte(deltaFrame("more"))); got != nil {
		t.Errorf("expected no events after terminal, got %v", got)
	}
}

func TestReframer_FinishEmitsImplicitCompletion(t *testing.T) {
	r := NewReframer()
	collect(r, deltaFrame("partial stream"))

	events := r.Finish()
	if len(events) != 1 || !events[0].Done || events[0].Err != "" {
		t.Fatalf("expected single done event, got %v", events)
	}
	if got := r.Finish(); got != nil {
		t.Errorf("expected Finish idempotent, got %v", got)
	}
}

func TestReframer_FinishAfterSentinelEmitsNothing(t *testing.T) {
	r := NewReframer()
	collect(r, "data: [DONE]\n")

	if got := r.Finish(); got != nil {
		t.Errorf("expected no duplicate terminal event, got %v", got)
	}
}

func TestReframer_MalformedJSONSkipped(t *testing.T) {
	r := NewReframer()

	events := collect(r,
		"data: {not json at all\n",
		deltaFrame("survivor"),
	)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Content != "survivor" {
		t.Errorf("expected good frame to survive, got %+v", events[0])
	}
}

func TestReframer_NonDataLinesIgnored(t *testing.T) {
	r := NewReframer()

	events := collect(r,
		": keepalive comment\n",
		"event: something\n",
		"\n",
		deltaFrame("x"),
	)
	if len(events) != 1 || events[0].Content != "x" {
		t.Fatalf("expected only the data frame, got %v", events)
	}
}

func TestReframer_EmptyDeltasSkipped(t *testing.T) {
	r := NewReframer()

	events := collect(r,
		"data: {\"choices\":[{\"delta\":{}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n",
		"data: {\"choices\":[]}\n",
		deltaFrame("real"),
	)
	if len(events) != 1 || events[0].Content != "real" {
		t.Fatalf("expected empty deltas skipped, got %v", events)
	}
}

func TestReframer_CarriageReturnTolerated(t *testing.T) {
	r := NewReframer()

	events := collect(r, "data: [DONE]\r\n")
	if len(events) != 1 || !events[0].Done {
		t.Fatalf("expected CRLF-terminated sentinel to parse, got %v", events)
	}
}

func TestReframer_TrailingFragmentDroppedAtEOF(t *testing.T) {
	r := NewReframer()

	// An unterminated final line never becomes an event
	events := collect(r, deltaFrame("kept")+"data: {\"choices\":[{\"delta\":{\"content\":\"lost\"")
	if len(events) != 1 || events[0].Content != "kept" {
		t.Fatalf("expected only terminated frame, got %v", events)
	}

	final := r.Finish()
	if len(final) != 1 || !final[0].Done {
		t.Fatalf("expected implicit completion only, got %v", final)
	}
}
