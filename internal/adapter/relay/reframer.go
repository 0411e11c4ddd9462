package relay

import (
	"encoding/json"
	"strings"

	"github.com/caravan-llm/caravan/internal/core/domain"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// Reframer reassembles the upstream newline-delimited "data: ..." frames
// from arbitrary transport chunks and re-emits them as outbound stream
// events. Chunk boundaries carry no meaning: a frame may arrive split across
// any number of reads, so the trailing incomplete line is buffered until the
// next chunk completes it.
type Reframer struct {
	remainder string
	finished  bool
}

func NewReframer() *Reframer {
	return &Reframer{}
}

// upstreamChunk is the slice of the upstream payload the relay cares about.
type upstreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Feed consumes one transport chunk and returns the events completed by it,
// in upstream order. Once a terminal event has been produced all further
// input is ignored.
func (r *Reframer) Feed(chunk []byte) []domain.StreamEvent {
	if r.finished {
		return nil
	}

	data := r.remainder + string(chunk)
	lines := strings.Split(data, "\n")
	r.remainder = lines[len(lines)-1]

	var events []domain.StreamEvent
	for _, line := range lines[:len(lines)-1] {
		event, ok := r.processLine(line)
		if !ok {
			continue
		}
		events = append(events, event)
		if event.Terminal() {
			r.finished = true
			break
		}
	}
	return events
}

// Finish signals transport EOF. An upstream that closes without sending the
// [DONE] sentinel still completes the turn.
func (r *Reframer) Finish() []domain.StreamEvent {
	if r.finished {
		return nil
	}
	r.finished = true
	return []domain.StreamEvent{domain.Completed()}
}

func (r *Reframer) Finished() bool {
	return r.finished
}

func (r *Reframer) processLine(line string) (domain.StreamEvent, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return domain.StreamEvent{}, false
	}

	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == "" {
		return domain.StreamEvent{}, false
	}

	if payload == doneSentinel {
		return domain.Completed(), true
	}

	var chunk upstreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		// Truncated JSON is an expected artefact of chunk splitting, skip quietly
		return domain.StreamEvent{}, false
	}

	if len(chunk.Choices) == 0 {
		return domain.StreamEvent{}, false
	}

	content := chunk.Choices[0].Delta.Content
	if content == "" {
		return domain.StreamEvent{}, false
	}
	return domain.Delta(content), true
}
