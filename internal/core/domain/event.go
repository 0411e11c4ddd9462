package domain

import "encoding/json"

// StreamEvent is one frame of the client-facing event protocol. A stream
// carries zero or more deltas followed by exactly one terminal event.
type StreamEvent struct {
	Content string
	Err     string
	Done    bool
}

func Delta(content string) StreamEvent {
	return StreamEvent{Content: content}
}

func Completed() StreamEvent {
	return StreamEvent{Done: true}
}

func Failed(message string) StreamEvent {
	return StreamEvent{Err: message}
}

// Terminal reports whether this event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Done || e.Err != ""
}

// MarshalJSON emits the wire shapes the browser client consumes:
// {"content":"...","done":false}, {"content":"","done":true} or {"error":"..."}.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	if e.Err != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{e.Err})
	}
	return json.Marshal(struct {
		Content string `json:"content"`
		Done    bool   `json:"done"`
	}{e.Content, e.Done})
}
