package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/caravan-llm/caravan/internal/app/middleware"
	"github.com/caravan-llm/caravan/internal/core/domain"
)

// sseSink adapts an http.ResponseWriter into the event sink the relay
// service writes to. Every event is flushed immediately; a buffered delta is
// a delta the user is not seeing.
type sseSink struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Send(event domain.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.writer, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// chatHandler runs one chat turn: decode, validate, then hand off to the
// relay service which owns retries and streaming. Client-visible errors
// before the stream opens are plain JSON; once the SSE stream has started,
// errors travel inside it.
func (a *Application) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	requestID := middleware.GetRequestID(r.Context())
	rlog := a.logger.WithRequestID(requestID)

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			rlog.Warn("Chat request body exceeded limit", "limit", maxBytesErr.Limit)
			a.writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		rlog.Warn("Chat request body is not valid JSON", "error", err)
		a.writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := a.relayService.Validate(&req); err != nil {
		var validationErr *domain.ValidationError
		switch {
		case errors.As(err, &validationErr):
			rlog.Warn("Chat request rejected", "field", validationErr.Field, "reason", validationErr.Reason)
			a.writeJSONError(w, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, domain.ErrNoKeys):
			rlog.Error("Chat request received with no API keys configured")
			a.writeJSONError(w, http.StatusInternalServerError, "API keys not configured")
		default:
			a.writeJSONError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		rlog.Error("Response writer does not support streaming")
		a.writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	rlog.InfoWithModel("Chat turn started", req.Model, "messages", len(req.Messages))

	w.Header().Set(ContentTypeHeader, ContentTypeSSE)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{writer: w, flusher: flusher}

	// A fault below must not tear the connection down without a terminal
	// event; the stream is already open, so best-effort write one and close.
	defer func() {
		if rec := recover(); rec != nil {
			rlog.Error("Panic during chat relay", "panic", rec)
			_ = sink.Send(domain.Failed("Internal server error"))
		}
	}()

	if err := a.relayService.Relay(r.Context(), &req, sink); err != nil {
		// The terminal error event has already been sent where possible;
		// nothing useful can be written to the response at this point.
		rlog.Debug("Chat turn ended with error", "error", err)
		return
	}

	rlog.Debug("Chat turn ended")
}

func (a *Application) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set(ContentTypeHeader, ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
