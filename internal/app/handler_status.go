package app

import (
	"encoding/json"
	"net/http"

	"github.com/caravan-llm/caravan/pkg/format"
)

type StatusResponse struct {
	TotalRequests      int64  `json:"total_requests"`
	RejectedRequests   int64  `json:"rejected_requests"`
	Attempts           int64  `json:"attempts"`
	RateLimitedKeys    int64  `json:"rate_limited_keys"`
	UnauthorizedKeys   int64  `json:"unauthorized_keys"`
	Timeouts           int64  `json:"timeouts"`
	TransportErrors    int64  `json:"transport_errors"`
	CompletedStreams   int64  `json:"completed_streams"`
	InterruptedStreams int64  `json:"interrupted_streams"`
	ExhaustedRequests  int64  `json:"exhausted_requests"`
	EventsForwarded    int64  `json:"events_forwarded"`
	BytesStreamed      int64  `json:"bytes_streamed"`
	BytesStreamedHuman string `json:"bytes_streamed_human"`
	KeyPoolSize        int    `json:"key_pool_size"`
}

// statusHandler reports relay statistics
func (a *Application) statusHandler(w http.ResponseWriter, r *http.Request) {
	s := a.statsService.GetRelayStats()

	response := StatusResponse{
		TotalRequests:      s.TotalRequests,
		RejectedRequests:   s.RejectedRequests,
		Attempts:           s.Attempts,
		RateLimitedKeys:    s.RateLimitedKeys,
		UnauthorizedKeys:   s.UnauthorizedKeys,
		Timeouts:           s.Timeouts,
		TransportErrors:    s.TransportErrors,
		CompletedStreams:   s.CompletedStreams,
		InterruptedStreams: s.InterruptedStreams,
		ExhaustedRequests:  s.ExhaustedRequests,
		EventsForwarded:    s.EventsForwarded,
		BytesStreamed:      s.BytesStreamed,
		BytesStreamedHuman: format.Bytes(uint64(s.BytesStreamed)),
		KeyPoolSize:        a.keyPool.Size(),
	}

	w.Header().Set(ContentTypeHeader, ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
