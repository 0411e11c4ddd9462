package domain

// Message is a single conversation turn supplied by the caller.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the per-turn payload from the UI. The relay validates shape
// and the model allow-list; it does not judge the semantic validity of roles.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}
