package domain

import "strings"

// APIKey is an opaque upstream credential. Keys are loaded once at startup
// and never logged in full.
type APIKey string

func (k APIKey) IsBlank() bool {
	return strings.TrimSpace(string(k)) == ""
}

// Mask returns a loggable form of the key, at most the last four characters.
func (k APIKey) Mask() string {
	trimmed := strings.TrimSpace(string(k))
	if trimmed == "" {
		return "none"
	}
	if len(trimmed) <= 4 {
		return "..." + trimmed
	}
	return "..." + trimmed[len(trimmed)-4:]
}

// ParseAPIKeys splits a configured credential value into an ordered key
// sequence. Supports a single key or a comma-separated list; whitespace
// around entries is trimmed and empty entries are dropped. Duplicates are
// deliberately kept.
func ParseAPIKeys(raw string) []APIKey {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	keys := make([]APIKey, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keys = append(keys, APIKey(trimmed))
		}
	}
	return keys
}
