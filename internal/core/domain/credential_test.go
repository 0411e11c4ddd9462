package domain

import "testing"

func TestParseAPIKeys(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []APIKey
	}{
		{"empty", "", nil},
		{"whitespace only", "  \t ", nil},
		{"single key", "sk-or-abc123", []APIKey{"sk-or-abc123"}},
		{"comma list", "a,b,c", []APIKey{"a", "b", "c"}},
		{"trims entries", " a , b ,c ", []APIKey{"a", "b", "c"}},
		{"drops empty entries", "a,,b,", []APIKey{"a", "b"}},
		{"keeps duplicates", "a,a", []APIKey{"a", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAPIKeys(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d keys, got %d (%v)", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("key %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestAPIKey_Mask(t *testing.T) {
	tests := []struct {
		key  APIKey
		want string
	}{
		{"", "none"},
		{"   ", "none"},
		{"ab", "...ab"},
		{"abcd", "...abcd"},
		{"sk-or-v1-abcdef123456", "...3456"},
	}

	for _, tt := range tests {
		if got := tt.key.Mask(); got != tt.want {
			t.Errorf("Mask(%q): expected %q, got %q", tt.key, tt.want, got)
		}
	}
}

func TestAPIKey_IsBlank(t *testing.T) {
	if !APIKey("").IsBlank() || !APIKey(" \t").IsBlank() {
		t.Error("expected blank detection for empty and whitespace keys")
	}
	if APIKey("sk-x").IsBlank() {
		t.Error("expected non-blank key")
	}
}
