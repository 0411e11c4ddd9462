package logger

import "strings"

// stripAnsiCodes removes \x1b[...m colour sequences before records hit the
// JSON file handler. A byte scan avoids pulling in regexp on the hot path.
func stripAnsiCodes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inEscape := false

	for i := 0; i < len(s); i++ {
		if !inEscape {
			if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
				inEscape = true
				i++ // skip the '['
				continue
			}
			b.WriteByte(s[i])
			continue
		}

		// inside an escape sequence; a letter terminates it
		if (s[i] >= 'A' && s[i] <= 'Z') || (s[i] >= 'a' && s[i] <= 'z') {
			inEscape = false
		}
	}

	return b.String()
}
