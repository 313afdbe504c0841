package gke

import (
	"strings"
	"unicode/utf8"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/telemetry"
)

// Message limits, in characters.
const (
	maxMessageChars  = 100000
	trimmedKeepChars = maxMessageChars + 1
	trimmedPrefix    = "[Trimmed]"
	trimmedSuffix    = "..."
)

func (f *Filter) system(r map[string]any) map[string]any {
	if msg, ok := r["message"].(string); ok {
		if trimmed, cut := trimMessage(msg); cut {
			r["message"] = trimmed
			telemetry.MessagesTrimmed.Inc()
		}
	}

	// glog lines carry "source":"handlers.go:131"; the output wants it as a
	// structured location.
	if src, ok := r["source"].(string); ok {
		if loc, ok := parseSourceLocation(src); ok {
			r[SourceLocationKey] = map[string]any{"file": loc.File, "line": loc.Line}
		}
	}
	return r
}

// trimMessage reports whether msg is longer than maxMessageChars characters
// and, if so, returns the trimmed replacement.
func trimMessage(msg string) (string, bool) {
	if len(msg) <= maxMessageChars || utf8.RuneCountInString(msg) <= maxMessageChars {
		return msg, false
	}
	end := len(msg)
	n := 0
	for i := range msg {
		if n == trimmedKeepChars {
			end = i
			break
		}
		n++
	}
	var b strings.Builder
	b.Grow(len(trimmedPrefix) + end + len(trimmedSuffix))
	b.WriteString(trimmedPrefix)
	b.WriteString(msg[:end])
	b.WriteString(trimmedSuffix)
	return b.String(), true
}

type sourceLocation struct {
	File string
	Line string
}

// parseSourceLocation splits "file:line" on the first colon. The line is
// kept as text.
func parseSourceLocation(src string) (sourceLocation, bool) {
	parts := strings.SplitN(src, ":", 2)
	if len(parts) != 2 {
		return sourceLocation{}, false
	}
	return sourceLocation{File: parts[0], Line: parts[1]}, true
}
