package gke

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSystemFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := New(Config{Mode: ModeSystem})
	require.NoError(t, err)
	return f
}

func TestSystem_TrimsLongMessage(t *testing.T) {
	f := newSystemFilter(t)
	msg := strings.Repeat("a", 100_000) + strings.Repeat("b", 50_000)

	out := f.Transform("k8s.apiserver", time.Now(), map[string]any{"message": msg}).(map[string]any)
	got := out["message"].(string)

	assert.True(t, strings.HasPrefix(got, "[Trimmed]"))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "[Trimmed]"+msg[:100_001]+"...", got)
	assert.Len(t, got, len("[Trimmed]")+100_001+len("..."))
}

func TestSystem_TrimBoundary(t *testing.T) {
	f := newSystemFilter(t)

	exact := strings.Repeat("x", 100_000)
	out := f.Transform("t", time.Now(), map[string]any{"message": exact}).(map[string]any)
	assert.Equal(t, exact, out["message"], "100000 characters is within the limit")

	over := strings.Repeat("x", 100_001)
	out = f.Transform("t", time.Now(), map[string]any{"message": over}).(map[string]any)
	assert.Equal(t, "[Trimmed]"+over+"...", out["message"])
}

func TestSystem_TrimCountsCharactersNotBytes(t *testing.T) {
	// 60000 two-byte runes are 120000 bytes but only 60000 characters.
	short := strings.Repeat("é", 60_000)
	got, cut := trimMessage(short)
	assert.False(t, cut)
	assert.Equal(t, short, got)

	long := strings.Repeat("é", 100_005)
	got, cut = trimMessage(long)
	require.True(t, cut)
	assert.Equal(t, "[Trimmed]"+strings.Repeat("é", 100_001)+"...", got)
}

func TestSystem_NonStringMessageUntouched(t *testing.T) {
	f := newSystemFilter(t)
	rec := map[string]any{"message": []any{"a", "b"}}
	out := f.Transform("t", time.Now(), rec).(map[string]any)
	assert.Equal(t, []any{"a", "b"}, out["message"])
}

func TestSystem_SourceLocation(t *testing.T) {
	tests := []struct {
		source any
		want   any
	}{
		{"handlers.go:131", map[string]any{"file": "handlers.go", "line": "131"}},
		{"a.go:1:2", map[string]any{"file": "a.go", "line": "1:2"}},
		{"a.go:", map[string]any{"file": "a.go", "line": ""}},
		{"noColonHere", nil},
		{"", nil},
		{42, nil},
	}
	for _, tt := range tests {
		f := newSystemFilter(t)
		out := f.Transform("t", time.Now(), map[string]any{"source": tt.source}).(map[string]any)
		if tt.want == nil {
			assert.NotContains(t, out, SourceLocationKey, "source %v", tt.source)
		} else {
			assert.Equal(t, tt.want, out[SourceLocationKey], "source %v", tt.source)
		}
		assert.Equal(t, tt.source, out["source"], "source is left in place")
	}
}

func TestSystem_NoMessageNoSource(t *testing.T) {
	f := newSystemFilter(t)
	rec := map[string]any{"severity": "INFO"}
	out := f.Transform("t", time.Now(), rec).(map[string]any)
	assert.Equal(t, map[string]any{"severity": "INFO"}, out)
}
