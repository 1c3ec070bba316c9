package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIgnore(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{":h!", true},
		{":h! 3", true},
		{"  :h!2", true},
		{":hist", false},
		{"1+1", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultIgnore(tt.input))
		})
	}
}

func TestHistory_Add(t *testing.T) {
	h := New("", 0, nil)

	assert.True(t, h.Add("x := 1"))
	assert.False(t, h.Add(":h! 1"))
	assert.False(t, h.Add(""))
	assert.True(t, h.Add("x + 1"))

	assert.Equal(t, []string{"x := 1", "x + 1"}, h.Items())
	assert.Equal(t, 2, h.Len())
}

func TestHistory_TrimsToMax(t *testing.T) {
	h := New("", 3, nil)

	for _, in := range []string{"a", "b", "c", "d", "e"} {
		h.Add(in)
	}

	assert.Equal(t, []string{"c", "d", "e"}, h.Items())
}

func TestHistory_GetAndLast(t *testing.T) {
	h := New("", 0, nil)

	_, ok := h.Last()
	assert.False(t, ok)

	h.Add("first")
	h.Add("second")

	got, ok := h.Get(1)
	require.True(t, ok)
	assert.Equal(t, "first", got)

	_, ok = h.Get(0)
	assert.False(t, ok)
	_, ok = h.Get(3)
	assert.False(t, ok)

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, "second", last)
}

func TestHistory_TailAndSearch(t *testing.T) {
	h := New("", 0, nil)
	for _, in := range []string{`import "strings"`, `strings.ToUpper("a")`, "x := 2", `strings.Repeat("b", 2)`} {
		h.Add(in)
	}

	assert.Equal(t, []Entry{
		{Number: 3, Text: "x := 2"},
		{Number: 4, Text: `strings.Repeat("b", 2)`},
	}, h.Tail(2))
	assert.Len(t, h.Tail(0), 4)
	assert.Len(t, h.Tail(10), 4)

	assert.Equal(t, []Entry{
		{Number: 2, Text: `strings.ToUpper("a")`},
		{Number: 4, Text: `strings.Repeat("b", 2)`},
	}, h.Search("strings."))
	assert.Empty(t, h.Search("nothing"))
}

func TestHistory_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.yaml")

	h := New(path, 0, nil)
	h.Add("x := 1")
	h.Add("func double(n int) int {\n\treturn n * 2\n}")
	require.NoError(t, h.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "x := 1"))

	loaded := New(path, 0, nil)
	require.NoError(t, loaded.Initialize())
	assert.Equal(t, h.Items(), loaded.Items())
}

func TestHistory_LoadMissingFile(t *testing.T) {
	h := New(filepath.Join(t.TempDir(), "missing.yaml"), 0, nil)

	assert.NoError(t, h.Load())
	assert.Empty(t, h.Items())
}

func TestHistory_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.yaml")
	require.NoError(t, os.WriteFile(path, []byte("key: [unterminated"), 0o600))

	err := New(path, 0, nil).Load()
	assert.ErrorContains(t, err, "failed to parse history")
}

func TestHistory_InMemorySaveIsNoop(t *testing.T) {
	h := New("", 0, nil)
	h.Add("1")

	assert.NoError(t, h.Save())
	assert.Equal(t, "", h.Path())
}
