// Package history keeps the ordered list of inputs entered in a session and
// persists it between runs as a YAML sequence.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"gorepl/internal/logger"
)

// ServiceName is the registry key of the history service.
const ServiceName = "history"

// DefaultMax is the number of entries kept when no limit is configured.
const DefaultMax = 300

// Entry is a numbered history item. Numbers start at 1.
type Entry struct {
	Number int
	Text   string
}

// History is the session input history.
type History struct {
	mu     sync.RWMutex
	path   string
	max    int
	ignore func(string) bool
	items  []string
}

// DefaultIgnore skips blank inputs and history re-evaluation commands, which
// would otherwise record themselves.
func DefaultIgnore(text string) bool {
	trimmed := strings.TrimSpace(text)
	return trimmed == "" || strings.HasPrefix(trimmed, ":h!")
}

// New creates a history backed by path. An empty path keeps history in memory
// only. A nil ignore uses DefaultIgnore.
func New(path string, max int, ignore func(string) bool) *History {
	if max <= 0 {
		max = DefaultMax
	}
	if ignore == nil {
		ignore = DefaultIgnore
	}
	return &History{
		path:   path,
		max:    max,
		ignore: ignore,
	}
}

// Name implements services.Service.
func (h *History) Name() string {
	return ServiceName
}

// Initialize loads any previously saved history.
func (h *History) Initialize() error {
	return h.Load()
}

// Path returns the backing file, or "" for in-memory history.
func (h *History) Path() string {
	return h.path
}

// Load replaces the in-memory entries with the saved file content.
// A missing file is not an error.
func (h *History) Load() error {
	if h.path == "" {
		return nil
	}

	data, err := os.ReadFile(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history %s: %w", h.path, err)
	}

	var items []string
	if err := yaml.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to parse history %s: %w", h.path, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = h.trim(items)
	logger.Debug("History loaded", "path", h.path, "entries", len(h.items))
	return nil
}

// Add appends text unless the ignore predicate matches. It reports whether the
// entry was recorded.
func (h *History) Add(text string) bool {
	if h.ignore(text) {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = h.trim(append(h.items, text))
	return true
}

// Items returns a copy of all entries, oldest first.
func (h *History) Items() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	items := make([]string, len(h.items))
	copy(items, h.items)
	return items
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// Get returns the entry with the given 1-based number.
func (h *History) Get(number int) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if number < 1 || number > len(h.items) {
		return "", false
	}
	return h.items[number-1], true
}

// Last returns the newest entry.
func (h *History) Last() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.items) == 0 {
		return "", false
	}
	return h.items[len(h.items)-1], true
}

// Tail returns the newest n entries with their numbers, oldest first.
// n <= 0 returns everything.
func (h *History) Tail(n int) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	start := 0
	if n > 0 && n < len(h.items) {
		start = len(h.items) - n
	}

	entries := make([]Entry, 0, len(h.items)-start)
	for i := start; i < len(h.items); i++ {
		entries = append(entries, Entry{Number: i + 1, Text: h.items[i]})
	}
	return entries
}

// Search returns entries containing term, oldest first.
func (h *History) Search(term string) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var entries []Entry
	for i, item := range h.items {
		if strings.Contains(item, term) {
			entries = append(entries, Entry{Number: i + 1, Text: item})
		}
	}
	return entries
}

// Save writes the entries to the backing file, creating its directory.
func (h *History) Save() error {
	if h.path == "" {
		return nil
	}

	items := h.Items()
	data, err := yaml.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("failed to replace history: %w", err)
	}

	logger.Debug("History saved", "path", h.path, "entries", len(items))
	return nil
}

func (h *History) trim(items []string) []string {
	if len(items) <= h.max {
		return items
	}
	return append([]string(nil), items[len(items)-h.max:]...)
}
