package output

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

// ServiceName is the registry key of the console recorder.
const ServiceName = "console"

// Log is one recorded console line.
type Log struct {
	Type    SemanticType
	Message string
}

// String returns the message text.
func (l Log) String() string {
	return l.Message
}

// Recorder echoes console output to a writer and records every line until the
// next Reset. Recorded messages never contain ANSI sequences.
//
// Recorder is also an io.Writer so interpreted programs can print through it;
// partial writes are buffered until a newline arrives.
type Recorder struct {
	mu      sync.Mutex
	writer  io.Writer
	styles  StyleProvider
	logs    []Log
	pending bytes.Buffer
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithWriter sets the echo destination. Default is os.Stdout.
func WithWriter(w io.Writer) RecorderOption {
	return func(r *Recorder) {
		if w != nil {
			r.writer = w
		}
	}
}

// WithStyles sets the style provider used for echoed lines.
func WithStyles(provider StyleProvider) RecorderOption {
	return func(r *Recorder) {
		if provider != nil && provider.IsAvailable() {
			r.styles = provider
		}
	}
}

// Silent disables echoing; lines are only recorded.
func Silent() RecorderOption {
	return func(r *Recorder) {
		r.writer = io.Discard
	}
}

// NewRecorder creates a Recorder. Without WithStyles it picks the lipgloss theme
// when the writer supports colors and plain text otherwise.
func NewRecorder(options ...RecorderOption) *Recorder {
	r := &Recorder{writer: os.Stdout}
	for _, opt := range options {
		opt(r)
	}
	if r.styles == nil {
		theme := NewThemeStyleProvider(r.writer)
		if theme.IsAvailable() {
			r.styles = theme
		} else {
			r.styles = NewPlainStyleProvider()
		}
	}
	return r
}

// Name implements services.Service.
func (r *Recorder) Name() string {
	return ServiceName
}

// Initialize implements services.Service.
func (r *Recorder) Initialize() error {
	return nil
}

// Reset discards recorded lines and any unterminated partial line.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = nil
	r.pending.Reset()
}

// Logs returns the lines recorded since the last Reset, flushing a pending
// partial line first.
func (r *Recorder) Logs() []Log {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushPending()

	logs := make([]Log, len(r.logs))
	copy(logs, r.logs)
	return logs
}

// Lines returns the recorded messages only.
func (r *Recorder) Lines() []string {
	logs := r.Logs()
	lines := make([]string, len(logs))
	for i, l := range logs {
		lines[i] = l.Message
	}
	return lines
}

// Info records an informational line.
func (r *Recorder) Info(format string, args ...interface{}) {
	r.record(SemanticInfo, fmt.Sprintf(format, args...))
}

// Success records a result line.
func (r *Recorder) Success(format string, args ...interface{}) {
	r.record(SemanticSuccess, fmt.Sprintf(format, args...))
}

// Warning records a warning line.
func (r *Recorder) Warning(format string, args ...interface{}) {
	r.record(SemanticWarning, fmt.Sprintf(format, args...))
}

// Error records an error line.
func (r *Recorder) Error(format string, args ...interface{}) {
	r.record(SemanticError, fmt.Sprintf(format, args...))
}

// Println records a plain line.
func (r *Recorder) Println(text string) {
	r.record(SemanticPlain, text)
}

// Write implements io.Writer. Complete lines are recorded as plain output.
func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending.Write(p)
	for {
		data := r.pending.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := string(data[:idx])
		r.pending.Next(idx + 1)
		r.recordLocked(SemanticPlain, line)
	}
	return len(p), nil
}

func (r *Recorder) flushPending() {
	if r.pending.Len() == 0 {
		return
	}
	line := r.pending.String()
	r.pending.Reset()
	r.recordLocked(SemanticPlain, line)
}

func (r *Recorder) record(semantic SemanticType, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushPending()
	for _, line := range strings.Split(strings.TrimSuffix(message, "\n"), "\n") {
		r.recordLocked(semantic, line)
	}
}

func (r *Recorder) recordLocked(semantic SemanticType, line string) {
	r.logs = append(r.logs, Log{Type: semantic, Message: ansi.Strip(line)})
	_, _ = fmt.Fprintln(r.writer, r.styles.GetStyle(semantic).Render(line))
}
