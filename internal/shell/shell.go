// Package shell runs the interactive read-eval-print loop on top of a session.
package shell

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/chzyer/readline"

	"gorepl/internal/dispatch"
	"gorepl/internal/expression"
	"gorepl/internal/logger"
)

// DefaultContinuationPrompt is shown while a multi-line input is pending.
const DefaultContinuationPrompt = "... "

// Session is the part of the session façade the loop drives.
type Session interface {
	Execute(input string) (dispatch.Result, error)
	QuitRequested() <-chan struct{}
}

// LineReader reads one line per call. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// historySaver is implemented by readers that keep their own recall history.
type historySaver interface {
	SaveHistory(content string) error
}

// Shell reads input lines, joins incomplete Go source across lines and hands
// every complete input to the session.
type Shell struct {
	session      Session
	reader       LineReader
	prompt       string
	continuation string
	log          *log.Logger
}

// Option configures a Shell.
type Option func(*Shell)

// WithContinuationPrompt sets the prompt shown for continuation lines.
func WithContinuationPrompt(prompt string) Option {
	return func(sh *Shell) {
		sh.continuation = prompt
	}
}

// New creates a shell reading from reader.
func New(s Session, reader LineReader, prompt string, opts ...Option) *Shell {
	sh := &Shell{
		session:      s,
		reader:       reader,
		prompt:       prompt,
		continuation: DefaultContinuationPrompt,
		log:          logger.NewStyledLogger("Shell"),
	}
	for _, opt := range opts {
		opt(sh)
	}
	return sh
}

// Run loops until :quit, end of input, an interrupt on an empty line, or ctx
// is cancelled. An interrupt with pending continuation lines drops them.
func (sh *Shell) Run(ctx context.Context) error {
	var pending []string
	sh.reader.SetPrompt(sh.prompt)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sh.session.QuitRequested():
			return nil
		default:
		}

		line, err := sh.reader.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if len(pending) == 0 {
				sh.log.Debug("Interrupted")
				return nil
			}
			pending = nil
			sh.reader.SetPrompt(sh.prompt)
			continue
		case errors.Is(err, io.EOF):
			sh.log.Debug("End of input")
			return nil
		case err != nil:
			return err
		}

		pending = append(pending, line)
		input := strings.Join(pending, "\n")
		if needsMore(input) {
			sh.reader.SetPrompt(sh.continuation)
			continue
		}

		pending = nil
		sh.reader.SetPrompt(sh.prompt)
		if strings.TrimSpace(input) == "" {
			continue
		}

		if saver, ok := sh.reader.(historySaver); ok {
			if err := saver.SaveHistory(input); err != nil {
				sh.log.Debug("Failed to save readline history", "error", err)
			}
		}
		if _, err := sh.session.Execute(input); err != nil {
			sh.log.Debug("Input failed", "input", input, "error", err)
		}
	}
}

// needsMore reports whether input is Go source that ended early.
func needsMore(input string) bool {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || strings.HasPrefix(trimmed, ":") {
		return false
	}
	_, err := expression.Parse(trimmed)
	return expression.IsIncomplete(err)
}

// ReadlineConfig configures the terminal line reader.
type ReadlineConfig struct {
	Prompt    string
	Completer readline.AutoCompleter
	// History seeds the up-arrow recall list, oldest first.
	History []string
	Stdin   io.ReadCloser
	Stdout  io.Writer
}

// NewReadline creates a terminal reader with completion and command
// highlighting.
func NewReadline(cfg ReadlineConfig) (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 cfg.Prompt,
		AutoComplete:           cfg.Completer,
		InterruptPrompt:        "^C",
		EOFPrompt:              ":quit",
		HistorySearchFold:      true,
		DisableAutoSaveHistory: true,
		Painter:                CommandPainter{},
		Stdin:                  cfg.Stdin,
		Stdout:                 cfg.Stdout,
	})
	if err != nil {
		return nil, err
	}
	for _, item := range cfg.History {
		if err := rl.SaveHistory(item); err != nil {
			_ = rl.Close()
			return nil, err
		}
	}
	return rl, nil
}

var commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)

// CommandPainter highlights the leading :command word of a line.
type CommandPainter struct{}

// Paint implements readline.Painter.
func (CommandPainter) Paint(line []rune, _ int) []rune {
	if len(line) < 2 || line[0] != ':' {
		return line
	}
	end := len(line)
	for i, r := range line {
		if r == ' ' || r == '\t' {
			end = i
			break
		}
	}
	painted := commandStyle.Render(string(line[:end])) + string(line[end:])
	return []rune(painted)
}
