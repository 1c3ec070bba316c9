// Package commands provides the console commands of gorepl.
//
// Each command supplies a predicate (Matches) and a handler (Execute); the
// session turns the ordered command set into dispatch rules. Commands never look
// collaborators up themselves: everything they use arrives through Deps.
package commands

import (
	"io"
	"strings"

	"gorepl/internal/completion"
	"gorepl/internal/evaluator"
	"gorepl/internal/expression"
	"gorepl/internal/history"
)

// Command is one console command.
type Command interface {
	Name() string
	Description() string
	Usage() string
	// Matches must be free of side effects.
	Matches(input string) bool
	Execute(input string) error
}

// Completing is implemented by commands that offer completion.
type Completing interface {
	Completer() completion.Provider
}

// Console receives user-visible output.
type Console interface {
	Info(format string, args ...interface{})
	Success(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Println(text string)
}

// Evaluator is the evaluation surface commands need.
type Evaluator interface {
	Evaluate(text string) (evaluator.Evaluation, error)
	ParseExpression(text string) (expression.Expression, error)
	TypeOf(text string) (string, error)
	Reset() error
	Replay() ([]evaluator.Evaluation, error)
	Results() []evaluator.Result
	Types() []string
	Functions() []string
	Imports() []string
	LastSource() string
}

// History is the history surface commands need.
type History interface {
	Add(text string) bool
	Get(number int) (string, bool)
	Last() (string, bool)
	Tail(n int) []history.Entry
	Search(term string) []history.Entry
}

// Markdown renders markdown for the terminal.
type Markdown interface {
	Render(markdown string) (string, error)
}

// Deps are the collaborators of the default command set.
type Deps struct {
	Console   Console
	Evaluator Evaluator
	History   History
	Packages  *completion.PackageIndex
	Markdown  Markdown
	// Screen is the terminal :cls clears.
	Screen io.Writer
	// Invoke runs input through the rule chain inside the current dispatch.
	Invoke func(input string) error
	// Quit asks the front end to stop reading input.
	Quit func()
}

// base holds the static parts of a command.
type base struct {
	name        string
	usage       string
	description string
}

func (b base) Name() string        { return b.name }
func (b base) Usage() string       { return b.usage }
func (b base) Description() string { return b.description }

// Matches accepts the command name alone or followed by arguments.
func (b base) Matches(input string) bool {
	trimmed := strings.TrimSpace(input)
	return trimmed == b.name || strings.HasPrefix(trimmed, b.name+" ")
}

// argument returns the text after the command name.
func (b base) argument(input string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), b.name))
}

func (b base) Completer() completion.Provider {
	return completion.Command(b.name, nil)
}
