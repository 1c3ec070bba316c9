package commands

import (
	"errors"
	"fmt"
	"strconv"

	"gorepl/internal/history"
)

// ListHistoryCommand prints recent history entries.
type ListHistoryCommand struct {
	base
	history History
	console Console
}

// NewListHistoryCommand creates :hist.
func NewListHistoryCommand(console Console, h History) *ListHistoryCommand {
	return &ListHistoryCommand{
		base:    base{name: ":hist", usage: ":hist [num]", description: "show history (optionally only the last num entries)"},
		history: h,
		console: console,
	}
}

// Execute prints the last n entries, or all of them without an argument.
func (c *ListHistoryCommand) Execute(input string) error {
	n := 0
	if arg := c.argument(input); arg != "" {
		parsed, err := strconv.Atoi(arg)
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid number of entries %q", arg)
		}
		n = parsed
	}

	entries := c.history.Tail(n)
	if len(entries) == 0 {
		c.console.Info("No history.")
		return nil
	}
	printEntries(c.console, entries)
	return nil
}

// SearchHistoryCommand finds history entries containing a term.
type SearchHistoryCommand struct {
	base
	history History
	console Console
}

// NewSearchHistoryCommand creates :h?.
func NewSearchHistoryCommand(console Console, h History) *SearchHistoryCommand {
	return &SearchHistoryCommand{
		base:    base{name: ":h?", usage: ":h? term", description: "search the history"},
		history: h,
		console: console,
	}
}

// Execute prints entries containing the argument.
func (c *SearchHistoryCommand) Execute(input string) error {
	term := c.argument(input)
	if term == "" {
		return errors.New("search term required")
	}

	entries := c.history.Search(term)
	if len(entries) == 0 {
		c.console.Info("No history found for term: %s", term)
		return nil
	}
	printEntries(c.console, entries)
	return nil
}

// EvaluateFromHistoryCommand runs a history entry again.
type EvaluateFromHistoryCommand struct {
	base
	history History
	console Console
	invoke  func(string) error
}

// NewEvaluateFromHistoryCommand creates :h!. The entry is added to history again
// and run through invoke.
func NewEvaluateFromHistoryCommand(console Console, h History, invoke func(string) error) *EvaluateFromHistoryCommand {
	return &EvaluateFromHistoryCommand{
		base:    base{name: ":h!", usage: ":h! [num]", description: "evaluate an expression from history (the last one by default)"},
		history: h,
		console: console,
		invoke:  invoke,
	}
}

// Execute re-runs entry num, or the latest entry.
func (c *EvaluateFromHistoryCommand) Execute(input string) error {
	var (
		entry string
		ok    bool
	)

	if arg := c.argument(input); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid history number %q", arg)
		}
		entry, ok = c.history.Get(n)
		if !ok {
			return fmt.Errorf("expression with index %d not found in history", n)
		}
	} else {
		entry, ok = c.history.Last()
		if !ok {
			return errors.New("history is empty")
		}
	}

	c.console.Info("%s", entry)
	c.history.Add(entry)
	return c.invoke(entry)
}

func printEntries(console Console, entries []history.Entry) {
	for _, e := range entries {
		console.Info("%4d  %s", e.Number, e.Text)
	}
}
