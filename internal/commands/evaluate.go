package commands

import (
	"fmt"
	"strings"

	"gorepl/internal/completion"
)

// InvalidCommand catches unknown console commands. It must follow every real
// command in the rule chain.
type InvalidCommand struct {
	base
}

// NewInvalidCommand creates the catch-all for inputs starting with ':'.
func NewInvalidCommand() *InvalidCommand {
	return &InvalidCommand{base: base{name: "invalid-command"}}
}

// Matches accepts any input starting with a colon.
func (c *InvalidCommand) Matches(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), ":")
}

// Execute reports the unknown command.
func (c *InvalidCommand) Execute(input string) error {
	name := strings.Fields(strings.TrimSpace(input))[0]
	return fmt.Errorf("invalid command %s, type :help for the list of commands", name)
}

// Completer returns nil; the catch-all completes nothing.
func (c *InvalidCommand) Completer() completion.Provider {
	return nil
}

// EvaluateCommand evaluates any other non-blank input as Go.
type EvaluateCommand struct {
	base
	evaluator Evaluator
	console   Console
}

// NewEvaluateCommand creates the expression evaluation rule.
func NewEvaluateCommand(console Console, ev Evaluator) *EvaluateCommand {
	return &EvaluateCommand{
		base:      base{name: "evaluate"},
		evaluator: ev,
		console:   console,
	}
}

// Matches accepts any non-blank input.
func (c *EvaluateCommand) Matches(input string) bool {
	return strings.TrimSpace(input) != ""
}

// Execute evaluates input and prints the result.
func (c *EvaluateCommand) Execute(input string) error {
	evaluation, err := c.evaluator.Evaluate(input)
	if err != nil {
		return err
	}
	printEvaluation(c.console, evaluation)
	return nil
}

// Completer returns nil; expression completion comes from the other providers.
func (c *EvaluateCommand) Completer() completion.Provider {
	return nil
}
