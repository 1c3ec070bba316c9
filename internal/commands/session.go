package commands

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"strings"

	"gorepl/internal/evaluator"
	"gorepl/internal/expression"
)

// ResetCommand drops every evaluation of the session.
type ResetCommand struct {
	base
	evaluator Evaluator
	console   Console
}

// NewResetCommand creates :reset.
func NewResetCommand(console Console, ev Evaluator) *ResetCommand {
	return &ResetCommand{
		base:      base{name: ":reset", usage: ":reset", description: "reset the session, keeping configured results"},
		evaluator: ev,
		console:   console,
	}
}

// Execute resets the evaluator.
func (c *ResetCommand) Execute(_ string) error {
	if err := c.evaluator.Reset(); err != nil {
		return err
	}
	c.console.Info("Session reset")
	return nil
}

// ReplayCommand resets the session and evaluates every expression again.
type ReplayCommand struct {
	base
	evaluator Evaluator
	console   Console
}

// NewReplayCommand creates :replay.
func NewReplayCommand(console Console, ev Evaluator) *ReplayCommand {
	return &ReplayCommand{
		base:      base{name: ":replay", usage: ":replay", description: "replay all evaluations"},
		evaluator: ev,
		console:   console,
	}
}

// Execute replays and prints each evaluation.
func (c *ReplayCommand) Execute(_ string) error {
	evaluations, err := c.evaluator.Replay()
	for _, evaluation := range evaluations {
		printEvaluation(c.console, evaluation)
	}
	return err
}

// EvaluateFileCommand runs the contents of a file through the rule chain,
// one complete Go statement or declaration at a time.
type EvaluateFileCommand struct {
	base
	console Console
	invoke  func(string) error
}

// NewEvaluateFileCommand creates :eval.
func NewEvaluateFileCommand(console Console, invoke func(string) error) *EvaluateFileCommand {
	return &EvaluateFileCommand{
		base:    base{name: ":eval", usage: ":eval file", description: "evaluate each expression of a file"},
		console: console,
		invoke:  invoke,
	}
}

// Execute evaluates every chunk of the file. A failing chunk is reported and
// the rest still run.
func (c *EvaluateFileCommand) Execute(input string) error {
	path := c.argument(input)
	if path == "" {
		return errors.New("file path required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	chunks, err := SplitSource(string(data))
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	for _, chunk := range chunks {
		if err := c.invoke(chunk); err != nil {
			errs = append(errs, err)
		}
	}
	c.console.Info("Evaluated %d expressions from %s", len(chunks), path)
	return errors.Join(errs...)
}

// SplitSource cuts text into inputs the way the shell reads them: lines are
// joined while the accumulated text is incomplete Go. Text left incomplete at
// the end is returned as an error.
func SplitSource(text string) ([]string, error) {
	var (
		chunks  []string
		pending []string
	)
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); len(pending) == 0 && (trimmed == "" || strings.HasPrefix(trimmed, "//")) {
			continue
		}
		pending = append(pending, line)

		joined := strings.Join(pending, "\n")
		if _, err := expression.Parse(joined); expression.IsIncomplete(err) {
			continue
		}
		chunks = append(chunks, strings.TrimSpace(joined))
		pending = nil
	}

	if len(pending) > 0 {
		return chunks, fmt.Errorf("incomplete input at end of file: %s", strings.TrimSpace(strings.Join(pending, "\n")))
	}
	return chunks, nil
}

// LoadSourceCommand evaluates the top-level declarations of a Go source file.
type LoadSourceCommand struct {
	base
	evaluator Evaluator
	console   Console
}

// NewLoadSourceCommand creates :load.
func NewLoadSourceCommand(console Console, ev Evaluator) *LoadSourceCommand {
	return &LoadSourceCommand{
		base:      base{name: ":load", usage: ":load file", description: "load declarations from a Go source file"},
		evaluator: ev,
		console:   console,
	}
}

// Execute parses the file and evaluates its declarations in source order; the
// package clause is ignored.
func (c *LoadSourceCommand) Execute(input string) error {
	path := c.argument(input)
	if path == "" {
		return errors.New("file path required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, data, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var errs []error
	for _, decl := range file.Decls {
		src := string(data[fset.Position(declStart(decl)).Offset:fset.Position(decl.End()).Offset])
		evaluation, err := c.evaluator.Evaluate(src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.console.Info("Loaded %s %s", evaluation.Expression.Kind, strings.Join(evaluation.Expression.Names, ", "))
	}
	return errors.Join(errs...)
}

// declStart skips the doc comment of a declaration.
func declStart(decl ast.Decl) token.Pos {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return d.Type.Func
	case *ast.GenDecl:
		return d.TokPos
	}
	return decl.Pos()
}

func printEvaluation(console Console, evaluation evaluator.Evaluation) {
	if len(evaluation.Results) > 0 {
		for _, result := range evaluation.Results {
			console.Success("%s", result.String())
		}
		return
	}
	switch evaluation.Expression.Kind {
	case expression.Import:
		console.Info("Imported %s", strings.Join(evaluation.Expression.Names, ", "))
	case expression.Type:
		console.Info("Defined type %s", strings.Join(evaluation.Expression.Names, ", "))
	case expression.Function:
		console.Info("Defined function %s", strings.Join(evaluation.Expression.Names, ", "))
	}
}
