package commands

import "fmt"

// Defaults registers the console command set in dispatch order: specific
// commands first, then the invalid-command catch-all, then evaluation.
func Defaults(d Deps) (*Registry, error) {
	registry := NewRegistry()

	commands := []Command{
		NewHelpCommand(d.Console, registry.GetAll),
		NewQuitCommand(d.Console, d.Quit),
		NewClearScreenCommand(d.Screen),
		NewListHistoryCommand(d.Console, d.History),
		NewSearchHistoryCommand(d.Console, d.History),
		NewEvaluateFromHistoryCommand(d.Console, d.History, d.Invoke),
		NewResetCommand(d.Console, d.Evaluator),
		NewReplayCommand(d.Console, d.Evaluator),
		NewEvaluateFileCommand(d.Console, d.Invoke),
		NewLoadSourceCommand(d.Console, d.Evaluator),
		NewListCommand(d.Console, d.Evaluator),
		NewShowSourceCommand(d.Console, d.Evaluator),
		NewTypeCommand(d.Console, d.Evaluator, d.Packages),
		NewCheckCommand(d.Console, d.Evaluator),
		NewDocCommand(d.Console, d.Packages, d.Markdown),
		NewInvalidCommand(),
		NewEvaluateCommand(d.Console, d.Evaluator),
	}

	for _, cmd := range commands {
		if err := registry.Register(cmd); err != nil {
			return nil, fmt.Errorf("failed to register command %s: %w", cmd.Name(), err)
		}
	}
	return registry, nil
}
