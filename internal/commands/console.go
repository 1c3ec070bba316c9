package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"

	"gorepl/internal/completion"
)

// HelpCommand lists the available commands.
type HelpCommand struct {
	base
	commands func() []Command
	console  Console
}

// NewHelpCommand creates :help over the commands returned by list.
func NewHelpCommand(console Console, list func() []Command) *HelpCommand {
	return &HelpCommand{
		base:     base{name: ":help", usage: ":help [command]", description: "show this help"},
		commands: list,
		console:  console,
	}
}

// Execute prints usage and description of every command with a usage line,
// or of the single command named in the argument.
func (c *HelpCommand) Execute(input string) error {
	if name := c.argument(input); name != "" {
		for _, cmd := range c.commands() {
			if cmd.Name() == name && cmd.Usage() != "" {
				c.console.Info("%s - %s", cmd.Usage(), cmd.Description())
				return nil
			}
		}
		return fmt.Errorf("unknown command %s", name)
	}

	c.console.Info("Available commands:")
	for _, cmd := range c.commands() {
		if cmd.Usage() == "" {
			continue
		}
		c.console.Info("    %-30s %s", cmd.Usage(), cmd.Description())
	}
	return nil
}

// QuitCommand ends the interactive session.
type QuitCommand struct {
	base
	quit    func()
	console Console
}

// NewQuitCommand creates :quit.
func NewQuitCommand(console Console, quit func()) *QuitCommand {
	return &QuitCommand{
		base:    base{name: ":quit", usage: ":quit", description: "quit the session"},
		quit:    quit,
		console: console,
	}
}

// Execute requests the front end to stop.
func (c *QuitCommand) Execute(_ string) error {
	c.console.Info("Terminating...")
	if c.quit != nil {
		c.quit()
	}
	return nil
}

// ClearScreenCommand clears the terminal.
type ClearScreenCommand struct {
	base
	output *termenv.Output
}

// NewClearScreenCommand creates :cls for the terminal behind screen.
func NewClearScreenCommand(screen io.Writer) *ClearScreenCommand {
	if screen == nil {
		screen = os.Stdout
	}
	return &ClearScreenCommand{
		base:   base{name: ":cls", usage: ":cls", description: "clear the screen"},
		output: termenv.NewOutput(screen),
	}
}

// Execute clears the screen and moves the cursor home.
func (c *ClearScreenCommand) Execute(_ string) error {
	c.output.ClearScreen()
	return nil
}

// Completer completes command names after :help.
func (c *HelpCommand) Completer() completion.Provider {
	return completion.Command(c.name, func() []string {
		var names []string
		for _, cmd := range c.commands() {
			if cmd.Usage() != "" {
				names = append(names, cmd.Name())
			}
		}
		return names
	})
}
