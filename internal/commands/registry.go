package commands

import (
	"fmt"
	"sync"

	"gorepl/internal/completion"
	"gorepl/internal/dispatch"
)

// Registry keeps commands in registration order. The order is the dispatch
// order, so specific commands must be registered before generic ones.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	order    []string
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// Register appends a command. Returns an error if the command name is empty or
// already registered.
func (r *Registry) Register(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cmd.Name() == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if _, exists := r.commands[cmd.Name()]; exists {
		return fmt.Errorf("command %s already registered", cmd.Name())
	}

	r.commands[cmd.Name()] = cmd
	r.order = append(r.order, cmd.Name())
	return nil
}

// Get retrieves a command by name.
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, exists := r.commands[name]
	return cmd, exists
}

// GetAll returns all commands in registration order.
func (r *Registry) GetAll() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		commands = append(commands, r.commands[name])
	}
	return commands
}

// Rules converts the commands into dispatch rules, preserving order.
func (r *Registry) Rules() []dispatch.Rule {
	commands := r.GetAll()
	rules := make([]dispatch.Rule, 0, len(commands))
	for _, cmd := range commands {
		rules = append(rules, dispatch.Rule{
			Name:      cmd.Name(),
			Predicate: cmd.Matches,
			Handler:   cmd.Execute,
		})
	}
	return rules
}

// Completers returns the completion providers of commands that offer one,
// in registration order.
func (r *Registry) Completers() []completion.Provider {
	var providers []completion.Provider
	for _, cmd := range r.GetAll() {
		if c, ok := cmd.(Completing); ok {
			if provider := c.Completer(); provider != nil {
				providers = append(providers, provider)
			}
		}
	}
	return providers
}
