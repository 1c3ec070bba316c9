// Package dispatch routes raw input to exactly one handler through an ordered
// rule chain.
//
// Rules are evaluated in registration order and the first rule whose predicate
// matches wins; later rules are never consulted. Register specific predicates
// before generic fallbacks. Input matching no rule yields an empty Result and
// runs nothing.
package dispatch

import (
	"github.com/charmbracelet/log"

	"gorepl/internal/logger"
	"gorepl/internal/output"
)

// Predicate decides whether a rule applies to input. Predicates must be free
// of side effects.
type Predicate func(input string) bool

// Handler performs a rule's effect.
type Handler func(input string) error

// Rule pairs a predicate with its handler.
type Rule struct {
	Name      string
	Predicate Predicate
	Handler   Handler
}

// LogCollector captures console lines produced while a handler runs.
type LogCollector interface {
	Reset()
	Logs() []output.Log
	Error(format string, args ...interface{})
}

// Result is the outcome of one dispatch.
type Result struct {
	Expression string
	// Rule is the name of the matched rule, empty when nothing matched.
	Rule string
	Logs []output.Log
}

// Matched reports whether a rule handled the input.
func (r Result) Matched() bool {
	return r.Rule != ""
}

// Lines returns the log messages.
func (r Result) Lines() []string {
	lines := make([]string, len(r.Logs))
	for i, l := range r.Logs {
		lines[i] = l.Message
	}
	return lines
}

// Dispatcher holds an immutable, ordered rule list.
type Dispatcher struct {
	rules     []Rule
	collector LogCollector
	log       *log.Logger
}

// NewDispatcher creates a dispatcher. The rule slice is copied.
func NewDispatcher(collector LogCollector, rules ...Rule) *Dispatcher {
	return &Dispatcher{
		rules:     append([]Rule(nil), rules...),
		collector: collector,
		log:       logger.NewStyledLogger("Dispatcher"),
	}
}

// Dispatch runs the handler of the first rule matching input.
//
// The collector is reset immediately before the handler runs, so the result
// holds only that handler's lines. A handler error is recorded as an error line
// and returned unchanged alongside the result.
func (d *Dispatcher) Dispatch(input string) (Result, error) {
	for _, rule := range d.rules {
		if !rule.Predicate(input) {
			continue
		}

		d.log.Debug("Rule matched", "rule", rule.Name, "input", input)
		d.collector.Reset()
		err := rule.Handler(input)
		if err != nil {
			d.collector.Error("%v", err)
		}
		return Result{
			Expression: input,
			Rule:       rule.Name,
			Logs:       d.collector.Logs(),
		}, err
	}

	d.log.Debug("No rule matched", "input", input)
	return Result{Expression: input, Logs: []output.Log{}}, nil
}

// Invoke runs the handler of the first rule matching input without resetting
// or reading the collector, so the output joins the enclosing dispatch. It
// returns the matched rule name, empty when nothing matched.
func (d *Dispatcher) Invoke(input string) (string, error) {
	for _, rule := range d.rules {
		if rule.Predicate(input) {
			d.log.Debug("Rule invoked", "rule", rule.Name, "input", input)
			return rule.Name, rule.Handler(input)
		}
	}
	return "", nil
}

// Rules returns rule names in evaluation order.
func (d *Dispatcher) Rules() []string {
	names := make([]string, len(d.rules))
	for i, r := range d.rules {
		names[i] = r.Name
	}
	return names
}
