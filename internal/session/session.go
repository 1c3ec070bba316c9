// Package session is the single entry point of the REPL core. It owns the
// lifecycle, routes input through the command rule chain and answers
// completion queries.
//
// Every collaborator is built, registered and resolved once in New; the rule
// list and the completer are immutable afterwards.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/traefik/yaegi/stdlib"

	"gorepl/internal/commands"
	"gorepl/internal/completion"
	"gorepl/internal/dispatch"
	"gorepl/internal/evaluator"
	"gorepl/internal/history"
	"gorepl/internal/logger"
	"gorepl/internal/output"
	"gorepl/internal/rendering"
	"gorepl/internal/services"
)

// StartupPolicy decides what a failing startup expression does to the rest of
// the startup batch.
type StartupPolicy int

const (
	// StartupContinue dispatches every startup expression regardless of
	// failures.
	StartupContinue StartupPolicy = iota
	// StartupAbort skips the remaining startup expressions after a failure.
	StartupAbort
)

func (p StartupPolicy) String() string {
	if p == StartupAbort {
		return "abort"
	}
	return "continue"
}

// ParseStartupPolicy parses "continue" or "abort". Empty means continue.
func ParseStartupPolicy(s string) (StartupPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue":
		return StartupContinue, nil
	case "abort":
		return StartupAbort, nil
	default:
		return StartupContinue, fmt.Errorf("invalid startup policy %q, expected continue or abort", s)
	}
}

// Config holds what a session is built from.
type Config struct {
	HistoryFile string
	HistoryMax  int
	// Expressions run in order by Start.
	Expressions []string
	Policy      StartupPolicy
	// OutputDir receives rendered programs. Empty means a temporary directory.
	OutputDir string
	// Results are bound into the interpreter before anything is evaluated.
	Results []evaluator.Result
	// MarkdownStyle is the glamour style used by :doc.
	MarkdownStyle string
}

type options struct {
	writer    io.Writer
	observer  func(from, to Status)
	providers func(*Session) []completion.Provider
	idGen     func() string
}

// Option configures a Session.
type Option func(*options)

// WithWriter sets the terminal console output is echoed to. Default is
// os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// WithStatusObserver receives every lifecycle transition.
func WithStatusObserver(fn func(from, to Status)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithProviders replaces the completion providers that follow the command
// completers.
func WithProviders(fn func(*Session) []completion.Provider) Option {
	return func(o *options) {
		o.providers = fn
	}
}

// WithIDGenerator replaces the random identifiers of evaluation programs.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		o.idGen = fn
	}
}

type shutdownStep struct {
	name string
	run  func() error
}

// Session is the REPL façade.
type Session struct {
	cfg Config
	log *log.Logger

	services   *services.Registry
	recorder   *output.Recorder
	history    *history.History
	evaluator  *evaluator.Evaluator
	packages   *completion.PackageIndex
	commands   *commands.Registry
	dispatcher *dispatch.Dispatcher
	completer  *completion.Aggregate
	newID      func() string

	lifecycle lifecycle
	done      chan struct{}
	steps     []shutdownStep

	quitOnce sync.Once
	quit     chan struct{}
}

// New builds a session and every collaborator it coordinates.
func New(cfg Config, opts ...Option) (*Session, error) {
	o := options{writer: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		cfg:      cfg,
		log:      logger.NewStyledLogger("Session"),
		services: services.NewRegistry(),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
		newID:    o.idGen,
	}
	s.lifecycle.observer = o.observer
	if s.newID == nil {
		s.newID = func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }
	}

	recorder := output.NewRecorder(output.WithWriter(o.writer))
	collaborators := []services.Service{
		recorder,
		history.New(cfg.HistoryFile, cfg.HistoryMax, history.DefaultIgnore),
		evaluator.New(cfg.OutputDir, recorder, evaluator.WithIDGenerator(s.newID)),
		services.NewMarkdownService(cfg.MarkdownStyle, 0),
	}
	for _, svc := range collaborators {
		if err := s.services.RegisterService(svc); err != nil {
			return nil, err
		}
	}
	if err := s.services.InitializeAll(); err != nil {
		return nil, err
	}
	s.services.Seal()
	s.log.Debug("Services initialized", "services", s.services.Names())

	if err := s.resolve(); err != nil {
		return nil, err
	}
	if err := s.evaluator.AddResults(cfg.Results); err != nil {
		return nil, fmt.Errorf("failed to add results: %w", err)
	}

	markdown, err := services.Get[*services.MarkdownService](s.services, services.MarkdownServiceName)
	if err != nil {
		return nil, err
	}
	s.packages = completion.NewPackageIndex(stdlib.Symbols)
	s.commands, err = commands.Defaults(commands.Deps{
		Console:   s.recorder,
		Evaluator: s.evaluator,
		History:   s.history,
		Packages:  s.packages,
		Markdown:  markdown,
		Screen:    o.writer,
		Invoke:    s.invoke,
		Quit:      s.requestQuit,
	})
	if err != nil {
		return nil, err
	}
	s.dispatcher = dispatch.NewDispatcher(s.recorder, s.commands.Rules()...)

	providers := s.commands.Completers()
	if o.providers != nil {
		providers = append(providers, o.providers(s)...)
	} else {
		providers = append(providers, DefaultProviders(s)...)
	}
	s.completer = completion.NewAggregate(providers...)

	s.steps = []shutdownStep{
		{name: "save history", run: s.history.Save},
		{name: "clear output directory", run: s.evaluator.ClearOutputDirectory},
	}

	s.log.Debug("Session created", "rules", len(s.dispatcher.Rules()), "providers", s.completer.Len())
	return s, nil
}

// DefaultProviders returns the expression completion providers in order:
// keywords, session names, packages, package members, instance members.
func DefaultProviders(s *Session) []completion.Provider {
	return []completion.Provider{
		completion.Keywords(),
		completion.Console(s.evaluator),
		completion.Packages(s.packages),
		completion.PackageMembers(s.packages),
		completion.Instances(s.evaluator),
	}
}

func (s *Session) resolve() error {
	var err error
	if s.recorder, err = services.Get[*output.Recorder](s.services, output.ServiceName); err != nil {
		return err
	}
	if s.history, err = services.Get[*history.History](s.services, history.ServiceName); err != nil {
		return err
	}
	if s.evaluator, err = services.Get[*evaluator.Evaluator](s.services, evaluator.ServiceName); err != nil {
		return err
	}
	return nil
}

// Execute records input in history and dispatches it. Input matching no rule
// yields an empty result and no error.
func (s *Session) Execute(input string) (dispatch.Result, error) {
	s.history.Add(input)
	return s.dispatcher.Dispatch(input)
}

// invoke runs input inside the current dispatch, for commands that delegate.
func (s *Session) invoke(input string) error {
	_, err := s.dispatcher.Invoke(input)
	return err
}

// Completion merges the completion providers for input. It has no side
// effects.
func (s *Session) Completion(input string) completion.Result {
	return s.completer.Complete(input)
}

// Template renders the evaluation program for input with the expression
// replaced by a token. Unparseable input returns the *expression.ParseError.
func (s *Session) Template(input string) (rendering.Template, error) {
	expr, err := s.evaluator.ParseExpression(input)
	if err != nil {
		return rendering.Template{}, err
	}
	return rendering.RenderTemplate(s.evaluator.RenderContext(), "Evaluation"+s.newID(), expr), nil
}

// Status returns the current lifecycle phase.
func (s *Session) Status() Status {
	return s.lifecycle.load()
}

// History returns previously executed inputs, oldest first.
func (s *Session) History() []string {
	return s.history.Items()
}

// Start runs the startup expressions once. It does nothing unless the session
// is Idle. A failing expression is logged; whether the rest still run depends
// on the startup policy. A shutdown during startup stops the batch and is not
// undone.
func (s *Session) Start() {
	if !s.lifecycle.transition(Idle, Starting) {
		return
	}

	for _, expr := range s.cfg.Expressions {
		if s.Status() != Starting {
			break
		}
		if _, err := s.dispatcher.Dispatch(expr); err != nil {
			s.log.Warn("Startup expression failed", "input", expr, "error", err)
			if s.cfg.Policy == StartupAbort {
				break
			}
		}
	}

	s.lifecycle.transition(Starting, Running)
}

// Shutdown saves history and clears the evaluator output directory, once. The
// caller that wins the move to Terminating runs the steps and gets their
// errors; every other caller waits until the session is Terminated.
func (s *Session) Shutdown() error {
	if !s.lifecycle.enterTerminating() {
		<-s.done
		return nil
	}

	var errs []error
	for _, step := range s.steps {
		if err := step.run(); err != nil {
			s.log.Error("Shutdown step failed", "step", step.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}

	s.lifecycle.transition(Terminating, Terminated)
	close(s.done)
	return errors.Join(errs...)
}

// Done is closed when the session is Terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// QuitRequested is closed once :quit has run.
func (s *Session) QuitRequested() <-chan struct{} {
	return s.quit
}

func (s *Session) requestQuit() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Evaluator returns the session evaluator.
func (s *Session) Evaluator() *evaluator.Evaluator {
	return s.evaluator
}

// Config returns the configuration the session was built from.
func (s *Session) Config() Config {
	return s.cfg
}

// Rules returns the dispatch rule names in order.
func (s *Session) Rules() []string {
	return s.dispatcher.Rules()
}

// AutoCompleter returns the completer adapted for readline.
func (s *Session) AutoCompleter() *completion.AutoCompleter {
	return completion.NewAutoCompleter(s.completer)
}
