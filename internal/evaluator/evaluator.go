// Package evaluator runs Go input through an embedded yaegi interpreter and
// keeps the session state built up by successive evaluations.
package evaluator

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"gorepl/internal/expression"
	"gorepl/internal/logger"
	"gorepl/internal/rendering"
)

// ServiceName is the registry key of the evaluator service.
const ServiceName = "evaluator"

const (
	bindingPath    = "gorepl/results"
	bindingExports = bindingPath + "/results"
)

// Result is a named value held by the session.
type Result struct {
	Key   string
	Value any
	Type  string
}

// String renders the result the way the console prints it.
func (r Result) String() string {
	return fmt.Sprintf("%s %s = %s", r.Key, r.Type, FormatValue(r.Value))
}

// Evaluation describes one successful evaluation.
type Evaluation struct {
	Expression expression.Expression
	ClassName  string
	// Result is set for value expressions and single-name assignments.
	Result *Result
	// Results holds every name the evaluation bound, in definition order.
	Results []Result
}

// Evaluator is the yaegi-backed evaluator collaborator.
type Evaluator struct {
	mu sync.Mutex

	outputDir string
	stdout    io.Writer
	newID     func() string

	interp       *interp.Interpreter
	results      []Result
	initial      []Result
	expressions  []expression.Expression
	imports      []string
	declarations []string
	types        []string
	functions    []string
	counter      int
	bindings     int
	lastSource   string
	// cleared stops source files from being written once the output
	// directory has been removed.
	cleared bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithIDGenerator replaces the random evaluation identifier source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Evaluator) {
		e.newID = fn
	}
}

// New creates an evaluator. Interpreted programs print to stdout. An empty
// outputDir makes Initialize create a temporary directory.
func New(outputDir string, stdout io.Writer, options ...Option) *Evaluator {
	if stdout == nil {
		stdout = os.Stdout
	}
	e := &Evaluator{
		outputDir: outputDir,
		stdout:    stdout,
		newID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Name implements services.Service.
func (e *Evaluator) Name() string {
	return ServiceName
}

// Initialize prepares the output directory and the interpreter.
func (e *Evaluator) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.outputDir == "" {
		dir, err := os.MkdirTemp("", "gorepl-")
		if err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		e.outputDir = dir
	}

	return e.resetLocked()
}

// OutputDirectory returns where rendered programs are written.
func (e *Evaluator) OutputDirectory() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outputDir
}

// ParseExpression classifies text without evaluating it.
func (e *Evaluator) ParseExpression(text string) (expression.Expression, error) {
	return expression.Parse(text)
}

// Evaluate parses and evaluates text.
func (e *Evaluator) Evaluate(text string) (Evaluation, error) {
	expr, err := expression.Parse(text)
	if err != nil {
		return Evaluation{}, err
	}
	return e.EvaluateExpression(expr)
}

// EvaluateExpression evaluates an already parsed expression. Only successful
// evaluations change session state.
func (e *Evaluator) EvaluateExpression(expr expression.Expression) (Evaluation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.interp == nil {
		return Evaluation{}, errors.New("evaluator not initialized")
	}

	evaluation := Evaluation{
		Expression: expr,
		ClassName:  "Evaluation" + e.newID(),
	}
	e.writeSourceLocked(evaluation.ClassName, expr)

	switch expr.Kind {
	case expression.Value:
		if isUntypedNil(expr.Source) {
			return Evaluation{}, fmt.Errorf("use of untyped nil")
		}
		v, err := e.eval(expr.Source)
		if err != nil {
			return Evaluation{}, err
		}
		if hasValue(v) {
			key := fmt.Sprintf("res%d", e.counter)
			if err := e.bindLocked(key, v); err != nil {
				return Evaluation{}, err
			}
			e.counter++
			evaluation.Result = e.lastResultLocked()
			evaluation.Results = []Result{*evaluation.Result}
		}
	case expression.Assignment, expression.Variable:
		if _, err := e.eval(expr.Source); err != nil {
			return Evaluation{}, err
		}
		for _, name := range expr.Names {
			v, err := e.eval(name)
			if err != nil {
				logger.Debug("Cannot read assigned name", "name", name, "error", err)
				continue
			}
			e.recordLocked(name, v)
			evaluation.Results = append(evaluation.Results, *e.lastResultLocked())
		}
		if len(evaluation.Results) == 1 {
			evaluation.Result = e.lastResultLocked()
		}
	case expression.Import:
		if _, err := e.eval(expr.Source); err != nil {
			return Evaluation{}, err
		}
		e.imports = append(e.imports, expr.Names...)
	case expression.Type:
		if _, err := e.eval(expr.Source); err != nil {
			return Evaluation{}, err
		}
		e.declarations = append(e.declarations, expr.Source)
		e.types = appendUnique(e.types, expr.Names...)
	case expression.Function:
		if _, err := e.eval(expr.Source); err != nil {
			return Evaluation{}, err
		}
		e.declarations = append(e.declarations, expr.Source)
		e.functions = appendUnique(e.functions, expr.Names...)
	default:
		if _, err := e.eval(expr.Source); err != nil {
			return Evaluation{}, err
		}
	}

	e.expressions = append(e.expressions, expr)
	return evaluation, nil
}

// TypeOf evaluates text and returns the dynamic type of its value.
func (e *Evaluator) TypeOf(text string) (string, error) {
	expr, err := expression.Parse(text)
	if err != nil {
		return "", err
	}
	if expr.Kind != expression.Value {
		return "", fmt.Errorf("%s is a %s, not an expression", expr.Source, expr.Kind)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.interp == nil {
		return "", errors.New("evaluator not initialized")
	}
	if isUntypedNil(expr.Source) {
		return "", fmt.Errorf("use of untyped nil")
	}
	v, err := e.eval(expr.Source)
	if err != nil {
		return "", err
	}
	if !hasValue(v) {
		return "", fmt.Errorf("%s has no value", expr.Source)
	}
	return v.Type().String(), nil
}

// AddResults binds pre-computed values into the session. They survive Reset.
func (e *Evaluator) AddResults(results []Result) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.interp == nil {
		return errors.New("evaluator not initialized")
	}

	var errs []error
	for _, r := range results {
		if err := e.bindLocked(r.Key, reflect.ValueOf(r.Value)); err != nil {
			errs = append(errs, fmt.Errorf("result %s: %w", r.Key, err))
			continue
		}
		e.initial = append(e.initial, r)
	}
	return errors.Join(errs...)
}

// Results returns the current named values, oldest first.
func (e *Evaluator) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// Result looks up a named value.
func (e *Evaluator) Result(key string) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range e.results {
		if r.Key == key {
			return r, true
		}
	}
	return Result{}, false
}

// Expressions returns every successfully evaluated expression in order.
func (e *Evaluator) Expressions() []expression.Expression {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]expression.Expression(nil), e.expressions...)
}

// Imports returns imported package paths.
func (e *Evaluator) Imports() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.imports...)
}

// Types returns names of types declared in the session.
func (e *Evaluator) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.types...)
}

// Functions returns names of functions declared in the session.
func (e *Evaluator) Functions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.functions...)
}

// LastSource returns the program rendered for the latest evaluation attempt.
func (e *Evaluator) LastSource() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSource
}

// RenderContext returns the declarations a new program is rendered against.
func (e *Evaluator) RenderContext() rendering.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderContextLocked()
}

// Reset discards all evaluations and starts a fresh interpreter. Results added
// with AddResults are bound again.
func (e *Evaluator) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resetLocked()
}

// Replay resets the session and evaluates every recorded expression again, in
// order. A failing expression is reported and skipped.
func (e *Evaluator) Replay() ([]Evaluation, error) {
	expressions := e.Expressions()
	if err := e.Reset(); err != nil {
		return nil, err
	}

	var evaluations []Evaluation
	var errs []error
	for _, expr := range expressions {
		evaluation, err := e.EvaluateExpression(expr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", expr.Source, err))
			continue
		}
		evaluations = append(evaluations, evaluation)
	}
	return evaluations, errors.Join(errs...)
}

// ClearOutputDirectory removes every rendered program. Later evaluations no
// longer write source files.
func (e *Evaluator) ClearOutputDirectory() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cleared = true
	if e.outputDir == "" {
		return nil
	}
	if err := os.RemoveAll(e.outputDir); err != nil {
		return fmt.Errorf("failed to clear output directory %s: %w", e.outputDir, err)
	}
	logger.Debug("Output directory cleared", "dir", e.outputDir)
	return nil
}

func (e *Evaluator) resetLocked() error {
	i := interp.New(interp.Options{
		Stdout: e.stdout,
		Stderr: e.stdout,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fmt.Errorf("failed to load stdlib symbols: %w", err)
	}
	if err := i.Use(interp.Exports{bindingExports: map[string]reflect.Value{}}); err != nil {
		return fmt.Errorf("failed to register result bindings: %w", err)
	}

	e.interp = i
	e.results = nil
	e.expressions = nil
	e.imports = nil
	e.declarations = nil
	e.types = nil
	e.functions = nil
	e.counter = 0
	e.bindings = 0

	if _, err := e.eval(fmt.Sprintf("import %q", bindingPath)); err != nil {
		return fmt.Errorf("failed to import result bindings: %w", err)
	}

	for _, r := range e.initial {
		if err := e.bindLocked(r.Key, reflect.ValueOf(r.Value)); err != nil {
			return fmt.Errorf("failed to rebind result %s: %w", r.Key, err)
		}
	}
	return nil
}

// bindLocked makes v available to interpreted code as key.
func (e *Evaluator) bindLocked(key string, v reflect.Value) error {
	if !v.IsValid() {
		return fmt.Errorf("%s has no value", key)
	}

	holder := reflect.New(v.Type()).Elem()
	holder.Set(v)

	symbol := fmt.Sprintf("R%d", e.bindings)
	e.bindings++
	if err := e.interp.Use(interp.Exports{bindingExports: {symbol: holder}}); err != nil {
		return err
	}
	if _, err := e.eval(fmt.Sprintf("var %s = results.%s", key, symbol)); err != nil {
		return err
	}

	e.recordLocked(key, v)
	return nil
}

func (e *Evaluator) recordLocked(key string, v reflect.Value) {
	result := Result{Key: key, Type: "nil"}
	if v.IsValid() {
		result.Type = v.Type().String()
		if v.CanInterface() {
			result.Value = v.Interface()
		}
	}

	for i, r := range e.results {
		if r.Key == key {
			e.results = append(e.results[:i], e.results[i+1:]...)
			break
		}
	}
	e.results = append(e.results, result)
}

func (e *Evaluator) lastResultLocked() *Result {
	if len(e.results) == 0 {
		return nil
	}
	r := e.results[len(e.results)-1]
	return &r
}

// eval runs src and converts interpreter panics into errors.
func (e *Evaluator) eval(src string) (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	v, err = e.interp.Eval(src)
	if err != nil {
		return v, &evalError{msg: positionPrefix.ReplaceAllString(err.Error(), ""), err: err}
	}
	return v, nil
}

// positionPrefix matches interpreter positions, which point into the
// interpreter's own wrapper around the input rather than into the input.
var positionPrefix = regexp.MustCompile(`(?m)^(?:[^\s:]*:)?\d+:\d+: `)

// evalError is an interpreter error with source positions removed.
type evalError struct {
	msg string
	err error
}

func (e *evalError) Error() string { return e.msg }
func (e *evalError) Unwrap() error { return e.err }

// isUntypedNil reports whether src is the bare nil identifier, possibly
// parenthesized.
func isUntypedNil(src string) bool {
	node, err := parser.ParseExpr(src)
	if err != nil {
		return false
	}
	for {
		paren, ok := node.(*ast.ParenExpr)
		if !ok {
			break
		}
		node = paren.X
	}
	ident, ok := node.(*ast.Ident)
	return ok && ident.Name == "nil"
}

var emptyInterfacePtr = reflect.TypeOf((*interface{})(nil))

// hasValue reports whether v is a value worth binding. Calls to functions
// without results come back as a pointer to a nil interface.
func hasValue(v reflect.Value) bool {
	if !v.IsValid() || !v.CanInterface() {
		return false
	}
	if v.Type() == emptyInterfacePtr && (v.IsNil() || v.Elem().IsNil()) {
		return false
	}
	return true
}

func (e *Evaluator) renderContextLocked() rendering.Context {
	ctx := rendering.Context{
		Imports:      append([]string(nil), e.imports...),
		Declarations: append([]string(nil), e.declarations...),
	}
	for _, r := range e.results {
		ctx.Bindings = append(ctx.Bindings, rendering.Binding{Name: r.Key, Type: r.Type})
	}
	return ctx
}

func (e *Evaluator) writeSourceLocked(className string, expr expression.Expression) {
	e.lastSource = rendering.Render(e.renderContextLocked(), className, expr)
	if e.cleared {
		return
	}

	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		logger.Warn("Cannot create output directory", "dir", e.outputDir, "error", err)
		return
	}
	path := filepath.Join(e.outputDir, className+".go")
	if err := os.WriteFile(path, []byte(e.lastSource), 0o600); err != nil {
		logger.Warn("Cannot write evaluation source", "path", path, "error", err)
	}
}

func appendUnique(items []string, names ...string) []string {
	for _, name := range names {
		found := false
		for _, item := range items {
			if item == name {
				found = true
				break
			}
		}
		if !found {
			items = append(items, name)
		}
	}
	return items
}
