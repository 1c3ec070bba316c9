package commands

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traefik/yaegi/stdlib"

	"gorepl/internal/completion"
	"gorepl/internal/dispatch"
	"gorepl/internal/evaluator"
	"gorepl/internal/history"
	"gorepl/internal/output"
	"gorepl/internal/services"
)

type fixture struct {
	registry   *Registry
	dispatcher *dispatch.Dispatcher
	evaluator  *evaluator.Evaluator
	history    *history.History
	screen     *output.CaptureBuffer
	quit       bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	recorder := output.NewRecorder(output.Silent(), output.WithStyles(output.NewPlainStyleProvider()))
	ev := evaluator.New(t.TempDir(), recorder)
	require.NoError(t, ev.Initialize())
	markdown := services.NewMarkdownService("notty", 100)
	require.NoError(t, markdown.Initialize())

	f := &fixture{
		evaluator: ev,
		history:   history.New("", 0, nil),
		screen:    output.NewCaptureBuffer(),
	}

	registry, err := Defaults(Deps{
		Console:   recorder,
		Evaluator: ev,
		History:   f.history,
		Packages:  completion.NewPackageIndex(stdlib.Symbols),
		Markdown:  markdown,
		Screen:    f.screen,
		Invoke: func(input string) error {
			_, err := f.dispatcher.Invoke(input)
			return err
		},
		Quit: func() { f.quit = true },
	})
	require.NoError(t, err)

	f.registry = registry
	f.dispatcher = dispatch.NewDispatcher(recorder, registry.Rules()...)
	return f
}

// run records input in history and dispatches it, like a session does.
func (f *fixture) run(t *testing.T, input string) ([]string, error) {
	t.Helper()
	f.history.Add(input)
	result, err := f.dispatcher.Dispatch(input)
	return result.Lines(), err
}

func (f *fixture) mustRun(t *testing.T, input string) []string {
	t.Helper()
	lines, err := f.run(t, input)
	require.NoError(t, err, input)
	return lines
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults_Order(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{
		":help", ":quit", ":cls", ":hist", ":h?", ":h!", ":reset", ":replay",
		":eval", ":load", ":list", ":src", ":type", ":check", ":doc",
		"invalid-command", "evaluate",
	}, f.dispatcher.Rules())
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(NewInvalidCommand()))

	err := registry.Register(NewInvalidCommand())
	assert.EqualError(t, err, "command invalid-command already registered")

	_, ok := registry.Get("invalid-command")
	assert.True(t, ok)
}

func TestHelpCommand(t *testing.T) {
	f := newFixture(t)

	lines := f.mustRun(t, ":help")
	assert.Equal(t, "Available commands:", lines[0])
	assert.Len(t, lines, 16)
	assert.Contains(t, strings.Join(lines, "\n"), ":h? term")

	lines = f.mustRun(t, ":help :hist")
	assert.Equal(t, []string{":hist [num] - show history (optionally only the last num entries)"}, lines)

	_, err := f.run(t, ":help :nope")
	assert.EqualError(t, err, "unknown command :nope")
}

func TestQuitCommand(t *testing.T) {
	f := newFixture(t)

	f.mustRun(t, ":quit")
	assert.True(t, f.quit)
}

func TestClearScreenCommand(t *testing.T) {
	f := newFixture(t)

	f.mustRun(t, ":cls")
	assert.True(t, f.screen.Contains("\x1b[2J"))
}

func TestEvaluateCommand(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{"res0 int = 2"}, f.mustRun(t, "1+1"))
	assert.Equal(t, []string{"Imported strings"}, f.mustRun(t, `import "strings"`))
	assert.Equal(t, []string{`res1 string = "GO"`}, f.mustRun(t, `strings.ToUpper("go")`))

	lines, err := f.run(t, "nosuchname")
	assert.Error(t, err)
	require.Len(t, lines, 1)
}

func TestEvaluateCommand_PrintsEveryBoundName(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{"y int = 1", `z string = "a"`}, f.mustRun(t, `var y, z = 1, "a"`))
	assert.Equal(t, []string{"a int = 3", "b int = 4"}, f.mustRun(t, "a, b := 3, 4"))
}

func TestEvaluateCommand_UnitResults(t *testing.T) {
	f := newFixture(t)

	f.mustRun(t, "func noop() {}")
	assert.Empty(t, f.mustRun(t, "noop()"))
	assert.Equal(t, []string{"res0 int = 2"}, f.mustRun(t, "1+1"))

	lines, err := f.run(t, "nil")
	assert.EqualError(t, err, "use of untyped nil")
	assert.Equal(t, []string{"use of untyped nil"}, lines)
}

func TestInvalidCommand(t *testing.T) {
	f := newFixture(t)

	lines, err := f.run(t, ":nope arg")

	assert.EqualError(t, err, "invalid command :nope, type :help for the list of commands")
	assert.Equal(t, []string{err.Error()}, lines)
}

func TestHistoryCommands(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "1+1")
	f.mustRun(t, "2+2")

	assert.Equal(t, []string{"   1  1+1", "   2  2+2", "   3  :hist"}, f.mustRun(t, ":hist"))
	assert.Equal(t, []string{"   4  :hist 1"}, f.mustRun(t, ":hist 1"))
	assert.Equal(t, []string{"   2  2+2", "   5  :h? 2+"}, f.mustRun(t, ":h? 2+"))

	result, err := f.dispatcher.Dispatch(":h? zzz")
	require.NoError(t, err)
	assert.Equal(t, []string{"No history found for term: zzz"}, result.Lines())

	_, err = f.run(t, ":hist x")
	assert.Error(t, err)
}

func TestEvaluateFromHistoryCommand(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, ":h!")
	assert.EqualError(t, err, "history is empty")

	f.mustRun(t, "1+1")
	f.mustRun(t, "2+2")

	assert.Equal(t, []string{"1+1", "res2 int = 2"}, f.mustRun(t, ":h! 1"))
	assert.Equal(t, []string{"1+1", "2+2", "1+1"}, f.history.Items())

	_, err = f.run(t, ":h! 99")
	assert.EqualError(t, err, "expression with index 99 not found in history")
}

func TestResetAndReplayCommands(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "n := 2")
	f.mustRun(t, "n * 3")

	assert.Equal(t, []string{"n int = 2", "res0 int = 6"}, f.mustRun(t, ":replay"))

	assert.Equal(t, []string{"Session reset"}, f.mustRun(t, ":reset"))
	assert.Empty(t, f.evaluator.Results())
}

func TestEvaluateFileCommand(t *testing.T) {
	f := newFixture(t)
	path := writeFile(t, "script.go", `import "strings"

// upper case
func up(s string) string {
	return strings.ToUpper(s)
}

up("go")
`)

	lines := f.mustRun(t, ":eval "+path)

	assert.Equal(t, []string{
		"Imported strings",
		"Defined function up",
		`res0 string = "GO"`,
		"Evaluated 3 expressions from " + path,
	}, lines)

	_, err := f.run(t, ":eval "+filepath.Join(t.TempDir(), "missing.go"))
	assert.ErrorContains(t, err, "failed to read")
}

func TestSplitSource(t *testing.T) {
	chunks, err := SplitSource("x := 1\n\nif x > 0 {\n\tx++\n}\nfunc broken() {")

	assert.Equal(t, []string{"x := 1", "if x > 0 {\n\tx++\n}"}, chunks)
	assert.ErrorContains(t, err, "incomplete input at end of file")
}

func TestLoadSourceCommand(t *testing.T) {
	f := newFixture(t)
	path := writeFile(t, "shout.go", `package demo

import "strings"

// Shout shouts.
func Shout(s string) string { return strings.ToUpper(s) + "!" }

type Meters float64
`)

	assert.Equal(t, []string{
		"Loaded import strings",
		"Loaded function Shout",
		"Loaded type Meters",
	}, f.mustRun(t, ":load "+path))
	assert.Equal(t, []string{`res0 string = "HI!"`}, f.mustRun(t, `Shout("hi")`))
}

func TestListCommand(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "x := 1")
	f.mustRun(t, "type T int")

	assert.Equal(t, []string{"Types:", "    T"}, f.mustRun(t, ":list types"))
	assert.Equal(t, []string{
		"Results:", "    x int = 1",
		"Types:", "    T",
		"Functions:",
		"Imports:",
	}, f.mustRun(t, ":list"))

	_, err := f.run(t, ":list everything")
	assert.ErrorContains(t, err, "unknown section")
}

func TestShowSourceCommand(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{"No source available"}, f.mustRun(t, ":src"))

	f.mustRun(t, "40 + 2")
	lines := f.mustRun(t, ":src")

	src := strings.Join(lines, "\n")
	assert.Contains(t, src, "package main")
	assert.Contains(t, src, "return 40 + 2")
}

func TestTypeAndCheckCommands(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{"float64"}, f.mustRun(t, ":type 1.5"))
	assert.Equal(t, []string{"Valid assignment (x)"}, f.mustRun(t, ":check x := 1"))
	assert.Equal(t, []string{"Valid value"}, f.mustRun(t, ":check len(\"abc\")"))
	assert.Empty(t, f.evaluator.Results())

	_, err := f.run(t, ":check 1 +")
	assert.Error(t, err)
	_, err = f.run(t, ":type")
	assert.EqualError(t, err, "expression required")
}

func TestDocCommand(t *testing.T) {
	f := newFixture(t)

	lines := f.mustRun(t, ":doc strings.HasPrefix")
	doc := ansi.Strip(strings.Join(lines, "\n"))
	assert.Contains(t, doc, "func HasPrefix(string, string) bool")

	lines = f.mustRun(t, ":doc strings")
	doc = ansi.Strip(strings.Join(lines, "\n"))
	assert.Contains(t, doc, "type Builder struct")

	_, err := f.run(t, ":doc nosuchpkg")
	assert.EqualError(t, err, "unknown package nosuchpkg")
	_, err = f.run(t, ":doc strings.Nope")
	assert.EqualError(t, err, "strings has no exported member Nope")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "func Join([]string, string) string", Describe("Join", reflect.ValueOf(strings.Join)))
	assert.Equal(t, "type Reader struct", Describe("Reader", reflect.ValueOf((*strings.Reader)(nil))))
	assert.Equal(t, "var Args []string", Describe("Args", reflect.ValueOf(&os.Args).Elem()))
}

func TestCommandCompleters(t *testing.T) {
	f := newFixture(t)
	aggregate := completion.NewAggregate(f.registry.Completers()...)

	assert.Equal(t, 15, aggregate.Len())
	assert.Equal(t, []string{":help", ":hist", ":h?", ":h!"}, aggregate.Complete(":h").Candidates)
	assert.Equal(t, []string{"results"}, aggregate.Complete(":list r").Candidates)
	assert.Equal(t, []string{":quit"}, aggregate.Complete(":help :q").Candidates)
	assert.Contains(t, aggregate.Complete(":doc net/ht").Candidates, "net/http")
}
