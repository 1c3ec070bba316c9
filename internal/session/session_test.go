package session

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"gorepl/internal/evaluator"
	"gorepl/internal/expression"
	"gorepl/internal/rendering"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		HistoryFile:   filepath.Join(dir, "history.yaml"),
		OutputDir:     filepath.Join(dir, "out"),
		MarkdownStyle: "notty",
	}
}

func newTestSession(t *testing.T, cfg Config, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{
		WithWriter(io.Discard),
		WithIDGenerator(func() string { return "X" }),
	}, opts...)
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	return s
}

// countSteps wraps the shutdown steps with call counters.
func countSteps(s *Session) []*atomic.Int32 {
	counters := make([]*atomic.Int32, len(s.steps))
	for i, step := range s.steps {
		counter := &atomic.Int32{}
		run := step.run
		s.steps[i].run = func() error {
			counter.Add(1)
			return run()
		}
		counters[i] = counter
	}
	return counters
}

func TestSession_NoMatchIsEmptyResult(t *testing.T) {
	s := newTestSession(t, testConfig(t))

	result, err := s.Execute("   ")

	require.NoError(t, err)
	assert.False(t, result.Matched())
	assert.Equal(t, "   ", result.Expression)
	assert.Empty(t, result.Logs)
	assert.Empty(t, s.Evaluator().Expressions())
	assert.Empty(t, s.History())
}

func TestSession_FirstRegisteredRuleHandlesInput(t *testing.T) {
	s := newTestSession(t, testConfig(t))

	result, err := s.Execute(":hist")
	require.NoError(t, err)
	assert.Equal(t, ":hist", result.Rule)

	result, err = s.Execute(":bogus")
	assert.Error(t, err)
	assert.Equal(t, "invalid-command", result.Rule)
	assert.Empty(t, s.Evaluator().Expressions())

	result, err = s.Execute("1+1")
	require.NoError(t, err)
	assert.Equal(t, "evaluate", result.Rule)
	assert.Equal(t, []string{"res0 int = 2"}, result.Lines())
}

func TestSession_ExecuteRecordsHistory(t *testing.T) {
	s := newTestSession(t, testConfig(t))

	_, _ = s.Execute("1+1")
	_, _ = s.Execute(":h!")
	_, _ = s.Execute("")

	assert.Equal(t, []string{"1+1", "1+1"}, s.History())
}

func TestSession_HandlerErrorPropagates(t *testing.T) {
	s := newTestSession(t, testConfig(t))

	result, err := s.Execute("undefinedName")

	assert.Error(t, err)
	require.Len(t, result.Logs, 1)

	result, err = s.Execute("2*3")
	require.NoError(t, err)
	assert.Equal(t, []string{"res0 int = 6"}, result.Lines())
}

func TestSession_PreboundResults(t *testing.T) {
	cfg := testConfig(t)
	cfg.Results = []evaluator.Result{{Key: "answer", Value: 42}}
	s := newTestSession(t, cfg)

	result, err := s.Execute("answer + 1")

	require.NoError(t, err)
	assert.Equal(t, []string{"res0 int = 43"}, result.Lines())
}

func TestSession_StartRunsStartupOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Expressions = []string{"greeting := \"hi\"", "len(greeting)"}
	s := newTestSession(t, cfg)

	s.Start()
	s.Start()

	assert.Equal(t, Running, s.Status())
	assert.Len(t, s.Evaluator().Expressions(), 2)
	assert.Len(t, s.Evaluator().Results(), 2)
	assert.Empty(t, s.History())
}

func TestSession_StartupPolicy(t *testing.T) {
	tests := []struct {
		name        string
		policy      StartupPolicy
		wantResults int
	}{
		{"continue runs every expression", StartupContinue, 1},
		{"abort stops at the first failure", StartupAbort, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Expressions = []string{"missing + 1", "1 + 1"}
			cfg.Policy = tt.policy
			s := newTestSession(t, cfg)

			s.Start()

			assert.Equal(t, Running, s.Status())
			assert.Len(t, s.Evaluator().Results(), tt.wantResults)
		})
	}
}

func TestSession_StatusSequence(t *testing.T) {
	var (
		mu       sync.Mutex
		observed []Status
	)
	s := newTestSession(t, testConfig(t), WithStatusObserver(func(from, to Status) {
		mu.Lock()
		defer mu.Unlock()
		if len(observed) == 0 {
			observed = append(observed, from)
		}
		observed = append(observed, to)
	}))

	assert.Equal(t, Idle, s.Status())
	s.Start()
	require.NoError(t, s.Shutdown())
	s.Start()
	require.NoError(t, s.Shutdown())

	want := []Status{Idle, Starting, Running, Terminating, Terminated}
	if diff := cmp.Diff(want, observed); diff != "" {
		t.Errorf("status sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Terminated, s.Status())
}

func TestSession_ConcurrentShutdownRunsStepsOnce(t *testing.T) {
	cfg := testConfig(t)
	s := newTestSession(t, cfg)
	s.Start()
	_, err := s.Execute("1+1")
	require.NoError(t, err)
	counters := countSteps(s)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			if err := s.Shutdown(); err != nil {
				return err
			}
			if s.Status() != Terminated {
				return errors.New("shutdown returned before Terminated")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, Terminated, s.Status())
	for _, c := range counters {
		assert.Equal(t, int32(1), c.Load())
	}
	assert.FileExists(t, cfg.HistoryFile)
	_, err = os.Stat(cfg.OutputDir)
	assert.True(t, os.IsNotExist(err))
}

func TestSession_ExecuteAfterShutdownLeavesNoOutput(t *testing.T) {
	cfg := testConfig(t)
	s := newTestSession(t, cfg)
	s.Start()
	_, err := s.Execute("1+1")
	require.NoError(t, err)
	require.DirExists(t, cfg.OutputDir)

	require.NoError(t, s.Shutdown())
	result, err := s.Execute("2+2")
	require.NoError(t, err)

	assert.Equal(t, []string{"res1 int = 4"}, result.Lines())
	_, err = os.Stat(cfg.OutputDir)
	assert.True(t, os.IsNotExist(err))
}

func TestSession_ShutdownBeforeStart(t *testing.T) {
	s := newTestSession(t, testConfig(t))

	require.NoError(t, s.Shutdown())
	s.Start()

	assert.Equal(t, Terminated, s.Status())
	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestSession_ShutdownErrorGoesToWinner(t *testing.T) {
	s := newTestSession(t, testConfig(t))
	failure := errors.New("disk full")
	s.steps[0].run = func() error { return failure }

	err := s.Shutdown()
	assert.ErrorIs(t, err, failure)
	assert.ErrorContains(t, err, "save history")

	assert.NoError(t, s.Shutdown())
	assert.Equal(t, Terminated, s.Status())
}

func TestSession_Completion(t *testing.T) {
	s := newTestSession(t, testConfig(t))
	_, err := s.Execute("strs := []string{\"a\"}")
	require.NoError(t, err)

	first := s.Completion(":h")
	assert.Equal(t, []string{":help", ":hist", ":h?", ":h!"}, first.Candidates)
	if diff := cmp.Diff(first, s.Completion(":h")); diff != "" {
		t.Errorf("completion not deterministic (-first +second):\n%s", diff)
	}

	result := s.Completion("x := str")
	assert.Equal(t, 5, result.Position)
	assert.Equal(t, []string{"string", "struct", "strs", "strconv", "strings"}, result.Candidates)

	result = s.Completion("strings.TrimS")
	assert.Equal(t, []string{"TrimSpace", "TrimSuffix"}, result.Candidates)

	assert.Len(t, s.History(), 1)
}

func TestSession_Template(t *testing.T) {
	s := newTestSession(t, testConfig(t))
	_, err := s.Execute(`import "strings"`)
	require.NoError(t, err)

	tmpl, err := s.Template(`strings.ToUpper("a")`)
	require.NoError(t, err)
	assert.Equal(t, rendering.ExpressionToken, tmpl.Token)
	assert.Contains(t, tmpl.Source, "func EvaluationX() any")
	assert.Contains(t, tmpl.Source, "\"strings\"")
	assert.Contains(t, tmpl.Source, rendering.ExpressionToken)

	_, err = s.Template("1 +")
	var perr *expression.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestSession_Quit(t *testing.T) {
	s := newTestSession(t, testConfig(t))

	_, err := s.Execute(":quit")
	require.NoError(t, err)

	select {
	case <-s.QuitRequested():
	default:
		t.Fatal("quit not requested")
	}
}

func TestParseStartupPolicy(t *testing.T) {
	policy, err := ParseStartupPolicy("ABORT")
	require.NoError(t, err)
	assert.Equal(t, StartupAbort, policy)

	policy, err = ParseStartupPolicy("")
	require.NoError(t, err)
	assert.Equal(t, StartupContinue, policy)

	_, err = ParseStartupPolicy("retry")
	assert.Error(t, err)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "Terminating", Terminating.String())
	assert.Equal(t, "Unknown", Status(42).String())
}
