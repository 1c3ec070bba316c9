// Package completion merges independent completion providers into one
// deterministic completion query.
package completion

import (
	"sort"
	"strings"

	"gorepl/internal/logger"
)

// Separators end a completable word.
const Separators = " (){}[],;=+-*/!&|<>\t\""

// Result holds candidates that replace the input from Position on.
type Result struct {
	Expression string
	// Position is the byte offset in Expression where candidates start.
	Position   int
	Candidates []string
}

// Prefix returns the part of the expression the candidates replace.
func (r Result) Prefix() string {
	if r.Position < 0 || r.Position > len(r.Expression) {
		return ""
	}
	return r.Expression[r.Position:]
}

// Provider proposes candidates for partial input. It reports false when it has
// nothing to contribute.
type Provider interface {
	Complete(expression string) (Result, bool)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(expression string) (Result, bool)

// Complete implements Provider.
func (f ProviderFunc) Complete(expression string) (Result, bool) {
	return f(expression)
}

// Aggregate queries providers in registration order and merges what they
// return. Contributions are grouped by position and the group with the
// furthest position wins; candidates keep provider order and are not
// deduplicated.
type Aggregate struct {
	providers []Provider
}

// NewAggregate creates an aggregate over a fixed provider list.
func NewAggregate(providers ...Provider) *Aggregate {
	return &Aggregate{providers: append([]Provider(nil), providers...)}
}

// Len returns the number of providers.
func (a *Aggregate) Len() int {
	return len(a.providers)
}

// Complete returns the merged result. Without contributions the result is
// empty at position 0.
func (a *Aggregate) Complete(expression string) Result {
	merged := Result{Expression: expression, Candidates: []string{}}
	found := false

	for _, provider := range a.providers {
		result, ok := provider.Complete(expression)
		if !ok || len(result.Candidates) == 0 {
			continue
		}

		switch {
		case !found || result.Position > merged.Position:
			merged.Position = result.Position
			merged.Candidates = append([]string{}, result.Candidates...)
			found = true
		case result.Position == merged.Position:
			merged.Candidates = append(merged.Candidates, result.Candidates...)
		}
	}

	logger.Debug("Completion", "input", expression, "position", merged.Position, "candidates", len(merged.Candidates))
	return merged
}

// WordStart returns the offset just after the last separator.
func WordStart(expression string) int {
	return strings.LastIndexAny(expression, Separators) + 1
}

// MemberStart returns the offset just after the last dot of the current word,
// or -1 when the word has no dot.
func MemberStart(expression string) int {
	start := WordStart(expression)
	dot := strings.LastIndex(expression[start:], ".")
	if dot < 0 {
		return -1
	}
	return start + dot + 1
}

// matching returns the sorted candidates beginning with prefix.
func matching(candidates []string, prefix string) []string {
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// wordResult completes the current word against candidates.
func wordResult(expression string, candidates []string) (Result, bool) {
	start := WordStart(expression)
	found := matching(candidates, expression[start:])
	if len(found) == 0 {
		return Result{}, false
	}
	return Result{Expression: expression, Position: start, Candidates: found}, true
}
