package completion

import (
	"strings"

	"github.com/chzyer/readline"
)

// AutoCompleter adapts an Aggregate to readline.
type AutoCompleter struct {
	aggregate *Aggregate
}

var _ readline.AutoCompleter = (*AutoCompleter)(nil)

// NewAutoCompleter wraps aggregate for use as readline.Config.AutoComplete.
func NewAutoCompleter(aggregate *Aggregate) *AutoCompleter {
	return &AutoCompleter{aggregate: aggregate}
}

// Do implements readline.AutoCompleter. It completes the text before the
// cursor and returns the suffixes readline appends to the typed prefix.
func (a *AutoCompleter) Do(line []rune, pos int) (newLine [][]rune, length int) {
	if pos > len(line) {
		pos = len(line)
	}
	input := string(line[:pos])

	result := a.aggregate.Complete(input)
	if len(result.Candidates) == 0 {
		return nil, 0
	}
	typed := result.Prefix()

	for _, candidate := range result.Candidates {
		if strings.HasPrefix(candidate, typed) {
			newLine = append(newLine, []rune(strings.TrimPrefix(candidate, typed)))
		}
	}
	return newLine, len([]rune(typed))
}
