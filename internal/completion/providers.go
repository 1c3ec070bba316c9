package completion

import (
	"reflect"
	"sort"
	"strings"

	"gorepl/internal/evaluator"
)

var keywords = []string{
	"break", "case", "chan", "const", "continue", "default", "defer", "else",
	"fallthrough", "for", "func", "go", "goto", "if", "import", "interface",
	"map", "package", "range", "return", "select", "struct", "switch", "type", "var",
}

var builtins = []string{
	"any", "append", "bool", "byte", "cap", "clear", "close", "comparable",
	"complex", "complex128", "complex64", "copy", "delete", "error", "false",
	"float32", "float64", "imag", "int", "int16", "int32", "int64", "int8",
	"iota", "len", "make", "max", "min", "new", "nil", "panic", "print",
	"println", "real", "recover", "rune", "string", "true", "uint", "uint16",
	"uint32", "uint64", "uint8", "uintptr",
}

// Keywords completes Go keywords and predeclared identifiers.
func Keywords() Provider {
	words := append(append([]string{}, keywords...), builtins...)
	return ProviderFunc(func(expression string) (Result, bool) {
		return wordResult(expression, words)
	})
}

// Command completes a command name typed at the start of the input. When args
// is set, words after the command are completed from it.
func Command(name string, args func() []string) Provider {
	return ProviderFunc(func(expression string) (Result, bool) {
		if !strings.Contains(expression, " ") {
			if strings.HasPrefix(name, expression) && expression != "" {
				return Result{Expression: expression, Candidates: []string{name}}, true
			}
			return Result{}, false
		}
		if args == nil || !strings.HasPrefix(expression, name+" ") {
			return Result{}, false
		}
		// Arguments are separated by spaces only, so paths like net/http stay whole.
		start := strings.LastIndex(expression, " ") + 1
		found := matching(args(), expression[start:])
		if len(found) == 0 {
			return Result{}, false
		}
		return Result{Expression: expression, Position: start, Candidates: found}, true
	})
}

// SessionState is what the console completer reads from the evaluator.
type SessionState interface {
	Results() []evaluator.Result
	Types() []string
	Functions() []string
}

// Console completes names defined in the session: results, types and
// functions, in that order.
func Console(state SessionState) Provider {
	return ProviderFunc(func(expression string) (Result, bool) {
		var names []string
		for _, r := range state.Results() {
			names = append(names, r.Key)
		}
		names = append(names, state.Types()...)
		names = append(names, state.Functions()...)
		return wordResult(expression, names)
	})
}

// Instances completes exported methods and fields of a session result, as in
// res0.Len.
func Instances(state SessionState) Provider {
	return ProviderFunc(func(expression string) (Result, bool) {
		position := MemberStart(expression)
		if position < 0 {
			return Result{}, false
		}
		name := expression[WordStart(expression) : position-1]

		for _, r := range state.Results() {
			if r.Key != name || r.Value == nil {
				continue
			}
			found := matching(Members(reflect.TypeOf(r.Value)), expression[position:])
			if len(found) == 0 {
				return Result{}, false
			}
			return Result{Expression: expression, Position: position, Candidates: found}, true
		}
		return Result{}, false
	})
}

// Members lists exported method and field names of t, following one pointer.
func Members(t reflect.Type) []string {
	seen := map[string]bool{}
	var names []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for i := 0; i < t.NumMethod(); i++ {
		if m := t.Method(i); m.IsExported() {
			add(m.Name)
		}
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			if f := t.Field(i); f.IsExported() {
				add(f.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}
