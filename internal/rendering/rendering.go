// Package rendering turns a parsed expression plus the session's accumulated
// declarations into a standalone Go program. The evaluator writes these programs
// to its output directory and the :src command shows the latest one.
package rendering

import (
	"bytes"
	"sort"
	"strings"
	"text/template"

	"gorepl/internal/expression"
)

// ExpressionToken marks where an expression goes in a template.
const ExpressionToken = "__EXPRESSION__"

// Binding is a named session value known only by its type.
type Binding struct {
	Name string
	Type string
}

// Context is the evaluation state a program is rendered against.
type Context struct {
	Imports      []string
	Declarations []string
	Bindings     []Binding
}

// Template is a rendered program with Token in place of the expression.
type Template struct {
	Source string
	Token  string
}

// Fill substitutes text for the token.
func (t Template) Fill(text string) string {
	return strings.Replace(t.Source, t.Token, text, 1)
}

var programTemplate = template.Must(template.New("program").Parse(`package main
{{if .Imports}}
import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)
{{end}}
{{- range .Bindings}}
var {{.Name}} {{.Type}}
{{- end}}
{{range .Declarations}}
{{.}}
{{end}}
func {{.ClassName}}() any {
{{- range .Body}}
	{{.}}
{{- end}}
	return nil
}
`))

type programData struct {
	Imports      []string
	Declarations []string
	Bindings     []Binding
	ClassName    string
	Body         []string
}

// Render returns the program evaluating expr inside a function named className.
func Render(ctx Context, className string, expr expression.Expression) string {
	return render(ctx, className, expr, expr.Source)
}

// RenderTemplate returns the program for expr with ExpressionToken where the
// expression text would be.
func RenderTemplate(ctx Context, className string, expr expression.Expression) Template {
	return Template{
		Source: render(ctx, className, expr, ExpressionToken),
		Token:  ExpressionToken,
	}
}

func render(ctx Context, className string, expr expression.Expression, text string) string {
	data := programData{
		Imports:      uniqueSorted(ctx.Imports),
		Declarations: append([]string(nil), ctx.Declarations...),
		Bindings:     ctx.Bindings,
		ClassName:    className,
	}

	switch expr.Kind {
	case expression.Import:
		if text == ExpressionToken {
			data.Declarations = append(data.Declarations, text)
		} else {
			data.Imports = uniqueSorted(append(data.Imports, expr.Names...))
		}
	case expression.Type, expression.Function:
		data.Declarations = append(data.Declarations, text)
	case expression.Value:
		data.Body = []string{"return " + text}
	default:
		data.Body = strings.Split(text, "\n")
	}

	var buf bytes.Buffer
	// Execution can only fail on writer errors; bytes.Buffer never returns one.
	_ = programTemplate.Execute(&buf, data)
	return buf.String()
}

func uniqueSorted(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}
