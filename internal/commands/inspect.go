package commands

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gorepl/internal/completion"
)

var listSections = []string{"results", "types", "functions", "imports"}

// ListCommand lists what the session has defined.
type ListCommand struct {
	base
	evaluator Evaluator
	console   Console
}

// NewListCommand creates :list.
func NewListCommand(console Console, ev Evaluator) *ListCommand {
	return &ListCommand{
		base:      base{name: ":list", usage: ":list [results|types|functions|imports]", description: "list session definitions"},
		evaluator: ev,
		console:   console,
	}
}

// Execute lists one section, or all of them without an argument.
func (c *ListCommand) Execute(input string) error {
	sections := listSections
	if arg := c.argument(input); arg != "" {
		if !contains(listSections, arg) {
			return fmt.Errorf("unknown section %q, expected one of %s", arg, strings.Join(listSections, ", "))
		}
		sections = []string{arg}
	}

	for _, section := range sections {
		switch section {
		case "results":
			c.console.Info("Results:")
			for _, r := range c.evaluator.Results() {
				c.console.Info("    %s", r.String())
			}
		case "types":
			c.printNames("Types:", c.evaluator.Types())
		case "functions":
			c.printNames("Functions:", c.evaluator.Functions())
		case "imports":
			c.printNames("Imports:", c.evaluator.Imports())
		}
	}
	return nil
}

func (c *ListCommand) printNames(title string, names []string) {
	c.console.Info("%s", title)
	for _, name := range names {
		c.console.Info("    %s", name)
	}
}

// Completer completes section names.
func (c *ListCommand) Completer() completion.Provider {
	return completion.Command(c.name, func() []string { return listSections })
}

// ShowSourceCommand prints the program rendered for the latest evaluation.
type ShowSourceCommand struct {
	base
	evaluator Evaluator
	console   Console
}

// NewShowSourceCommand creates :src.
func NewShowSourceCommand(console Console, ev Evaluator) *ShowSourceCommand {
	return &ShowSourceCommand{
		base:      base{name: ":src", usage: ":src", description: "show the source of the last evaluation"},
		evaluator: ev,
		console:   console,
	}
}

// Execute prints the last rendered program.
func (c *ShowSourceCommand) Execute(_ string) error {
	src := c.evaluator.LastSource()
	if src == "" {
		c.console.Info("No source available")
		return nil
	}
	c.console.Println(src)
	return nil
}

// TypeCommand prints the type of an expression.
type TypeCommand struct {
	base
	evaluator Evaluator
	console   Console
	packages  *completion.PackageIndex
}

// NewTypeCommand creates :type.
func NewTypeCommand(console Console, ev Evaluator, packages *completion.PackageIndex) *TypeCommand {
	return &TypeCommand{
		base:      base{name: ":type", usage: ":type expression", description: "show the type of an expression"},
		evaluator: ev,
		console:   console,
		packages:  packages,
	}
}

// Execute evaluates the expression and prints its dynamic type.
func (c *TypeCommand) Execute(input string) error {
	expr := c.argument(input)
	if expr == "" {
		return errors.New("expression required")
	}
	typ, err := c.evaluator.TypeOf(expr)
	if err != nil {
		return err
	}
	c.console.Success("%s", typ)
	return nil
}

// Completer completes package names after :type.
func (c *TypeCommand) Completer() completion.Provider {
	return completion.Command(c.name, c.packages.Names)
}

// CheckCommand reports how an expression parses without evaluating it.
type CheckCommand struct {
	base
	evaluator Evaluator
	console   Console
}

// NewCheckCommand creates :check.
func NewCheckCommand(console Console, ev Evaluator) *CheckCommand {
	return &CheckCommand{
		base:      base{name: ":check", usage: ":check expression", description: "check expression syntax without evaluating it"},
		evaluator: ev,
		console:   console,
	}
}

// Execute parses the argument.
func (c *CheckCommand) Execute(input string) error {
	src := c.argument(input)
	if src == "" {
		return errors.New("expression required")
	}
	expr, err := c.evaluator.ParseExpression(src)
	if err != nil {
		return err
	}
	if len(expr.Names) > 0 {
		c.console.Info("Valid %s (%s)", expr.Kind, strings.Join(expr.Names, ", "))
		return nil
	}
	c.console.Info("Valid %s", expr.Kind)
	return nil
}

// DocCommand renders the exported API of a package, or one member of it.
type DocCommand struct {
	base
	packages *completion.PackageIndex
	markdown Markdown
	console  Console
}

// NewDocCommand creates :doc.
func NewDocCommand(console Console, packages *completion.PackageIndex, markdown Markdown) *DocCommand {
	return &DocCommand{
		base:     base{name: ":doc", usage: ":doc package[.Member]", description: "show the exported API of a package"},
		packages: packages,
		markdown: markdown,
		console:  console,
	}
}

// Execute renders documentation as markdown.
func (c *DocCommand) Execute(input string) error {
	arg := c.argument(input)
	if arg == "" {
		return errors.New("package required")
	}

	markdown, err := c.document(arg)
	if err != nil {
		return err
	}
	rendered, err := c.markdown.Render(markdown)
	if err != nil {
		return err
	}
	c.console.Println(strings.TrimRight(rendered, "\n"))
	return nil
}

func (c *DocCommand) document(arg string) (string, error) {
	pkg, member := arg, ""
	slash := strings.LastIndex(arg, "/")
	if dot := strings.LastIndex(arg, "."); dot > slash {
		pkg, member = arg[:dot], arg[dot+1:]
	}

	importPath, err := c.resolve(pkg)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if member != "" {
		v, ok := c.packages.Lookup(importPath, member)
		if !ok {
			return "", fmt.Errorf("%s has no exported member %s", importPath, member)
		}
		fmt.Fprintf(&b, "# %s.%s\n\n```go\n%s\n```\n", importPath, member, Describe(member, v))
		return b.String(), nil
	}

	fmt.Fprintf(&b, "# %s\n\n```go\nimport %q\n```\n\n", importPath, importPath)
	for _, name := range c.packages.Members(importPath) {
		v, _ := c.packages.Lookup(importPath, name)
		fmt.Fprintf(&b, "- `%s`\n", Describe(name, v))
	}
	return b.String(), nil
}

func (c *DocCommand) resolve(pkg string) (string, error) {
	if len(c.packages.Members(pkg)) > 0 {
		return pkg, nil
	}
	paths := c.packages.Resolve(pkg)
	switch len(paths) {
	case 0:
		return "", fmt.Errorf("unknown package %s", pkg)
	case 1:
		return paths[0], nil
	default:
		return "", fmt.Errorf("package %s is ambiguous: %s", pkg, strings.Join(paths, ", "))
	}
}

// Completer completes import paths after :doc.
func (c *DocCommand) Completer() completion.Provider {
	return completion.Command(c.name, c.packages.Paths)
}

// Describe renders a one-line Go declaration for an exported symbol.
func Describe(name string, v reflect.Value) string {
	if !v.IsValid() {
		return name
	}

	t := v.Type()
	switch {
	case t.Kind() == reflect.Func:
		return "func " + name + strings.TrimPrefix(t.String(), "func")
	case t.Kind() == reflect.Ptr && v.IsNil():
		return fmt.Sprintf("type %s %s", name, t.Elem().Kind())
	case strings.HasPrefix(t.String(), "constant."):
		return "const " + name
	default:
		return fmt.Sprintf("var %s %s", name, t)
	}
}

func contains(items []string, item string) bool {
	for _, i := range items {
		if i == item {
			return true
		}
	}
	return false
}
