// Package expression classifies raw REPL input as Go source.
//
// Input is tried as a declaration (import, type, func, var, const), then as a
// single expression, then as a statement list. The first form that parses wins.
package expression

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strconv"
	"strings"
)

// Kind is the syntactic category of an input.
type Kind int

// Expression kinds.
const (
	Value Kind = iota
	Statement
	Assignment
	Variable
	Import
	Type
	Function
)

var kindNames = map[Kind]string{
	Value:      "value",
	Statement:  "statement",
	Assignment: "assignment",
	Variable:   "variable",
	Import:     "import",
	Type:       "type",
	Function:   "function",
}

// String returns the kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsDeclaration reports whether the kind is a top-level declaration.
func (k Kind) IsDeclaration() bool {
	return k == Import || k == Type || k == Function
}

// Expression is parsed input.
type Expression struct {
	Source string
	Kind   Kind
	// Names holds identifiers introduced by the input: assigned or declared
	// names, type and function names, or import paths for imports.
	Names []string
}

// ParseError is returned for input that is not valid Go in any accepted form.
type ParseError struct {
	Source     string
	Err        error
	Incomplete bool
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %v", e.Source, e.Err)
}

// Unwrap returns the underlying parser error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsIncomplete reports whether err is a parse failure caused by input that
// ended early, such as an unclosed brace. Interactive front ends keep reading.
func IsIncomplete(err error) bool {
	var perr *ParseError
	return errors.As(err, &perr) && perr.Incomplete
}

const (
	filePrefix = "package main\n"
	bodyPrefix = "package main\nfunc _() {\n"
	bodySuffix = "\n}\n"
)

// Parse classifies source.
func Parse(source string) (Expression, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return Expression{}, &ParseError{Source: source, Err: errors.New("empty expression")}
	}

	expr := Expression{Source: trimmed}

	if startsWithKeyword(trimmed, "import", "type", "func", "var", "const") {
		names, kind, err := parseDeclaration(trimmed)
		if err == nil {
			expr.Kind = kind
			expr.Names = names
			return expr, nil
		}
		// Function literals such as func() int { return 1 }() start with "func"
		// but are expressions.
		if !startsWithKeyword(trimmed, "func") {
			return Expression{}, newParseError(source, err, 1)
		}
	}

	if _, err := parser.ParseExpr(trimmed); err == nil {
		expr.Kind = Value
		return expr, nil
	}

	kind, names, err := parseStatements(trimmed)
	if err != nil {
		return Expression{}, newParseError(source, err, 2)
	}
	expr.Kind = kind
	expr.Names = names
	return expr, nil
}

func parseDeclaration(src string) ([]string, Kind, error) {
	file, err := parser.ParseFile(token.NewFileSet(), "", filePrefix+src, parser.SkipObjectResolution)
	if err != nil {
		return nil, 0, err
	}

	var names []string
	kind := Variable

	for _, imp := range file.Imports {
		path, _ := strconv.Unquote(imp.Path.Value)
		names = append(names, path)
		kind = Import
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			kind = Function
			names = append(names, d.Name.Name)
		case *ast.GenDecl:
			switch d.Tok {
			case token.TYPE:
				kind = Type
				for _, spec := range d.Specs {
					names = append(names, spec.(*ast.TypeSpec).Name.Name)
				}
			case token.VAR, token.CONST:
				for _, spec := range d.Specs {
					for _, n := range spec.(*ast.ValueSpec).Names {
						names = append(names, n.Name)
					}
				}
			}
		}
	}

	if len(file.Decls) == 0 {
		return nil, 0, errors.New("no declaration found")
	}
	return names, kind, nil
}

func parseStatements(src string) (Kind, []string, error) {
	file, err := parser.ParseFile(token.NewFileSet(), "", bodyPrefix+src+bodySuffix, parser.SkipObjectResolution)
	if err != nil {
		return 0, nil, err
	}

	body := file.Decls[0].(*ast.FuncDecl).Body.List
	if len(body) != 1 {
		return Statement, nil, nil
	}

	switch stmt := body[0].(type) {
	case *ast.AssignStmt:
		if stmt.Tok != token.DEFINE && stmt.Tok != token.ASSIGN {
			return Statement, nil, nil
		}
		var names []string
		for _, lhs := range stmt.Lhs {
			if ident, ok := lhs.(*ast.Ident); ok && ident.Name != "_" {
				names = append(names, ident.Name)
			}
		}
		return Assignment, names, nil
	case *ast.DeclStmt:
		var names []string
		if gen, ok := stmt.Decl.(*ast.GenDecl); ok {
			for _, spec := range gen.Specs {
				if vs, ok := spec.(*ast.ValueSpec); ok {
					for _, n := range vs.Names {
						names = append(names, n.Name)
					}
				}
			}
		}
		return Variable, names, nil
	default:
		return Statement, nil, nil
	}
}

func startsWithKeyword(src string, keywords ...string) bool {
	for _, kw := range keywords {
		if !strings.HasPrefix(src, kw) {
			continue
		}
		rest := src[len(kw):]
		if rest == "" || strings.IndexAny(rest[:1], " \t\n(") == 0 {
			return true
		}
	}
	return false
}

// newParseError shifts positions back over the wrapper lines added before parsing.
func newParseError(source string, err error, wrapperLines int) *ParseError {
	var list scanner.ErrorList
	if errors.As(err, &list) {
		shifted := make(scanner.ErrorList, 0, len(list))
		for _, e := range list {
			pos := e.Pos
			pos.Line -= wrapperLines
			pos.Filename = ""
			shifted = append(shifted, &scanner.Error{Pos: pos, Msg: e.Msg})
		}
		err = shifted.Err()
	}
	return &ParseError{Source: source, Err: err, Incomplete: unbalanced(source)}
}

// unbalanced reports whether source has unclosed brackets or an unterminated
// raw string literal.
func unbalanced(source string) bool {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(source))

	unterminated := false
	var s scanner.Scanner
	s.Init(file, []byte(source), func(_ token.Position, msg string) {
		if strings.Contains(msg, "raw string literal not terminated") ||
			strings.Contains(msg, "comment not terminated") {
			unterminated = true
		}
	}, 0)

	depth := 0
	for {
		_, tok, _ := s.Scan()
		switch tok {
		case token.LPAREN, token.LBRACE, token.LBRACK:
			depth++
		case token.RPAREN, token.RBRACE, token.RBRACK:
			depth--
		}
		if tok == token.EOF {
			break
		}
	}
	return unterminated || depth > 0
}
