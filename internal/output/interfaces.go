// Package output provides the console log collector for gorepl.
// Every message a handler produces is echoed to the terminal and recorded so the
// dispatcher can hand back exactly the lines one handler produced.
package output

// StyleProvider supplies styles for semantic log types.
// The output package depends only on this interface, not on a concrete theme.
type StyleProvider interface {
	// GetStyle returns a TextStyle for the given semantic type.
	GetStyle(semantic SemanticType) TextStyle

	// IsAvailable returns true if the provider can render styles on this terminal.
	IsAvailable() bool
}

// TextStyle represents the capability to render text with styling.
// lipgloss.Style satisfies it.
type TextStyle interface {
	Render(text ...string) string
}

// SemanticType defines the semantic meaning of a console line.
type SemanticType string

const (
	// SemanticPlain is unclassified output, e.g. what evaluated code prints.
	SemanticPlain SemanticType = "plain"
	// SemanticInfo represents informational text.
	SemanticInfo SemanticType = "info"
	// SemanticSuccess represents evaluation results.
	SemanticSuccess SemanticType = "success"
	// SemanticWarning represents warning text.
	SemanticWarning SemanticType = "warning"
	// SemanticError represents failures.
	SemanticError SemanticType = "error"
	// SemanticHighlight represents emphasized text such as command names.
	SemanticHighlight SemanticType = "highlight"
)
