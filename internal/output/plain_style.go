package output

import "strings"

// PlainTextStyle implements TextStyle for plain text output without any styling.
// This is used as a fallback when no color-capable StyleProvider is available.
type PlainTextStyle struct {
	prefix string
}

// NewPlainTextStyle creates a new plain text style with an optional prefix.
func NewPlainTextStyle(prefix string) *PlainTextStyle {
	return &PlainTextStyle{prefix: prefix}
}

// Render implements TextStyle.Render for plain text output.
func (p *PlainTextStyle) Render(text ...string) string {
	return p.prefix + strings.Join(text, " ")
}

// PlainStyleProvider implements StyleProvider for terminals without color.
type PlainStyleProvider struct{}

// NewPlainStyleProvider creates a new plain style provider.
func NewPlainStyleProvider() *PlainStyleProvider {
	return &PlainStyleProvider{}
}

// GetStyle returns plain styles. Only errors carry a marker so they stay
// distinguishable in monochrome output.
func (p *PlainStyleProvider) GetStyle(semantic SemanticType) TextStyle {
	switch semantic {
	case SemanticError:
		return NewPlainTextStyle("ERROR: ")
	case SemanticWarning:
		return NewPlainTextStyle("WARNING: ")
	default:
		return NewPlainTextStyle("")
	}
}

// IsAvailable implements StyleProvider.IsAvailable.
func (p *PlainStyleProvider) IsAvailable() bool {
	return true
}

// String returns a string representation for debugging.
func (p *PlainStyleProvider) String() string {
	return "PlainStyleProvider{}"
}
