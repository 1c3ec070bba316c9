package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ThemeStyleProvider renders semantic types with lipgloss styles bound to one
// writer, so color detection follows the actual destination instead of stdout.
type ThemeStyleProvider struct {
	styles  map[SemanticType]lipgloss.Style
	profile termenv.Profile
}

// NewThemeStyleProvider creates the default theme for the given writer.
func NewThemeStyleProvider(w io.Writer) *ThemeStyleProvider {
	renderer := lipgloss.NewRenderer(w)

	return &ThemeStyleProvider{
		profile: termenv.NewOutput(w).ColorProfile(),
		styles: map[SemanticType]lipgloss.Style{
			SemanticPlain:     renderer.NewStyle(),
			SemanticInfo:      renderer.NewStyle().Foreground(lipgloss.Color("245")),
			SemanticSuccess:   renderer.NewStyle().Foreground(lipgloss.Color("42")),
			SemanticWarning:   renderer.NewStyle().Foreground(lipgloss.Color("214")),
			SemanticError:     renderer.NewStyle().Foreground(lipgloss.Color("196")),
			SemanticHighlight: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		},
	}
}

// GetStyle implements StyleProvider.GetStyle.
func (t *ThemeStyleProvider) GetStyle(semantic SemanticType) TextStyle {
	if style, ok := t.styles[semantic]; ok {
		return style
	}
	return t.styles[SemanticPlain]
}

// IsAvailable reports whether the destination supports colors at all.
func (t *ThemeStyleProvider) IsAvailable() bool {
	return t.profile != termenv.Ascii
}
