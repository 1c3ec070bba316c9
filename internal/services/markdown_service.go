package services

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"gorepl/internal/logger"
)

// MarkdownServiceName is the registry key of the markdown renderer.
const MarkdownServiceName = "markdown"

// MarkdownService renders package documentation and help text using Glamour.
type MarkdownService struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdownService creates a renderer for a glamour style ("auto", "dark",
// "light", "notty", "ascii"). An empty style means auto detection.
func NewMarkdownService(style string, width int) *MarkdownService {
	if style == "" {
		style = "auto"
	}
	if width <= 0 {
		width = 80
	}
	return &MarkdownService{style: style, width: width}
}

// Name returns the service name "markdown" for registration.
func (m *MarkdownService) Name() string {
	return MarkdownServiceName
}

// Initialize creates the terminal renderer.
func (m *MarkdownService) Initialize() error {
	option := glamour.WithAutoStyle()
	if m.style != "auto" {
		option = glamour.WithStandardStyle(m.style)
	}

	renderer, err := glamour.NewTermRenderer(option, glamour.WithWordWrap(m.width))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	m.renderer = renderer

	logger.Debug("MarkdownService initialized", "style", m.style, "width", m.width)
	return nil
}

// Render renders markdown content to terminal output.
func (m *MarkdownService) Render(markdown string) (string, error) {
	if m.renderer == nil {
		return "", fmt.Errorf("markdown service not initialized")
	}
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("markdown content cannot be empty")
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return rendered, nil
}
