// Package content renders command results for the console: values in the
// runtime's literal notation with syntax highlighting, command and compile
// errors, and simple tables such as the server status report.
package content

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/universal-console/dgdconsole/internal/interfaces"
)

// valueLanguage is the lexer used for literal values; the runtime's
// notation is close enough to C for highlighting.
const valueLanguage = "c"

// Renderer implements interfaces.ContentRenderer
type Renderer struct {
	collapsibleManager *CollapsibleManager
	syntaxHighlighter  *SyntaxHighlighter
	themeManager       *ThemeManager
	mutex              sync.RWMutex
	preferences        RenderingPreferences
}

// SyntaxHighlighter provides code syntax highlighting capabilities using Chroma
type SyntaxHighlighter struct {
	formatter chroma.Formatter
	style     *chroma.Style
	theme     string
}

// ThemeManager holds the lipgloss styles derived from the active theme
type ThemeManager struct {
	currentTheme   *interfaces.Theme
	lipglossStyles map[string]lipgloss.Style
}

// NewRenderer creates a renderer with the given preferences
func NewRenderer(preferences RenderingPreferences) (*Renderer, error) {
	highlighter, err := NewSyntaxHighlighter("monokai", "terminal256")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize syntax highlighter: %w", err)
	}

	return &Renderer{
		collapsibleManager: NewCollapsibleManager(preferences.FoldLines),
		syntaxHighlighter:  highlighter,
		themeManager:       NewThemeManager(),
		preferences:        preferences,
	}, nil
}

// Collapsible returns the fold state shared with the UI
func (r *Renderer) Collapsible() *CollapsibleManager {
	return r.collapsibleManager
}

// RenderResult formats a complete command result. Compile diagnostics come
// first, then either the error or the value.
func (r *Renderer) RenderResult(result interfaces.CodeResult, theme *interfaces.Theme) (string, error) {
	r.applyTheme(theme)

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var sections []string
	for _, d := range result.CompileErrors {
		sections = append(sections, r.themeManager.Style("compile").Render(fmt.Sprintf("%s, %d: %s", d.File, d.Line, d.Message)))
	}

	if !result.Success {
		message := stripCompileLines(result.Error, result.CompileErrors)
		if message == "" && len(result.CompileErrors) == 0 {
			message = "command failed"
		}
		if message != "" {
			sections = append(sections, r.themeManager.Style("error").Render(message))
		}
		return strings.Join(sections, "\n"), nil
	}

	value, err := r.renderValueLocked(result.Result)
	if err != nil {
		return "", err
	}
	sections = append(sections, value)
	return strings.Join(sections, "\n"), nil
}

// RenderValue formats a bare result value
func (r *Renderer) RenderValue(value any, theme *interfaces.Theme) (string, error) {
	r.applyTheme(theme)

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.renderValueLocked(value)
}

func (r *Renderer) renderValueLocked(value any) (string, error) {
	text := FormatValue(value, r.preferences.Pretty)
	if !r.preferences.Highlight {
		return text, nil
	}

	highlighted, err := r.syntaxHighlighter.Highlight(text, valueLanguage)
	if err != nil {
		return text, fmt.Errorf("failed to highlight result: %w", err)
	}
	return strings.TrimRight(highlighted, "\n"), nil
}

// RenderTable formats a table with a styled header row and an optional caption
func (r *Renderer) RenderTable(table *TableContent, theme *interfaces.Theme) string {
	r.applyTheme(theme)

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if table == nil || len(table.Headers) == 0 {
		return ""
	}

	widths := r.calculateColumnWidths(table)

	var lines []string
	if table.Caption != "" {
		lines = append(lines, r.themeManager.Style("caption").Render(table.Caption))
	}
	lines = append(lines, r.formatTableRow(table.Headers, widths, true))
	lines = append(lines, r.createTableSeparator(widths))
	for _, row := range table.Rows {
		lines = append(lines, r.formatTableRow(row, widths, false))
	}
	return strings.Join(lines, "\n")
}

// RenderMessage styles a status line by kind: "error", "info" or "success"
func (r *Renderer) RenderMessage(kind, message string) string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.themeManager.Style(kind).Render(message)
}

func (r *Renderer) applyTheme(theme *interfaces.Theme) {
	if theme == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.themeManager.currentTheme == theme {
		return
	}
	r.themeManager.SetTheme(theme)
	if theme.Code != "" {
		// Unknown chroma styles keep the previous one.
		_ = r.syntaxHighlighter.SetTheme(theme.Code)
	}
}

func (r *Renderer) calculateColumnWidths(table *TableContent) []int {
	widths := make([]int, len(table.Headers))
	for i, header := range table.Headers {
		widths[i] = lipgloss.Width(header)
	}
	for _, row := range table.Rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	if limit := r.preferences.MaxColumnWidth; limit > 0 {
		for i := range widths {
			if widths[i] > limit {
				widths[i] = limit
			}
		}
	}
	return widths
}

func (r *Renderer) formatTableRow(cells []string, widths []int, isHeader bool) string {
	formatted := make([]string, 0, len(widths))
	for i, width := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if len(cell) > width && width > 3 {
			cell = cell[:width-3] + "..."
		}
		padded := fmt.Sprintf("%-*s", width, cell)
		if isHeader {
			padded = r.themeManager.Style("table_header").Render(padded)
		}
		formatted = append(formatted, padded)
	}
	return "│ " + strings.Join(formatted, " │ ") + " │"
}

func (r *Renderer) createTableSeparator(widths []int) string {
	parts := make([]string, 0, len(widths))
	for _, width := range widths {
		parts = append(parts, strings.Repeat("─", width))
	}
	return "├─" + strings.Join(parts, "─┼─") + "─┤"
}

// stripCompileLines removes the diagnostic lines the parser prefixed to the error text.
func stripCompileLines(message string, diags []interfaces.CompileError) string {
	for _, d := range diags {
		message = strings.Replace(message, d.Raw+"\n", "", 1)
	}
	return strings.TrimSpace(message)
}

// NewSyntaxHighlighter creates a highlighter for a chroma style and formatter
func NewSyntaxHighlighter(themeName, formatterName string) (*SyntaxHighlighter, error) {
	formatter := formatters.Get(formatterName)
	if formatter == nil {
		formatter = formatters.Fallback
	}

	style := styles.Get(themeName)
	if style == nil {
		style = styles.Fallback
	}

	return &SyntaxHighlighter{
		formatter: formatter,
		style:     style,
		theme:     themeName,
	}, nil
}

// Highlight applies syntax highlighting to code
func (sh *SyntaxHighlighter) Highlight(code, language string) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}

	var highlighted strings.Builder
	if err := sh.formatter.Format(&highlighted, sh.style, iterator); err != nil {
		return code, err
	}
	return highlighted.String(), nil
}

// SetTheme switches the chroma style
func (sh *SyntaxHighlighter) SetTheme(themeName string) error {
	style, ok := styles.Registry[themeName]
	if !ok {
		return fmt.Errorf("theme '%s' not found", themeName)
	}

	sh.style = style
	sh.theme = themeName
	return nil
}

// Theme returns the active chroma style name
func (sh *SyntaxHighlighter) Theme() string {
	return sh.theme
}

// NewThemeManager creates a theme manager with default styles
func NewThemeManager() *ThemeManager {
	tm := &ThemeManager{}
	tm.initializeDefaultStyles()
	return tm
}

// SetTheme rebuilds the styles from theme colors
func (tm *ThemeManager) SetTheme(theme *interfaces.Theme) {
	tm.currentTheme = theme
	tm.buildLipglossStyles()
}

// Style returns a named style, or an unstyled one
func (tm *ThemeManager) Style(name string) lipgloss.Style {
	if style, ok := tm.lipglossStyles[name]; ok {
		return style
	}
	return lipgloss.NewStyle()
}

func (tm *ThemeManager) initializeDefaultStyles() {
	tm.lipglossStyles = map[string]lipgloss.Style{
		"error":        lipgloss.NewStyle().Foreground(lipgloss.Color("#dc3545")).Bold(true),
		"compile":      lipgloss.NewStyle().Foreground(lipgloss.Color("#ffc107")),
		"info":         lipgloss.NewStyle().Foreground(lipgloss.Color("#17a2b8")),
		"success":      lipgloss.NewStyle().Foreground(lipgloss.Color("#28a745")),
		"caption":      lipgloss.NewStyle().Bold(true),
		"table_header": lipgloss.NewStyle().Bold(true).Underline(true),
	}
}

func (tm *ThemeManager) buildLipglossStyles() {
	tm.initializeDefaultStyles()
	if tm.currentTheme == nil {
		return
	}

	set := func(name, color string) {
		if color != "" {
			tm.lipglossStyles[name] = tm.lipglossStyles[name].Foreground(lipgloss.Color(color))
		}
	}
	set("error", tm.currentTheme.Error)
	set("compile", tm.currentTheme.Warning)
	set("info", tm.currentTheme.Info)
	set("success", tm.currentTheme.Success)
}
