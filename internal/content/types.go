package content

// TableContent is a two-column or wider table such as the server status report
type TableContent struct {
	Headers []string
	Rows    [][]string
	Caption string
}

// RenderingPreferences controls how results are laid out
type RenderingPreferences struct {
	// Pretty prints containers one element per line.
	Pretty bool

	// Highlight runs formatted values through the syntax highlighter.
	Highlight bool

	// FoldLines is the line count above which a result is folded; 0 disables folding.
	FoldLines int

	// MaxColumnWidth truncates table cells; 0 means unlimited.
	MaxColumnWidth int
}

// DefaultPreferences returns the preferences used by the console
func DefaultPreferences() RenderingPreferences {
	return RenderingPreferences{
		Pretty:         true,
		Highlight:      true,
		FoldLines:      40,
		MaxColumnWidth: 40,
	}
}

// NewStatusTable builds a label/value table from ordered pairs
func NewStatusTable(caption string, pairs [][2]string) *TableContent {
	table := &TableContent{
		Headers: []string{"Field", "Value"},
		Caption: caption,
		Rows:    make([][]string, 0, len(pairs)),
	}
	for _, p := range pairs {
		table.Rows = append(table.Rows, []string{p[0], p[1]})
	}
	return table
}
