package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/attrtables/internal/schema"
)

// MarkdownFormatter formats a layout as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the layout in markdown format
func (f *MarkdownFormatter) Format(l *schema.Layout) error {
	_, _ = fmt.Fprintln(f.writer, "# Attribute Tables")
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "Prefix `%s`, target %d columns per table, %d attributes.\n\n",
		l.Prefix, l.TargetColumns, l.AttributeCount())

	for _, table := range l.Tables {
		f.FormatTable(table)
	}
	return nil
}

// FormatTable formats a single table (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatTable(table schema.Table) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name)
	_, _ = fmt.Fprintf(f.writer, "%d columns, %d entities\n\n", table.ColumnCount, table.EntityCount)

	if len(table.Attributes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Attributes")
		_, _ = fmt.Fprintln(f.writer)
		for _, attr := range table.Attributes {
			details := []string{"`" + attr.Datatype + "`"}
			details = append(details, "columns "+strings.Join(attr.ValueColumns, ", "))
			if attr.ComputationColumn != "" {
				details = append(details, "computation "+attr.ComputationColumn)
			}
			if attr.Group != "" {
				details = append(details, "group "+attr.Group)
			}
			details = append(details, fmt.Sprintf("%d values", attr.ValueCount))
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", attr.Name, strings.Join(details, ", "))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(table.Groups) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Computation groups")
		_, _ = fmt.Fprintln(f.writer)
		for _, g := range table.Groups {
			_, _ = fmt.Fprintf(f.writer, "- %s (%s): %s\n", g.Name, g.Column, strings.Join(g.Members, ", "))
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}
