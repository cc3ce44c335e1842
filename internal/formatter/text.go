// Package formatter renders attribute table layouts.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/attrtables/internal/schema"
)

// Formatter renders a layout
type Formatter interface {
	Format(l *schema.Layout) error
}

// TextFormatter formats a layout as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the layout in compact text format
func (f *TextFormatter) Format(l *schema.Layout) error {
	_, _ = fmt.Fprintf(f.writer, "PREFIX %s (target %d columns, %d attributes)\n",
		l.Prefix, l.TargetColumns, l.AttributeCount())

	for _, table := range l.Tables {
		_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		f.formatTable(table)
	}
	return nil
}

func (f *TextFormatter) formatTable(table schema.Table) {
	_, _ = fmt.Fprintf(f.writer, "TABLE %s (%d columns, %d entities)\n",
		table.Name, table.ColumnCount, table.EntityCount)

	for _, attr := range table.Attributes {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", formatAttribute(attr))
	}

	if len(table.Groups) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  GROUPS:")
		for _, g := range table.Groups {
			_, _ = fmt.Fprintf(f.writer, "    %s [%s]: %s\n", g.Name, g.Column, strings.Join(g.Members, ", "))
		}
	}
}

func formatAttribute(attr schema.Attribute) string {
	parts := []string{attr.Name + ":", attr.Datatype}
	parts = append(parts, "["+strings.Join(attr.ValueColumns, ", ")+"]")
	if attr.Group != "" {
		parts = append(parts, "GROUP "+attr.Group)
	}
	parts = append(parts, fmt.Sprintf("%d values", attr.ValueCount))
	return strings.Join(parts, " ")
}
