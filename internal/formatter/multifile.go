package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/tordrt/attrtables/internal/schema"
)

// Output formats
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// New returns the single-stream formatter for format
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case FormatText, "":
		return NewTextFormatter(w), nil
	case FormatMarkdown:
		return NewMarkdownFormatter(w), nil
	default:
		return nil, errors.WithHint(
			errors.Newf("unknown format %q", format),
			"use text or markdown")
	}
}

// MultiFileFormatter writes a layout to one file per table plus an overview
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes the layout to multiple files
func (f *MultiFileFormatter) Format(l *schema.Layout) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	if err := f.writeFile("_overview", func(w io.Writer) { f.writeOverview(w, l) }); err != nil {
		return errors.Wrap(err, "failed to write overview")
	}

	for _, table := range l.Tables {
		err := f.writeFile(table.Name, func(w io.Writer) {
			if f.OutputFormat == FormatMarkdown {
				NewMarkdownFormatter(w).FormatTable(table)
				return
			}
			NewTextFormatter(w).formatTable(table)
		})
		if err != nil {
			return errors.Wrapf(err, "failed to write table file for %s", table.Name)
		}
	}
	return nil
}

func (f *MultiFileFormatter) writeFile(name string, write func(w io.Writer)) error {
	file, err := os.Create(filepath.Join(f.OutputDir, name+f.getFileExtension()))
	if err != nil {
		return err
	}
	write(file)
	return file.Close()
}

func (f *MultiFileFormatter) writeOverview(w io.Writer, l *schema.Layout) {
	ext := f.getFileExtension()
	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(w, "# Attribute Tables Overview\n\n")
		_, _ = fmt.Fprintf(w, "Each table has a corresponding file: `<table_name>%s`\n\n", ext)
		_, _ = fmt.Fprintf(w, "## Tables\n\n")
		for _, table := range l.Tables {
			_, _ = fmt.Fprintf(w, "- **%s** (%d attributes, %d/%d columns)\n",
				table.Name, len(table.Attributes), table.ColumnCount, l.TargetColumns)
		}
		return
	}

	_, _ = fmt.Fprintf(w, "ATTRIBUTE TABLES OVERVIEW\n")
	_, _ = fmt.Fprintf(w, "Each table has a file: <table_name>%s\n\n", ext)
	for _, table := range l.Tables {
		_, _ = fmt.Fprintf(w, "%s (%d attributes, %d/%d columns)\n",
			table.Name, len(table.Attributes), table.ColumnCount, l.TargetColumns)
	}
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}
