package db

import (
	"context"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/tordrt/attrtables/internal/datatype"
	"github.com/tordrt/attrtables/internal/schema"
)

// Dialect hides the engine specific parts of DDL, quoting and introspection
type Dialect interface {
	// Name returns the engine name: "sqlite", "mysql" or "postgres"
	Name() string
	// QuoteIdent quotes a table or column name
	QuoteIdent(name string) string
	// Placeholder returns the bind parameter format
	Placeholder() squirrel.PlaceholderFormat
	// ColumnType renders the column type for a datatype element
	ColumnType(t datatype.Type) (string, error)
	// MaxIdentifierLength is the longest table or column name in bytes the
	// engine keeps intact, 0 if unlimited
	MaxIdentifierLength() int
	// TableOptions is appended to CREATE TABLE statements, may be empty
	TableOptions() string
	// TableNames lists the base tables of the current schema
	TableNames(ctx context.Context, q Querier) ([]string, error)
	// Columns lists the columns of a table in ordinal order
	Columns(ctx context.Context, q Querier, table string) ([]schema.Column, error)
}

// QuoteIdents quotes each name
func QuoteIdents(d Dialect, names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return quoted
}

// CreateTableSQL renders CREATE TABLE name (columns) with the dialect's
// table options
func CreateTableSQL(d Dialect, name string, columns ...string) string {
	stmt := "CREATE TABLE " + d.QuoteIdent(name) + " (" + strings.Join(columns, ", ") + ")"
	if opts := d.TableOptions(); opts != "" {
		stmt += " " + opts
	}
	return stmt
}

// lengthType renders name(n), or name alone when no length was given
func lengthType(name string, t datatype.Type) string {
	if len(t.Args) == 0 {
		return name
	}
	return name + "(" + joinArgs(t.Args) + ")"
}

func joinArgs(args []int) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = strconv.Itoa(a)
	}
	return strings.Join(parts, ",")
}
