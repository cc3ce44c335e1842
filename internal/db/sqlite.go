package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/attrtables/internal/datatype"
)

// SQLiteBusyTimeoutMS is how long a connection waits on a locked database
const SQLiteBusyTimeoutMS = 5000

// NewSQLiteClient opens a SQLite database file. Every pooled connection
// waits SQLiteBusyTimeoutMS on a locked database.
func NewSQLiteClient(ctx context.Context, path string) (*Client, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := fmt.Sprintf("%s%s_busy_timeout=%d", path, sep, SQLiteBusyTimeoutMS)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return NewClient(db, SQLite{}), nil
}

// SQLite is the dialect of SQLite 3.35 or later (DROP COLUMN support)
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

// QuoteIdent uses standard double quoting, shared with PostgreSQL
func (SQLite) QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (SQLite) Placeholder() squirrel.PlaceholderFormat { return squirrel.Question }

func (SQLite) TableOptions() string { return "" }

func (SQLite) MaxIdentifierLength() int { return 0 }

// ColumnType renders declared types verbatim; SQLite reports them back as
// written, which keeps the consistency check exact.
func (SQLite) ColumnType(t datatype.Type) (string, error) {
	switch t.Kind {
	case datatype.Integer:
		return "INTEGER", nil
	case datatype.SmallInteger:
		return "SMALLINT", nil
	case datatype.BigInteger:
		return "BIGINT", nil
	case datatype.Float:
		return "FLOAT", nil
	case datatype.Double:
		return "DOUBLE", nil
	case datatype.Numeric:
		return lengthType("NUMERIC", t), nil
	case datatype.Boolean:
		return "BOOLEAN", nil
	case datatype.String:
		return lengthType("VARCHAR", t), nil
	case datatype.Char:
		return lengthType("CHAR", t), nil
	case datatype.Text:
		return "TEXT", nil
	case datatype.Binary:
		return lengthType("BINARY", t), nil
	case datatype.VarBinary:
		return lengthType("VARBINARY", t), nil
	case datatype.Blob:
		return "BLOB", nil
	case datatype.Date:
		return "DATE", nil
	case datatype.DateTime:
		return "DATETIME", nil
	case datatype.Timestamp:
		return "TIMESTAMP", nil
	default:
		return "", errors.Newf("unsupported datatype %s for sqlite", t)
	}
}
