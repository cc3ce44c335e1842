package db

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/tordrt/attrtables/internal/datatype"
)

// NewPostgresClient connects to PostgreSQL through the pgx driver
func NewPostgresClient(ctx context.Context, connString string) (*Client, error) {
	config, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse connection string")
	}

	db := stdlib.OpenDB(*config)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return NewClient(db, Postgres{}), nil
}

// Postgres is the PostgreSQL dialect; tables live in the current schema
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (Postgres) Placeholder() squirrel.PlaceholderFormat { return squirrel.Dollar }

func (Postgres) TableOptions() string { return "" }

// MaxIdentifierLength is NAMEDATALEN-1; longer names are truncated silently
func (Postgres) MaxIdentifierLength() int { return 63 }

// ColumnType renders types the way format_type() reports them
func (Postgres) ColumnType(t datatype.Type) (string, error) {
	switch t.Kind {
	case datatype.Integer:
		return "integer", nil
	case datatype.SmallInteger:
		return "smallint", nil
	case datatype.BigInteger:
		return "bigint", nil
	case datatype.Float, datatype.Double:
		return "double precision", nil
	case datatype.Numeric:
		return lengthType("numeric", t), nil
	case datatype.Boolean:
		return "boolean", nil
	case datatype.String:
		return lengthType("character varying", t), nil
	case datatype.Char:
		return lengthType("character", t), nil
	case datatype.Text:
		return "text", nil
	case datatype.Binary, datatype.VarBinary, datatype.Blob:
		return "bytea", nil
	case datatype.Date:
		return "date", nil
	case datatype.DateTime, datatype.Timestamp:
		return "timestamp without time zone", nil
	default:
		return "", errors.Newf("unsupported datatype %s for postgres", t)
	}
}
