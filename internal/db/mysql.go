package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/attrtables/internal/datatype"
)

// NewMySQLClient connects to MySQL using a go-sql-driver DSN
func NewMySQLClient(ctx context.Context, dsn string) (*Client, error) {
	config, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse connection string")
	}
	if config.DBName == "" {
		return nil, errors.WithHint(
			errors.New("no database selected"),
			"append the database name to the connection string, e.g. user:pass@tcp(host:3306)/dbname")
	}
	config.ParseTime = true

	connector, err := mysql.NewConnector(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create connector")
	}
	db := sql.OpenDB(connector)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return NewClient(db, MySQL{}), nil
}

// MySQL is the MySQL/MariaDB dialect. DDL statements commit implicitly on
// this engine, so schema changes are not undone by a rollback.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (MySQL) Placeholder() squirrel.PlaceholderFormat { return squirrel.Question }

func (MySQL) MaxIdentifierLength() int { return 64 }

// TableOptions pins a binary collation: entity ids and attribute names
// compare byte for byte, as on the other engines.
func (MySQL) TableOptions() string {
	return "DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_bin"
}

// ColumnType renders types the way information_schema.columns.column_type
// reports them. BOOLEAN comes back as tinyint(1).
func (MySQL) ColumnType(t datatype.Type) (string, error) {
	switch t.Kind {
	case datatype.Integer:
		return "int", nil
	case datatype.SmallInteger:
		return "smallint", nil
	case datatype.BigInteger:
		return "bigint", nil
	case datatype.Float:
		return "float", nil
	case datatype.Double:
		return "double", nil
	case datatype.Numeric:
		return lengthType("decimal", t), nil
	case datatype.Boolean:
		return "BOOLEAN", nil
	case datatype.String:
		if len(t.Args) == 0 {
			return "", errors.Newf("%s needs a length on mysql, e.g. String(64)", t)
		}
		return lengthType("varchar", t), nil
	case datatype.Char:
		return lengthType("char", t), nil
	case datatype.Text:
		return "text", nil
	case datatype.Binary:
		return lengthType("binary", t), nil
	case datatype.VarBinary:
		if len(t.Args) == 0 {
			return "", errors.Newf("%s needs a length on mysql", t)
		}
		return lengthType("varbinary", t), nil
	case datatype.Blob:
		return "blob", nil
	case datatype.Date:
		return "date", nil
	case datatype.DateTime:
		return "datetime", nil
	case datatype.Timestamp:
		return "timestamp", nil
	default:
		return "", errors.Newf("unsupported datatype %s for mysql", t)
	}
}
