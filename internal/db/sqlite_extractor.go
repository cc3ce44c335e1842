package db

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/tordrt/attrtables/internal/schema"
)

// TableNames returns the user tables of the database
func (SQLite) TableNames(ctx context.Context, q Querier) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tables")
	}
	defer rows.Close()

	var tableList []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tableList = append(tableList, tableName)
	}

	return tableList, rows.Err()
}

// Columns extracts column information for a table
func (d SQLite) Columns(ctx context.Context, q Querier, tableName string) ([]schema.Column, error) {
	query := "PRAGMA table_info(" + d.QuoteIdent(tableName) + ")"

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read columns of %s", tableName)
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}

		columns = append(columns, schema.Column{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0 && pk == 0,
		})
	}

	return columns, rows.Err()
}
