// Package db is the storage-engine boundary: connection clients, per-engine
// SQL dialects and live column metadata introspection.
package db

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
)

// Querier is satisfied by *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Client manages a shared database connection pool and its dialect
type Client struct {
	db      *sql.DB
	dialect Dialect
}

// NewClient wraps a caller-supplied connection pool
func NewClient(db *sql.DB, dialect Dialect) *Client {
	return &Client{db: db, dialect: dialect}
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *Client) GetDB() *sql.DB {
	return c.db
}

// Dialect returns the SQL dialect of the connected engine
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// Builder returns a statement builder using the dialect's placeholders
func (c *Client) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(c.dialect.Placeholder())
}

// WithTx runs fn in a single transaction, committing on success and
// rolling back if fn returns an error or panics.
func (c *Client) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.WithSecondaryError(err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// ExecBuilder renders and executes a statement builder
func ExecBuilder(ctx context.Context, q Querier, b squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build statement")
	}
	return q.ExecContext(ctx, query, args...)
}

// QueryBuilder renders a select builder and runs it
func QueryBuilder(ctx context.Context, q Querier, b squirrel.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}
	return q.QueryContext(ctx, query, args...)
}

// HasTable reports whether a base table with exactly this name exists
func HasTable(ctx context.Context, q Querier, d Dialect, name string) (bool, error) {
	names, err := d.TableNames(ctx, q)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}
