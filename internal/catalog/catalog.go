// Package catalog stores attribute definitions: the declared name,
// datatype specification and optional computation group of each attribute.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"

	"github.com/tordrt/attrtables/internal/datatype"
	"github.com/tordrt/attrtables/internal/db"
)

// DefaultTable is the name of the definitions table
const DefaultTable = "attribute_definition"

const (
	nameLength     = 62
	datatypeLength = 256
)

// ErrNotFound is returned when no definition has the requested name
var ErrNotFound = errors.New("attribute definition not found")

// Definition is one declared attribute
type Definition struct {
	Name             string
	Datatype         string
	ComputationGroup string // empty when the attribute has no group
}

// Store reads and writes definitions through a caller-supplied Querier,
// so that every call joins the caller's transaction.
type Store struct {
	dialect db.Dialect
	builder squirrel.StatementBuilderType
	table   string
}

// NewStore creates a definitions store on the given table
func NewStore(client *db.Client, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{
		dialect: client.Dialect(),
		builder: client.Builder(),
		table:   table,
	}
}

// Table returns the definitions table name
func (s *Store) Table() string {
	return s.table
}

func (s *Store) quotedTable() string {
	return s.dialect.QuoteIdent(s.table)
}

// Exists reports whether the definitions table is present
func (s *Store) Exists(ctx context.Context, q db.Querier) (bool, error) {
	return db.HasTable(ctx, q, s.dialect, s.table)
}

// EnsureTable creates the definitions table and its group index if missing
func (s *Store) EnsureTable(ctx context.Context, q db.Querier) error {
	exists, err := s.Exists(ctx, q)
	if err != nil || exists {
		return err
	}

	nameType, err := s.dialect.ColumnType(datatype.Type{Kind: datatype.String, Args: []int{nameLength}})
	if err != nil {
		return err
	}
	specType, err := s.dialect.ColumnType(datatype.Type{Kind: datatype.String, Args: []int{datatypeLength}})
	if err != nil {
		return err
	}

	create := db.CreateTableSQL(s.dialect, s.table,
		s.dialect.QuoteIdent("name")+" "+nameType+" NOT NULL PRIMARY KEY",
		s.dialect.QuoteIdent("datatype")+" "+specType+" NOT NULL",
		s.dialect.QuoteIdent("computation_group")+" "+nameType)
	if _, err := q.ExecContext(ctx, create); err != nil {
		return errors.Wrapf(err, "failed to create table %s", s.table)
	}

	index := fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		s.dialect.QuoteIdent("ix_"+s.table+"_computation_group"),
		s.quotedTable(),
		s.dialect.QuoteIdent("computation_group"))
	if _, err := q.ExecContext(ctx, index); err != nil {
		return errors.Wrapf(err, "failed to index table %s", s.table)
	}
	return nil
}

// Drop removes the definitions table
func (s *Store) Drop(ctx context.Context, q db.Querier) error {
	if _, err := q.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.quotedTable()); err != nil {
		return errors.Wrapf(err, "failed to drop table %s", s.table)
	}
	return nil
}

// Insert records a new definition
func (s *Store) Insert(ctx context.Context, q db.Querier, def Definition) error {
	var group any
	if def.ComputationGroup != "" {
		group = def.ComputationGroup
	}
	_, err := db.ExecBuilder(ctx, q, s.builder.
		Insert(s.quotedTable()).
		Columns("name", "datatype", "computation_group").
		Values(def.Name, def.Datatype, group))
	if err != nil {
		return errors.Wrapf(err, "failed to insert definition of %s", def.Name)
	}
	return nil
}

// Get returns the definition with the given name
func (s *Store) Get(ctx context.Context, q db.Querier, name string) (Definition, error) {
	defs, err := s.selectWhere(ctx, q, squirrel.Eq{"name": name})
	if err != nil {
		return Definition{}, err
	}
	if len(defs) == 0 {
		return Definition{}, errors.Wrapf(ErrNotFound, "attribute %s", name)
	}
	return defs[0], nil
}

// Delete removes the definition with the given name
func (s *Store) Delete(ctx context.Context, q db.Querier, name string) error {
	res, err := db.ExecBuilder(ctx, q, s.builder.
		Delete(s.quotedTable()).
		Where(squirrel.Eq{"name": name}))
	if err != nil {
		return errors.Wrapf(err, "failed to delete definition of %s", name)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(ErrNotFound, "attribute %s", name)
	}
	return nil
}

// List returns all definitions ordered by name
func (s *Store) List(ctx context.Context, q db.Querier) ([]Definition, error) {
	return s.selectWhere(ctx, q, nil)
}

// NotIn returns the definitions whose name is not among names
func (s *Store) NotIn(ctx context.Context, q db.Querier, names []string) ([]Definition, error) {
	return s.selectWhere(ctx, q, squirrel.NotEq{"name": names})
}

// GroupMembers returns which of names are declared members of group
func (s *Store) GroupMembers(ctx context.Context, q db.Querier, group string, names []string) ([]string, error) {
	defs, err := s.selectWhere(ctx, q, squirrel.And{
		squirrel.Eq{"computation_group": group},
		squirrel.Eq{"name": names},
	})
	if err != nil {
		return nil, err
	}
	members := make([]string, len(defs))
	for i, d := range defs {
		members[i] = d.Name
	}
	return members, nil
}

func (s *Store) selectWhere(ctx context.Context, q db.Querier, pred squirrel.Sqlizer) ([]Definition, error) {
	query := s.builder.
		Select("name", "datatype", "computation_group").
		From(s.quotedTable()).
		OrderBy("name")
	if pred != nil {
		query = query.Where(pred)
	}

	rows, err := db.QueryBuilder(ctx, q, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", s.table)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var d Definition
		var group sql.NullString
		if err := rows.Scan(&d.Name, &d.Datatype, &group); err != nil {
			return nil, err
		}
		d.ComputationGroup = group.String
		defs = append(defs, d)
	}
	return defs, rows.Err()
}
