package attrtables

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/tordrt/attrtables/internal/catalog"
	"github.com/tordrt/attrtables/internal/datatype"
	"github.com/tordrt/attrtables/internal/db"
)

type columnDef struct {
	name string
	typ  string
}

// CreateAttribute declares an attribute, records its definition and adds
// its columns to the first value table with room for them. group is the
// optional computation group; it is ignored when groups are disabled.
func (t *Tables) CreateAttribute(ctx context.Context, name, spec, group string) error {
	if name == "" {
		return errors.New("attribute name is empty")
	}
	if sfx, ok := t.index.a2t[name]; ok {
		return errors.Wrapf(ErrDuplicateAttribute, "attribute %s, in table %s", name, t.TableName(sfx))
	}
	types, err := datatype.Parse(spec)
	if err != nil {
		return err
	}
	if !t.groups {
		group = ""
	}
	if err := t.checkIdentifiers(name, len(types), group); err != nil {
		return err
	}

	coldefs := make([]columnDef, 0, len(types)+2)
	for i, col := range valueColumnNames(name, len(types)) {
		typ, err := t.dialect.ColumnType(types[i])
		if err != nil {
			return errors.Wrapf(err, "attribute %s", name)
		}
		coldefs = append(coldefs, columnDef{col, typ})
	}

	var (
		sfx      string
		created  bool
		newGroup bool
	)
	err = t.client.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := t.catalog.Get(ctx, tx, name); err == nil {
			return errors.Wrapf(ErrDuplicateAttribute, "attribute %s has a definition", name)
		} else if !errors.Is(err, catalog.ErrNotFound) {
			return err
		}

		var err error
		sfx, created, err = t.placeForNewAttribute(ctx, tx, len(types), group)
		if err != nil {
			return err
		}
		if t.computationIDs {
			coldefs = append(coldefs, columnDef{computationColumnName(name), t.computationType})
		}
		if group != "" {
			if _, ok := t.index.t2g[sfx][group]; !ok {
				newGroup = true
				coldefs = append(coldefs, columnDef{groupColumnName(group), t.computationType})
			}
		}

		if err := t.catalog.Insert(ctx, tx, catalog.Definition{
			Name:             name,
			Datatype:         spec,
			ComputationGroup: group,
		}); err != nil {
			return err
		}
		return t.addColumns(ctx, tx, t.TableName(sfx), coldefs)
	})
	if err != nil {
		return err
	}

	if created {
		t.index.addTable(sfx)
		sortSuffixes(t.index.order)
	}
	t.index.addAttribute(sfx, name, len(types), group, len(coldefs))

	t.logger.Infow("Created attribute",
		"attribute", name,
		"datatype", spec,
		"group", group,
		"table", t.TableName(sfx),
		"new_table", created,
		"new_group_column", newGroup)
	return nil
}

// DestroyAttribute drops the columns of an attribute and deletes its
// definition. The group column is dropped with the last member of the
// group in the table.
func (t *Tables) DestroyAttribute(ctx context.Context, name string) error {
	sfx, ok := t.index.a2t[name]
	if !ok {
		return errors.Wrapf(ErrUnknownAttribute, "attribute %s", name)
	}
	tn := t.TableName(sfx)
	nvalues := t.index.t2a[sfx][name]
	group := t.index.groupOf(name)

	columns := valueColumnNames(name, nvalues)
	if t.computationIDs {
		columns = append(columns, computationColumnName(name))
	}
	if group != "" && t.index.t2g[sfx][group].Size() == 1 {
		columns = append(columns, groupColumnName(group))
	}

	err := t.client.WithTx(ctx, func(tx *sql.Tx) error {
		if err := t.dropColumns(ctx, tx, tn, columns); err != nil {
			return err
		}
		return t.catalog.Delete(ctx, tx, name)
	})
	if err != nil {
		return err
	}
	t.index.removeAttribute(sfx, name, group, len(columns))

	t.logger.Infow("Destroyed attribute",
		"attribute", name,
		"table", tn,
		"dropped_columns", len(columns))
	return nil
}

// addColumns issues one ALTER TABLE per column, which every supported
// engine accepts
func (t *Tables) addColumns(ctx context.Context, q db.Querier, tn string, coldefs []columnDef) error {
	quotedTable := t.dialect.QuoteIdent(tn)
	for _, c := range coldefs {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quotedTable, t.dialect.QuoteIdent(c.name), c.typ)
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to add column %s to %s", c.name, tn)
		}
	}
	return nil
}

func (t *Tables) dropColumns(ctx context.Context, q db.Querier, tn string, columns []string) error {
	quotedTable := t.dialect.QuoteIdent(tn)
	for _, col := range columns {
		stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quotedTable, t.dialect.QuoteIdent(col))
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to drop column %s from %s", col, tn)
		}
	}
	return nil
}

// checkIdentifiers rejects attributes whose column names the engine would
// truncate
func (t *Tables) checkIdentifiers(name string, nvalues int, group string) error {
	limit := t.dialect.MaxIdentifierLength()
	if limit == 0 {
		return nil
	}
	columns := valueColumnNames(name, nvalues)
	if t.computationIDs {
		columns = append(columns, computationColumnName(name))
	}
	if group != "" {
		columns = append(columns, groupColumnName(group))
	}
	for _, col := range columns {
		if len(col) > limit {
			return errors.WithHint(
				errors.Newf("column name %s of attribute %s is longer than %d bytes", col, name, limit),
				"use a shorter attribute or group name")
		}
	}
	return nil
}
