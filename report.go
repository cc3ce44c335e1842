package attrtables

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/tordrt/attrtables/internal/catalog"
	"github.com/tordrt/attrtables/internal/db"
	"github.com/tordrt/attrtables/internal/schema"
)

// Describe reports the current placement of all attributes, with the
// number of entities holding a value of each
func (t *Tables) Describe(ctx context.Context) (*schema.Layout, error) {
	var layout *schema.Layout
	err := t.client.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		layout, err = t.describe(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return layout, nil
}

func (t *Tables) describe(ctx context.Context, q db.Querier) (*schema.Layout, error) {
	defs, err := t.catalog.List(ctx, q)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]catalog.Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	layout := &schema.Layout{
		Prefix:        t.prefix,
		TargetColumns: t.targetColumns,
	}
	for _, sfx := range t.index.order {
		tn := t.TableName(sfx)
		table := schema.Table{
			Suffix:      sfx,
			Name:        tn,
			ColumnCount: t.index.ncols[sfx],
		}
		if err := t.countRows(ctx, q, tn, "", &table.EntityCount); err != nil {
			return nil, err
		}

		for _, name := range sortedKeys(t.index.t2a[sfx]) {
			attr := schema.Attribute{
				Name:              name,
				Datatype:          byName[name].Datatype,
				Group:             t.AttributeGroup(name),
				ValueColumns:      t.AttributeValueColumns(name),
				ComputationColumn: t.AttributeComputationColumn(name),
			}
			if err := t.countRows(ctx, q, tn, t.anyValue(attr.ValueColumns), &attr.ValueCount); err != nil {
				return nil, err
			}
			table.Attributes = append(table.Attributes, attr)
		}

		for _, g := range sortedKeys(t.index.t2g[sfx]) {
			table.Groups = append(table.Groups, schema.Group{
				Name:    g,
				Column:  groupColumnName(g),
				Members: sortedMembers(t.index.t2g[sfx][g]),
			})
		}
		layout.Tables = append(layout.Tables, table)
	}
	return layout, nil
}

// anyValue renders a condition true when one of the columns is not NULL
func (t *Tables) anyValue(columns []string) string {
	cond := ""
	for i, col := range columns {
		if i > 0 {
			cond += " OR "
		}
		cond += t.dialect.QuoteIdent(col) + " IS NOT NULL"
	}
	return cond
}

func (t *Tables) countRows(ctx context.Context, q db.Querier, tn, where string, n *int) error {
	query := t.builder.Select("COUNT(*)").From(t.dialect.QuoteIdent(tn))
	if where != "" {
		query = query.Where(fmt.Sprintf("(%s)", where))
	}
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build query")
	}
	if err := q.QueryRowContext(ctx, sqlStr, args...).Scan(n); err != nil {
		return errors.Wrapf(err, "failed to count rows of %s", tn)
	}
	return nil
}
