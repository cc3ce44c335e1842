package attrtables

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/tordrt/attrtables/internal/catalog"
	"github.com/tordrt/attrtables/internal/datatype"
	"github.com/tordrt/attrtables/internal/db"
	"github.com/tordrt/attrtables/internal/schema"
)

// CheckConsistency verifies that the definitions and the live value tables
// agree. The location index is rebuilt from the live schema first, so the
// instance reflects changes made by other processes afterwards.
//
// It fails with ErrMissingDefinitionsTable, ErrMultiTableAttribute,
// ErrOrphanedDefinition or ErrSchemaMismatch.
func (t *Tables) CheckConsistency(ctx context.Context) error {
	return t.client.WithTx(ctx, func(tx *sql.Tx) error {
		return t.checkConsistency(ctx, tx)
	})
}

func (t *Tables) checkConsistency(ctx context.Context, q db.Querier) error {
	exists, err := t.catalog.Exists(ctx, q)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Wrapf(ErrMissingDefinitionsTable, "table %s", t.catalog.Table())
	}

	ix, err := t.rebuildIndex(ctx, q)
	if err != nil {
		return err
	}
	t.index = ix

	orphans, err := t.catalog.NotIn(ctx, q, ix.attributeNames())
	if err != nil {
		return err
	}
	if len(orphans) > 0 {
		names := make([]string, len(orphans))
		for i, d := range orphans {
			names[i] = d.Name
		}
		return errors.Wrapf(ErrOrphanedDefinition, "%s", strings.Join(names, ", "))
	}

	for _, sfx := range ix.order {
		if err := t.checkTable(ctx, q, sfx); err != nil {
			return err
		}
	}

	t.logger.Debugw("Consistency check passed",
		"tables", len(ix.order),
		"attributes", len(ix.a2t))
	return nil
}

func (t *Tables) checkTable(ctx context.Context, q db.Querier, sfx string) error {
	tn := t.TableName(sfx)
	live, err := t.dialect.Columns(ctx, q, tn)
	if err != nil {
		return err
	}
	columns := make(map[string]schema.Column, len(live))
	for _, c := range live {
		columns[c.Name] = c
	}

	for _, name := range sortedKeys(t.index.t2a[sfx]) {
		def, err := t.catalog.Get(ctx, q, name)
		if errors.Is(err, catalog.ErrNotFound) {
			return errors.Wrapf(ErrSchemaMismatch, "columns of attribute %s in table %s have no definition", name, tn)
		}
		if err != nil {
			return err
		}
		if t.computationIDs {
			if err := checkColumn(columns, computationColumnName(name), t.computationType,
				"computation id of attribute "+name); err != nil {
				return errors.Wrapf(err, "table %s", tn)
			}
		}
		types, err := datatype.Parse(def.Datatype)
		if err != nil {
			return errors.Wrapf(err, "definition of attribute %s", name)
		}
		if t.groups && def.ComputationGroup != "" {
			if _, ok := t.index.t2g[sfx][def.ComputationGroup]; !ok {
				return errors.Wrapf(ErrSchemaMismatch,
					"column for computation group %s of attribute %s not found in table %s",
					def.ComputationGroup, name, tn)
			}
		}
		if n := t.index.t2a[sfx][name]; n != len(types) {
			return errors.Wrapf(ErrSchemaMismatch,
				"attribute %s has %d value columns in table %s, its datatype %s has %d elements",
				name, n, tn, def.Datatype, len(types))
		}
		for i, col := range valueColumnNames(name, len(types)) {
			expected, err := t.dialect.ColumnType(types[i])
			if err != nil {
				return err
			}
			if err := checkColumn(columns, col, expected, "value of attribute "+name); err != nil {
				return errors.Wrapf(err, "table %s", tn)
			}
		}
	}

	for _, g := range sortedKeys(t.index.t2g[sfx]) {
		if t.index.t2g[sfx][g].Empty() {
			return errors.Wrapf(ErrSchemaMismatch,
				"computation id column for group %s found in table %s, but no attribute of this group in the table",
				g, tn)
		}
		if err := checkColumn(columns, groupColumnName(g), t.computationType,
			"computation id of attribute group "+g); err != nil {
			return errors.Wrapf(err, "table %s", tn)
		}
	}
	return nil
}

func checkColumn(columns map[string]schema.Column, name, expected, desc string) error {
	col, ok := columns[name]
	if !ok {
		return errors.Wrapf(ErrSchemaMismatch, "missing column %s (%s)", name, desc)
	}
	if !datatype.Compatible(expected, col.Type) {
		return errors.Wrapf(ErrSchemaMismatch, "wrong datatype for column %s (%s): found %s, expected %s",
			name, desc, col.Type, expected)
	}
	return nil
}
