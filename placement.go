package attrtables

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/tordrt/attrtables/internal/db"
)

// newSuffix returns the smallest non-negative integer not yet used as suffix
func (t *Tables) newSuffix() string {
	for i := 0; ; i++ {
		sfx := strconv.Itoa(i)
		if !t.index.hasTable(sfx) {
			return sfx
		}
	}
}

// columnsNeeded returns how many columns an attribute with nvalues value
// columns adds to the table with suffix sfx
func (t *Tables) columnsNeeded(sfx string, nvalues int, group string) int {
	needed := nvalues
	if t.computationIDs {
		needed++
	}
	if t.groups && group != "" {
		if _, ok := t.index.t2g[sfx][group]; !ok {
			needed++
		}
	}
	return needed
}

// placeForNewAttribute chooses the table for a new attribute, first fit in
// suffix order. An empty table is always chosen, even if the attribute
// alone exceeds the column budget. If no table fits, a new one is created
// through q and created is true; the caller must then add it to the index
// once q's transaction commits.
func (t *Tables) placeForNewAttribute(ctx context.Context, q db.Querier, nvalues int, group string) (sfx string, created bool, err error) {
	for _, sfx := range t.index.order {
		ncols := t.index.ncols[sfx]
		if ncols == 1 {
			return sfx, false, nil
		}
		if ncols+t.columnsNeeded(sfx, nvalues, group) <= t.targetColumns {
			return sfx, false, nil
		}
	}

	sfx = t.newSuffix()
	if err := t.createTableSQL(ctx, q, sfx); err != nil {
		return "", false, err
	}
	return sfx, true, nil
}

func (t *Tables) createTableSQL(ctx context.Context, q db.Querier, sfx string) error {
	tn := t.TableName(sfx)
	stmt := db.CreateTableSQL(t.dialect, tn,
		t.dialect.QuoteIdent(EntityIDColumn)+" "+t.entityIDType+" NOT NULL PRIMARY KEY")
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return errors.Wrapf(err, "failed to create table %s", tn)
	}
	return nil
}

func (t *Tables) dropTableSQL(ctx context.Context, q db.Querier, tn string, ifExists bool) error {
	stmt := "DROP TABLE "
	if ifExists {
		stmt += "IF EXISTS "
	}
	if _, err := q.ExecContext(ctx, stmt+t.dialect.QuoteIdent(tn)); err != nil {
		return errors.Wrapf(err, "failed to drop table %s", tn)
	}
	return nil
}

// dropStaging removes a staging table left over by an interrupted load
func (t *Tables) dropStaging(ctx context.Context, q db.Querier) error {
	return t.dropTableSQL(ctx, q, t.TableName(t.stagingSuffix), true)
}

// CreateTable creates an empty value table with the given suffix
func (t *Tables) CreateTable(ctx context.Context, sfx string) error {
	sfx = NormalizeSuffix(sfx)
	if sfx == "" {
		return errors.New("table suffix is empty")
	}
	if t.index.hasTable(sfx) || sfx == NormalizeSuffix(t.stagingSuffix) {
		return errors.Wrapf(ErrTableSuffixCollision, "suffix %s", sfx)
	}
	err := t.client.WithTx(ctx, func(tx *sql.Tx) error {
		return t.createTableSQL(ctx, tx, sfx)
	})
	if err != nil {
		return err
	}
	t.index.addTable(sfx)
	sortSuffixes(t.index.order)

	t.logger.Debugw("Created value table", "table", t.TableName(sfx))
	return nil
}

// DropTable drops the value table with the given suffix. The attributes it
// held are no longer resident; their definitions are kept.
func (t *Tables) DropTable(ctx context.Context, sfx string) error {
	sfx = NormalizeSuffix(sfx)
	if !t.index.hasTable(sfx) {
		return errors.Wrapf(ErrUnknownTable, "suffix %s", sfx)
	}
	tn := t.TableName(sfx)
	err := t.client.WithTx(ctx, func(tx *sql.Tx) error {
		return t.dropTableSQL(ctx, tx, tn, false)
	})
	if err != nil {
		return err
	}
	t.index.removeTable(sfx)

	t.logger.Debugw("Dropped value table", "table", tn)
	return nil
}

// DropAll drops every value table, the staging table and the definitions
// table. The instance is empty afterwards; a definitions table is created
// again on the next New or Open.
func (t *Tables) DropAll(ctx context.Context) error {
	err := t.client.WithTx(ctx, func(tx *sql.Tx) error {
		for _, sfx := range t.index.order {
			if err := t.dropTableSQL(ctx, tx, t.TableName(sfx), false); err != nil {
				return err
			}
		}
		if err := t.dropStaging(ctx, tx); err != nil {
			return err
		}
		return t.catalog.Drop(ctx, tx)
	})
	if err != nil {
		return err
	}
	t.index = newLocationIndex()

	t.logger.Infow("Dropped all attribute tables", "prefix", t.prefix)
	return nil
}
