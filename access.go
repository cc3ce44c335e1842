package attrtables

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tordrt/attrtables/internal/db"
)

// queryChunkSize bounds the number of entity ids bound in one IN list
const queryChunkSize = 500

// SetAttribute sets the values of one attribute, see SetAttributes
func (t *Tables) SetAttribute(ctx context.Context, name string, values map[string]Values, computationID any) error {
	return t.SetAttributes(ctx, []string{name}, values, computationID)
}

// UnsetAttribute sets the value columns of an attribute to NULL for the
// given entities. Computation id columns are left unchanged.
func (t *Tables) UnsetAttribute(ctx context.Context, name string, entityIDs []string) error {
	values := make(map[string]Values, len(entityIDs))
	for _, id := range entityIDs {
		values[id] = Clear()
	}
	return t.SetAttributes(ctx, []string{name}, values, nil)
}

// SetAttributes writes the values of several attributes for a set of
// entities in one transaction. Each value sequence is aligned with the
// concatenated value columns of names, in the given order. Rows are created
// for entities not yet present in a table.
//
// If computationID is not nil and computation ids are enabled, it is
// written to the computation id columns given by LocationsForAttributes,
// and the columns to unset are set to NULL. A uuid.UUID is stored as its
// 16 raw bytes.
func (t *Tables) SetAttributes(ctx context.Context, names []string, values map[string]Values, computationID any) error {
	locs, err := t.LocationsForAttributes(names)
	if err != nil {
		return err
	}
	for entityID, v := range values {
		if !v.IsClear() && len(v.Elems()) != len(locs.ValueColumns) {
			return errors.Wrapf(ErrValueCount, "entity %s: got %d values for %d value columns",
				entityID, len(v.Elems()), len(locs.ValueColumns))
		}
	}

	writeComputation := t.computationIDs && computationID != nil
	cid := computationIDArg(computationID)

	positions := make(map[string]int, len(locs.ValueColumns))
	for i, col := range locs.ValueColumns {
		positions[col] = i
	}

	err = t.client.WithTx(ctx, func(tx *sql.Tx) error {
		for _, tl := range locs.Tables {
			for entityID, v := range values {
				assignments := make(map[string]any, len(tl.ValueColumns)+len(tl.SetComputation)+len(tl.UnsetComputation))
				for _, col := range tl.ValueColumns {
					if v.IsClear() {
						assignments[col] = nil
					} else {
						assignments[col] = v.Elems()[positions[col]]
					}
				}
				if writeComputation {
					for _, col := range tl.SetComputation {
						assignments[col] = cid
					}
					for _, col := range tl.UnsetComputation {
						assignments[col] = nil
					}
				}
				if err := t.upsertRow(ctx, tx, tl.Table, entityID, assignments, !v.IsClear() || writeComputation); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.logger.Debugw("Set attribute values",
		"attributes", names,
		"entities", len(values))
	return nil
}

// upsertRow updates the row of entityID in table tn, inserting it first
// if it does not exist and insert is true
func (t *Tables) upsertRow(ctx context.Context, q db.Querier, tn, entityID string, assignments map[string]any, insert bool) error {
	quotedTable := t.dialect.QuoteIdent(tn)
	quotedKey := t.dialect.QuoteIdent(EntityIDColumn)

	query, args, err := t.builder.
		Select("1").
		From(quotedTable).
		Where(squirrel.Eq{quotedKey: entityID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build query")
	}
	var one int
	err = q.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !insert {
			return nil
		}
		columns := []string{quotedKey}
		args := []any{entityID}
		for _, col := range sortedKeys(assignments) {
			columns = append(columns, t.dialect.QuoteIdent(col))
			args = append(args, assignments[col])
		}
		_, err = db.ExecBuilder(ctx, q, t.builder.Insert(quotedTable).Columns(columns...).Values(args...))
		return errors.Wrapf(err, "failed to insert entity %s into %s", entityID, tn)
	case err != nil:
		return errors.Wrapf(err, "failed to look up entity %s in %s", entityID, tn)
	}

	if len(assignments) == 0 {
		return nil
	}
	update := t.builder.Update(quotedTable).Where(squirrel.Eq{quotedKey: entityID})
	for _, col := range sortedKeys(assignments) {
		update = update.Set(t.dialect.QuoteIdent(col), assignments[col])
	}
	_, err = db.ExecBuilder(ctx, q, update)
	return errors.Wrapf(err, "failed to update entity %s in %s", entityID, tn)
}

// QueryAttribute returns the stored values of an attribute by entity id.
// With nil entityIDs all entities are returned. Entities whose value
// columns are all NULL are omitted.
func (t *Tables) QueryAttribute(ctx context.Context, name string, entityIDs []string) (map[string]Result, error) {
	loc, err := t.AttributeLocation(name)
	if err != nil {
		return nil, err
	}
	results := make(map[string]Result)
	if entityIDs != nil && len(entityIDs) == 0 {
		return results, nil
	}

	columns := []string{EntityIDColumn}
	columns = append(columns, loc.ValueColumns...)
	if loc.ComputationColumn != "" {
		columns = append(columns, loc.ComputationColumn)
	}
	if loc.GroupColumn != "" {
		columns = append(columns, loc.GroupColumn)
	}
	query := t.builder.
		Select(db.QuoteIdents(t.dialect, columns)...).
		From(t.dialect.QuoteIdent(loc.Table))

	err = t.client.WithTx(ctx, func(tx *sql.Tx) error {
		if entityIDs == nil {
			return t.collectResults(ctx, tx, query, loc, results)
		}
		quotedKey := t.dialect.QuoteIdent(EntityIDColumn)
		for start := 0; start < len(entityIDs); start += queryChunkSize {
			end := min(start+queryChunkSize, len(entityIDs))
			chunk := query.Where(squirrel.Eq{quotedKey: entityIDs[start:end]})
			if err := t.collectResults(ctx, tx, chunk, loc, results); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (t *Tables) collectResults(ctx context.Context, q db.Querier, query squirrel.SelectBuilder, loc Location, results map[string]Result) error {
	rows, err := db.QueryBuilder(ctx, q, query)
	if err != nil {
		return errors.Wrapf(err, "failed to query %s", loc.Table)
	}
	defer rows.Close()

	nvalues := len(loc.ValueColumns)
	for rows.Next() {
		var entityID string
		raw := make([]any, nvalues+optionalColumns(loc))
		dest := make([]any, 0, len(raw)+1)
		dest = append(dest, &entityID)
		for i := range raw {
			dest = append(dest, &raw[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return errors.Wrapf(err, "failed to scan %s", loc.Table)
		}

		vals := raw[:nvalues]
		if allNil(vals) {
			continue
		}
		r := Result{Values: append([]any(nil), vals...)}
		extra := raw[nvalues:]
		if loc.ComputationColumn != "" {
			r.ComputationID = extra[0]
			extra = extra[1:]
		}
		if r.ComputationID == nil && loc.GroupColumn != "" {
			r.ComputationID = extra[0]
		}
		results[entityID] = r
	}
	return rows.Err()
}

func optionalColumns(loc Location) int {
	n := 0
	if loc.ComputationColumn != "" {
		n++
	}
	if loc.GroupColumn != "" {
		n++
	}
	return n
}

func allNil(vals []any) bool {
	for _, v := range vals {
		if v != nil {
			return false
		}
	}
	return true
}

// computationIDArg converts a computation id to a driver argument
func computationIDArg(id any) any {
	switch v := id.(type) {
	case uuid.UUID:
		b := v
		return b[:]
	case *uuid.UUID:
		if v == nil {
			return nil
		}
		b := *v
		return b[:]
	default:
		return id
	}
}
