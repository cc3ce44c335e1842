package attrtables

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"

	"github.com/tordrt/attrtables/internal/datatype"
	"github.com/tordrt/attrtables/internal/db"
)

// Bulk input defaults
const (
	DefaultDelimiter  = '\t'
	DefaultNullMarker = `\N`
)

// maxBindParams bounds the bind parameters of one staging insert
const maxBindParams = 900

// LoadOptions configures the parsing of bulk input.
type LoadOptions struct {
	// Delimiter separates fields; tab if zero.
	Delimiter rune
	// NullMarker is the field content meaning no value; \N if empty.
	NullMarker string
}

func (o *LoadOptions) withDefaults() LoadOptions {
	var out LoadOptions
	if o != nil {
		out = *o
	}
	if out.Delimiter == 0 {
		out.Delimiter = DefaultDelimiter
	}
	if out.NullMarker == "" {
		out.NullMarker = DefaultNullMarker
	}
	return out
}

// LoadComputation loads the values of a computation from delimited input.
// Each line holds an entity id followed by the values of the value columns
// of names, in order. Missing trailing fields and null markers mean no
// value: the stored value is kept.
//
// The rows are staged into a temporary table, then merged into each value
// table holding one of the attributes: missing entities are inserted and
// the computation id columns are set as by SetAttributes. It returns the
// number of input rows.
func (t *Tables) LoadComputation(ctx context.Context, computationID any, names []string, r io.Reader, opts *LoadOptions) (int, error) {
	o := opts.withDefaults()
	if t.index.hasTable(t.stagingSuffix) {
		return 0, errors.Wrapf(ErrTableSuffixCollision,
			"cannot create staging table %s, the suffix %s is in use", t.TableName(t.stagingSuffix), t.stagingSuffix)
	}
	locs, err := t.LocationsForAttributes(names)
	if err != nil {
		return 0, err
	}

	rows, err := readDelimited(r, o, len(locs.ValueColumns))
	if err != nil {
		return 0, err
	}

	staging := t.TableName(t.stagingSuffix)
	err = t.client.WithTx(ctx, func(tx *sql.Tx) error {
		coldefs, types, err := t.stagingColumns(ctx, tx, names)
		if err != nil {
			return err
		}
		if err := convertStaged(rows, types); err != nil {
			return err
		}
		if err := t.createTableSQL(ctx, tx, t.stagingSuffix); err != nil {
			return err
		}
		if err := t.addColumns(ctx, tx, staging, coldefs); err != nil {
			return err
		}
		if err := t.insertStaged(ctx, tx, staging, locs.ValueColumns, rows); err != nil {
			return err
		}
		for _, tl := range locs.Tables {
			if err := t.mergeStaged(ctx, tx, staging, tl, computationID); err != nil {
				return err
			}
		}
		return t.dropTableSQL(ctx, tx, staging, false)
	})
	if err != nil {
		return 0, err
	}

	t.logger.Infow("Loaded computation",
		"attributes", names,
		"rows", len(rows),
		"tables", len(locs.Tables))
	return len(rows), nil
}

// readDelimited returns one slice per input line: the entity id followed by
// nvalues values, nil where no value was given
func readDelimited(r io.Reader, o LoadOptions, nvalues int) ([][]any, error) {
	cr := csv.NewReader(r)
	cr.Comma = o.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var rows [][]any
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read input")
		}
		line, _ := cr.FieldPos(0)
		if len(record) == 0 || record[0] == "" || record[0] == o.NullMarker {
			return nil, errors.Newf("line %d: entity id is missing", line)
		}
		if len(record)-1 > nvalues {
			return nil, errors.Wrapf(ErrValueCount, "line %d: %d values for %d value columns",
				line, len(record)-1, nvalues)
		}
		row := make([]any, nvalues+1)
		for i, field := range record {
			if field != o.NullMarker {
				row[i] = field
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// stagingColumns returns the value column definitions of names and their
// element types, in order
func (t *Tables) stagingColumns(ctx context.Context, q db.Querier, names []string) ([]columnDef, []datatype.Type, error) {
	var coldefs []columnDef
	var all []datatype.Type
	for _, name := range names {
		def, err := t.catalog.Get(ctx, q, name)
		if err != nil {
			return nil, nil, err
		}
		types, err := datatype.Parse(def.Datatype)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "definition of attribute %s", name)
		}
		for i, col := range valueColumnNames(name, len(types)) {
			typ, err := t.dialect.ColumnType(types[i])
			if err != nil {
				return nil, nil, err
			}
			coldefs = append(coldefs, columnDef{col, typ})
		}
		all = append(all, types...)
	}
	return coldefs, all, nil
}

// convertStaged replaces the text fields of rows by values of the column
// types, so staged values compare and read back like ones written by
// SetAttributes
func convertStaged(rows [][]any, types []datatype.Type) error {
	for n, row := range rows {
		for i, typ := range types {
			s, ok := row[i+1].(string)
			if !ok {
				continue
			}
			v, err := typ.ConvertText(s)
			if err != nil {
				return errors.Wrapf(err, "row %d (entity %v), value %d", n+1, row[0], i+1)
			}
			row[i+1] = v
		}
	}
	return nil
}

func (t *Tables) insertStaged(ctx context.Context, q db.Querier, staging string, valueColumns []string, rows [][]any) error {
	columns := db.QuoteIdents(t.dialect, append([]string{EntityIDColumn}, valueColumns...))
	batch := max(1, maxBindParams/len(columns))
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		insert := t.builder.Insert(t.dialect.QuoteIdent(staging)).Columns(columns...)
		for _, row := range rows[start:end] {
			insert = insert.Values(row...)
		}
		if _, err := db.ExecBuilder(ctx, q, insert); err != nil {
			return errors.Wrapf(err, "failed to stage rows %d to %d", start+1, end)
		}
	}
	return nil
}

// mergeStaged inserts the staged entities missing from the table of tl and
// copies the staged values into it
func (t *Tables) mergeStaged(ctx context.Context, q db.Querier, staging string, tl *TableLocations, computationID any) error {
	dest := t.dialect.QuoteIdent(tl.Table)
	src := t.dialect.QuoteIdent(staging)
	key := t.dialect.QuoteIdent(EntityIDColumn)

	missing := t.builder.
		Select("s." + key).
		From(src + " s").
		Where(fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s d WHERE d.%s = s.%s)", dest, key, key))
	_, err := db.ExecBuilder(ctx, q, t.builder.Insert(dest).Columns(key).Select(missing))
	if err != nil {
		return errors.Wrapf(err, "failed to insert staged entities into %s", tl.Table)
	}

	update := t.builder.
		Update(dest).
		Where(fmt.Sprintf("%s IN (SELECT %s FROM %s)", key, key, src))
	for _, col := range tl.ValueColumns {
		c := t.dialect.QuoteIdent(col)
		update = update.Set(c, squirrel.Expr(fmt.Sprintf(
			"COALESCE((SELECT s.%s FROM %s s WHERE s.%s = %s.%s), %s)", c, src, key, dest, key, c)))
	}
	if t.computationIDs && computationID != nil {
		cid := computationIDArg(computationID)
		for _, col := range tl.SetComputation {
			update = update.Set(t.dialect.QuoteIdent(col), cid)
		}
		for _, col := range tl.UnsetComputation {
			update = update.Set(t.dialect.QuoteIdent(col), nil)
		}
	}
	if _, err := db.ExecBuilder(ctx, q, update); err != nil {
		return errors.Wrapf(err, "failed to merge staged values into %s", tl.Table)
	}
	return nil
}
