package attrtables

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/attrtables/internal/schema"
)

func TestCheckConsistency(t *testing.T) {
	tests := []struct {
		name    string
		corrupt []string
		wantErr error
	}{
		{
			name:    "consistent",
			corrupt: nil,
		},
		{
			name:    "missing definitions table",
			corrupt: []string{`DROP TABLE "attribute_definition"`},
			wantErr: ErrMissingDefinitionsTable,
		},
		{
			name:    "orphaned definition",
			corrupt: []string{`INSERT INTO "attribute_definition" (name, datatype) VALUES ('z', 'Integer')`},
			wantErr: ErrOrphanedDefinition,
		},
		{
			name:    "wrong value type",
			corrupt: []string{`UPDATE "attribute_definition" SET datatype = 'Float' WHERE name = 'a'`},
			wantErr: ErrSchemaMismatch,
		},
		{
			name:    "wrong number of value columns",
			corrupt: []string{`UPDATE "attribute_definition" SET datatype = 'Integer[2]' WHERE name = 'a'`},
			wantErr: ErrSchemaMismatch,
		},
		{
			name:    "missing computation column",
			corrupt: []string{`ALTER TABLE "attribute_value_t0" DROP COLUMN "a_c"`},
			wantErr: ErrSchemaMismatch,
		},
		{
			name:    "missing group column",
			corrupt: []string{`UPDATE "attribute_definition" SET computation_group = 'gx' WHERE name = 'a'`},
			wantErr: ErrSchemaMismatch,
		},
		{
			name:    "group column without members",
			corrupt: []string{`ALTER TABLE "attribute_value_t0" ADD COLUMN "zz_g" BINARY(16)`},
			wantErr: ErrSchemaMismatch,
		},
		{
			name: "attribute in two tables",
			corrupt: []string{
				`CREATE TABLE "attribute_value_t5" ("entity_id" VARCHAR(64) NOT NULL PRIMARY KEY)`,
				`ALTER TABLE "attribute_value_t5" ADD COLUMN "a_v" INTEGER`,
			},
			wantErr: ErrMultiTableAttribute,
		},
		{
			name:    "columns without definition",
			corrupt: []string{`DELETE FROM "attribute_definition" WHERE name = 'b'`},
			wantErr: ErrSchemaMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			tables, _ := newTestTables(t, nil)
			require.NoError(t, tables.CreateAttribute(ctx, "a", "Integer", ""))
			require.NoError(t, tables.CreateAttribute(ctx, "b", "String(4);Boolean", "g1"))
			require.NoError(t, tables.CheckConsistency(ctx))

			for _, stmt := range tt.corrupt {
				_, err := tables.client.GetDB().ExecContext(ctx, stmt)
				require.NoError(t, err)
			}

			err := tables.CheckConsistency(ctx)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestCheckConsistencyReloadsIndex(t *testing.T) {
	ctx := context.Background()
	tables, url := newTestTables(t, nil)
	require.NoError(t, tables.CreateAttribute(ctx, "a", "Integer", ""))

	other, err := Open(ctx, url, nil)
	require.NoError(t, err)
	defer other.Close()
	require.NoError(t, other.CreateAttribute(ctx, "b", "Integer", ""))

	assert.Equal(t, []string{"a"}, tables.AttributeNames())
	require.NoError(t, tables.CheckConsistency(ctx))
	assert.Equal(t, []string{"a", "b"}, tables.AttributeNames())
}

func TestCheckColumn(t *testing.T) {
	columns := map[string]schema.Column{
		"a_v": {Name: "a_v", Type: "tinyint(1)"},
	}
	assert.NoError(t, checkColumn(columns, "a_v", "BOOLEAN", "value"))
	assert.True(t, errors.Is(checkColumn(columns, "a_v", "INTEGER", "value"), ErrSchemaMismatch))
	assert.True(t, errors.Is(checkColumn(columns, "b_v", "INTEGER", "value"), ErrSchemaMismatch))
}
