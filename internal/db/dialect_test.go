package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/attrtables/internal/datatype"
)

func TestColumnType(t *testing.T) {
	tests := []struct {
		spec     string
		sqlite   string
		mysql    string
		postgres string
	}{
		{"Integer", "INTEGER", "int", "integer"},
		{"Float", "FLOAT", "float", "double precision"},
		{"Boolean", "BOOLEAN", "BOOLEAN", "boolean"},
		{"String(12)", "VARCHAR(12)", "varchar(12)", "character varying(12)"},
		{"Text", "TEXT", "text", "text"},
		{"BINARY(16)", "BINARY(16)", "binary(16)", "bytea"},
		{"Numeric(10,2)", "NUMERIC(10,2)", "decimal(10,2)", "numeric(10,2)"},
		{"DateTime", "DATETIME", "datetime", "timestamp without time zone"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			typ, err := datatype.ParseOne(tt.spec)
			require.NoError(t, err)

			got, err := SQLite{}.ColumnType(typ)
			require.NoError(t, err)
			assert.Equal(t, tt.sqlite, got)

			got, err = MySQL{}.ColumnType(typ)
			require.NoError(t, err)
			assert.Equal(t, tt.mysql, got)

			got, err = Postgres{}.ColumnType(typ)
			require.NoError(t, err)
			assert.Equal(t, tt.postgres, got)
		})
	}
}

func TestMySQLStringNeedsLength(t *testing.T) {
	_, err := MySQL{}.ColumnType(datatype.Type{Kind: datatype.String})
	assert.Error(t, err)
}

func TestCreateTableSQL(t *testing.T) {
	assert.Equal(t,
		`CREATE TABLE "t0" ("entity_id" VARCHAR(64) NOT NULL PRIMARY KEY)`,
		CreateTableSQL(SQLite{}, "t0", `"entity_id" VARCHAR(64) NOT NULL PRIMARY KEY`))
	assert.Equal(t,
		"CREATE TABLE `t0` (`entity_id` varchar(64) NOT NULL PRIMARY KEY, `a_v` int) "+
			"DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_bin",
		CreateTableSQL(MySQL{}, "t0", "`entity_id` varchar(64) NOT NULL PRIMARY KEY", "`a_v` int"))
	assert.Empty(t, Postgres{}.TableOptions())
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"a_v0"`, SQLite{}.QuoteIdent("a_v0"))
	assert.Equal(t, `"we""ird"`, Postgres{}.QuoteIdent(`we"ird`))
	assert.Equal(t, "`we``ird`", MySQL{}.QuoteIdent("we`ird"))
	assert.Equal(t, []string{`"a"`, `"b"`}, QuoteIdents(SQLite{}, []string{"a", "b"}))
}
