package attrtables

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tordrt/attrtables/internal/catalog"
	"github.com/tordrt/attrtables/internal/db"
)

// newIndexOnlyTables returns a Tables whose index is filled by hand and
// whose statements go to a sqlmock connection
func newIndexOnlyTables(t *testing.T, target int) (*Tables, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	client := db.NewClient(sqlDB, db.SQLite{})
	return &Tables{
		client:         client,
		dialect:        client.Dialect(),
		builder:        client.Builder(),
		logger:         zaptest.NewLogger(t).Sugar(),
		prefix:         DefaultTablePrefix,
		targetColumns:  target,
		computationIDs: true,
		groups:         true,
		entityIDType:   "VARCHAR(64)",
		index:          newLocationIndex(),
	}, mock
}

func TestPlaceForNewAttribute(t *testing.T) {
	ctx := context.Background()
	tables, mock := newIndexOnlyTables(t, 9)
	ix := tables.index

	ix.addTable("0")
	ix.addAttribute("0", "a", 1, "g1", 3)
	ix.addTable("1")

	// the first table has room
	sfx, created, err := tables.placeForNewAttribute(ctx, tables.client.GetDB(), 2, "g1")
	require.NoError(t, err)
	assert.Equal(t, "0", sfx)
	assert.False(t, created)

	// a new group needs one more column: 8 + 3 > 9, so the empty table
	ix.addAttribute("0", "b", 3, "g1", 4)
	sfx, created, err = tables.placeForNewAttribute(ctx, tables.client.GetDB(), 1, "g2")
	require.NoError(t, err)
	assert.Equal(t, "1", sfx)
	assert.False(t, created)

	// empty tables take any attribute
	sfx, _, err = tables.placeForNewAttribute(ctx, tables.client.GetDB(), 20, "")
	require.NoError(t, err)
	assert.Equal(t, "1", sfx)

	// nothing fits: a table with the smallest free suffix is created
	ix.addAttribute("1", "c", 6, "", 7)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "attribute_value_t2" ("entity_id" VARCHAR(64) NOT NULL PRIMARY KEY)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	sfx, created, err = tables.placeForNewAttribute(ctx, tables.client.GetDB(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, "2", sfx)
	assert.True(t, created)
	assert.False(t, ix.hasTable("2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceForNewAttributeCreateError(t *testing.T) {
	ctx := context.Background()
	tables, mock := newIndexOnlyTables(t, 9)

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("disk full"))
	_, _, err := tables.placeForNewAttribute(ctx, tables.client.GetDB(), 1, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestColumnsNeeded(t *testing.T) {
	tables, _ := newIndexOnlyTables(t, 9)
	tables.index.addTable("0")
	tables.index.addAttribute("0", "a", 1, "g1", 3)

	assert.Equal(t, 3, tables.columnsNeeded("0", 2, "g1"))
	assert.Equal(t, 4, tables.columnsNeeded("0", 2, "g2"))
	assert.Equal(t, 3, tables.columnsNeeded("0", 2, ""))

	tables.groups = false
	assert.Equal(t, 3, tables.columnsNeeded("0", 2, "g2"))
	tables.computationIDs = false
	assert.Equal(t, 2, tables.columnsNeeded("0", 2, "g2"))
}

func TestNewSuffix(t *testing.T) {
	tables, _ := newIndexOnlyTables(t, 9)
	assert.Equal(t, "0", tables.newSuffix())
	tables.index.addTable("0")
	tables.index.addTable("2")
	tables.index.addTable("X")
	assert.Equal(t, "1", tables.newSuffix())
	tables.index.addTable("1")
	assert.Equal(t, "3", tables.newSuffix())
}

func TestSortSuffixes(t *testing.T) {
	suffixes := []string{"10", "B", "2", "0", "A", "1"}
	sortSuffixes(suffixes)
	assert.Equal(t, []string{"0", "1", "2", "10", "A", "B"}, suffixes)
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t, []string{"a_v"}, valueColumnNames("a", 1))
	assert.Equal(t, []string{"a_v0", "a_v1", "a_v2"}, valueColumnNames("a", 3))
	assert.Equal(t, "a_c", computationColumnName("a"))
	assert.Equal(t, "g1_g", groupColumnName("g1"))
	assert.Equal(t, "gc_content", baseName("gc_content_v12"))
	assert.Equal(t, "x", baseName("x_c"))
	assert.Equal(t, "ABC", NormalizeSuffix("abc"))
}

func TestCreateAndDropTable(t *testing.T) {
	ctx := context.Background()
	tables, _ := newTestTables(t, nil)

	require.NoError(t, tables.CreateTable(ctx, "a"))
	assert.Equal(t, []string{"A"}, tables.TableSuffixes())
	require.NoError(t, tables.CreateTable(ctx, "0"))
	assert.Equal(t, []string{"0", "A"}, tables.TableSuffixes())

	err := tables.CreateTable(ctx, "A")
	assert.True(t, errors.Is(err, ErrTableSuffixCollision))
	err = tables.CreateTable(ctx, DefaultStagingSuffix)
	assert.True(t, errors.Is(err, ErrTableSuffixCollision))

	// attributes go to the first empty table
	require.NoError(t, tables.CreateAttribute(ctx, "x", "Integer", ""))
	tn, _ := tables.AttributeTable("x")
	assert.Equal(t, "attribute_value_t0", tn)

	require.NoError(t, tables.DropTable(ctx, "0"))
	assert.Equal(t, []string{"A"}, tables.TableSuffixes())
	_, ok := tables.AttributeTable("x")
	assert.False(t, ok)
	err = tables.DropTable(ctx, "0")
	assert.True(t, errors.Is(err, ErrUnknownTable))

	// the definition of x survives the table
	err = tables.CheckConsistency(ctx)
	assert.True(t, errors.Is(err, ErrOrphanedDefinition))
}

func TestDropAll(t *testing.T) {
	ctx := context.Background()
	tables, _ := newTestTables(t, &Options{TargetColumns: 9})
	createAttributesAToH(t, tables)

	require.NoError(t, tables.DropAll(ctx))
	assert.Empty(t, tables.TableSuffixes())
	assert.Empty(t, tables.AttributeNames())

	names, err := tables.dialect.TableNames(ctx, tables.client.GetDB())
	require.NoError(t, err)
	assert.Empty(t, names)

	err = tables.CheckConsistency(ctx)
	assert.True(t, errors.Is(err, ErrMissingDefinitionsTable))
}

func TestLeftoverStagingTableIsDropped(t *testing.T) {
	ctx := context.Background()
	tables, url := newTestTables(t, nil)
	_, err := tables.client.GetDB().ExecContext(ctx,
		`CREATE TABLE "attribute_value_ttemporary" ("entity_id" VARCHAR(64) NOT NULL PRIMARY KEY)`)
	require.NoError(t, err)
	require.NoError(t, tables.Close())

	reopened, err := Open(ctx, url, nil)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Empty(t, reopened.TableSuffixes())
	names, err := reopened.dialect.TableNames(ctx, reopened.client.GetDB())
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultDefinitionsTable}, names)
}

func TestQueryAttributeReadsInOneTransaction(t *testing.T) {
	ctx := context.Background()
	tables, mock := newIndexOnlyTables(t, 9)
	tables.index.addTable("0")
	tables.index.addAttribute("0", "a", 1, "", 3)

	entities := make([]string, queryChunkSize+1)
	for i := range entities {
		entities[i] = fmt.Sprintf("e%d", i)
	}
	query := regexp.QuoteMeta(`SELECT "entity_id", "a_v", "a_c" FROM "attribute_value_t0"`)
	mock.ExpectBegin()
	mock.ExpectQuery(query).
		WillReturnRows(sqlmock.NewRows([]string{"entity_id", "a_v", "a_c"}).AddRow("e0", int64(1), nil))
	mock.ExpectQuery(query).
		WillReturnRows(sqlmock.NewRows([]string{"entity_id", "a_v", "a_c"}).AddRow(entities[queryChunkSize], int64(2), nil))
	mock.ExpectCommit()

	results, err := tables.QueryAttribute(ctx, "a", entities)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckConsistencyReadsInOneTransaction(t *testing.T) {
	ctx := context.Background()
	tables, mock := newIndexOnlyTables(t, 9)
	tables.catalog = catalog.NewStore(tables.client, DefaultDefinitionsTable)

	mock.ExpectBegin()
	mock.ExpectQuery(".").WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectRollback()

	err := tables.CheckConsistency(ctx)
	assert.True(t, errors.Is(err, ErrMissingDefinitionsTable), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAttributeRejectsTruncatedColumnNames(t *testing.T) {
	ctx := context.Background()
	tables, mock := newIndexOnlyTables(t, 64)
	tables.dialect = db.Postgres{}
	name := strings.Repeat("n", 60)

	// n..n_v10 has 64 bytes, PostgreSQL keeps 63
	err := tables.CreateAttribute(ctx, name, "Integer[12]", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), name+"_v10")
	_, ok := tables.AttributeTable(name)
	assert.False(t, ok)

	err = tables.CreateAttribute(ctx, "a", "Integer", strings.Repeat("g", 62))
	require.Error(t, err)

	assert.NoError(t, tables.checkIdentifiers(name, 1, ""))
	assert.NoError(t, tables.checkIdentifiers(name, 10, ""))

	tables.dialect = db.MySQL{}
	assert.NoError(t, tables.checkIdentifiers(name, 12, ""))
	tables.dialect = db.SQLite{}
	assert.NoError(t, tables.checkIdentifiers(strings.Repeat("n", 200), 12, "g"))

	require.NoError(t, mock.ExpectationsWereMet())
}
