package attrtables

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/attrtables/internal/catalog"
)

func TestScalarAttributes(t *testing.T) {
	ctx := context.Background()
	tables, _ := newTestTables(t, nil)

	for _, spec := range []string{"Integer", "Float", "String(50)", "Text", "Boolean"} {
		name := strings.ToLower(spec[:1])
		require.NoError(t, tables.CreateAttribute(ctx, name, spec, ""))
		require.NoError(t, tables.CheckConsistency(ctx))

		loc, err := tables.AttributeLocation(name)
		require.NoError(t, err)
		assert.Equal(t, "attribute_value_t0", loc.Table)
		assert.Equal(t, []string{name + "_v"}, loc.ValueColumns)
		assert.Equal(t, name+"_c", loc.ComputationColumn)
		assert.Empty(t, loc.GroupColumn)

		require.NoError(t, tables.DestroyAttribute(ctx, name))
	}
}

func TestMultiscalarAttributes(t *testing.T) {
	ctx := context.Background()
	tables, _ := newTestTables(t, nil)

	for _, spec := range []string{"Integer;Float", "String(50);Text", "Boolean;Integer;Float"} {
		name := strings.ToLower(spec[:1])
		require.NoError(t, tables.CreateAttribute(ctx, name, spec, ""))
		require.NoError(t, tables.CheckConsistency(ctx))

		n := len(strings.Split(spec, ";"))
		assert.Equal(t, valueColumnNames(name, n), tables.AttributeValueColumns(name))
		assert.Len(t, tables.AttributeValueColumns(name), n)
		assert.Equal(t, name+"_v0", tables.AttributeValueColumns(name)[0])
		tn, err := tables.TableForAttribute(name)
		require.NoError(t, err)
		assert.Equal(t, "attribute_value_t0", tn)

		require.NoError(t, tables.DestroyAttribute(ctx, name))
	}
}

func TestArrayAttributes(t *testing.T) {
	ctx := context.Background()
	tables, _ := newTestTables(t, nil)

	tests := []struct {
		spec string
		n    int
	}{
		{"Integer[10]", 10},
		{"Boolean;String(50)[3];Integer;Text[3];Float", 9},
	}
	for _, tt := range tests {
		name := strings.ToLower(tt.spec[:1])
		require.NoError(t, tables.CreateAttribute(ctx, name, tt.spec, ""))
		require.NoError(t, tables.CheckConsistency(ctx))

		columns := tables.AttributeValueColumns(name)
		require.Len(t, columns, tt.n)
		assert.Equal(t, name+"_v0", columns[0])
		assert.Equal(t, fmt.Sprintf("%s_v%d", name, tt.n-1), columns[tt.n-1])
		assert.Equal(t, name+"_c", tables.AttributeComputationColumn(name))

		require.NoError(t, tables.DestroyAttribute(ctx, name))
	}
}

func TestCreateComputationGroup(t *testing.T) {
	ctx := context.Background()
	tables, _ := newTestTables(t, nil)

	names := []string{"i", "f", "s", "t", "b"}
	specs := []string{"Integer", "Float", "String(50)", "Text", "Boolean"}
	for i, name := range names {
		require.NoError(t, tables.CreateAttribute(ctx, name, specs[i], "cgrp"))
		require.NoError(t, tables.CheckConsistency(ctx))
	}

	for _, name := range names {
		loc, err := tables.AttributeLocation(name)
		require.NoError(t, err)
		assert.Equal(t, "attribute_value_t0", loc.Table)
		assert.Equal(t, "cgrp_g", loc.GroupColumn)
		assert.Equal(t, "cgrp", tables.AttributeGroup(name))
	}
	// one shared group column: entity, 5 values, 5 computation ids, group
	assert.Equal(t, 12, tables.index.ncols["0"])

	for _, name := range names {
		require.NoError(t, tables.DestroyAttribute(ctx, name))
		require.NoError(t, tables.CheckConsistency(ctx))
	}
	columns, err := tables.dialect.Columns(ctx, tables.client.GetDB(), "attribute_value_t0")
	require.NoError(t, err)
	require.Len(t, columns, 1)
	assert.Equal(t, EntityIDColumn, columns[0].Name)
}

func TestAttributeDestruction(t *testing.T) {
	ctx := context.Background()
	tables, _ := newTestTables(t, nil)
	q := tables.client.GetDB()

	require.NoError(t, tables.CreateAttribute(ctx, "a", "Integer", ""))
	tn, ok := tables.AttributeTable("a")
	require.True(t, ok)
	assert.Equal(t, "attribute_value_t0", tn)
	def, err := tables.catalog.Get(ctx, q, "a")
	require.NoError(t, err)
	assert.Equal(t, "Integer", def.Datatype)

	require.NoError(t, tables.DestroyAttribute(ctx, "a"))
	_, ok = tables.AttributeTable("a")
	assert.False(t, ok)
	_, err = tables.catalog.Get(ctx, q, "a")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	err = tables.DestroyAttribute(ctx, "a")
	assert.True(t, errors.Is(err, ErrUnknownAttribute))
}

func TestCreateAttributeErrors(t *testing.T) {
	ctx := context.Background()
	tables, _ := newTestTables(t, nil)

	require.NoError(t, tables.CreateAttribute(ctx, "a", "Integer", ""))

	err := tables.CreateAttribute(ctx, "a", "Float", "")
	assert.True(t, errors.Is(err, ErrDuplicateAttribute))

	err = tables.CreateAttribute(ctx, "b", "Integr", "")
	assert.True(t, errors.Is(err, ErrUnknownDatatypeToken))
	_, ok := tables.AttributeTable("b")
	assert.False(t, ok)

	// a definition without columns is a duplicate too
	require.NoError(t, tables.catalog.Insert(ctx, tables.client.GetDB(), catalog.Definition{Name: "c", Datatype: "Integer"}))
	err = tables.CreateAttribute(ctx, "c", "Integer", "")
	assert.True(t, errors.Is(err, ErrDuplicateAttribute))
	_, ok = tables.AttributeTable("c")
	assert.False(t, ok)
}

func TestCustomTablePrefix(t *testing.T) {
	ctx := context.Background()
	tables, _ := newTestTables(t, &Options{TablePrefix: "custom_tabpfx_"})

	require.NoError(t, tables.CreateAttribute(ctx, "a", "Integer", ""))
	require.NoError(t, tables.CheckConsistency(ctx))
	tn, ok := tables.AttributeTable("a")
	require.True(t, ok)
	assert.Equal(t, "custom_tabpfx_0", tn)
	require.NoError(t, tables.DestroyAttribute(ctx, "a"))
}

func TestAttributeLargerThanTarget(t *testing.T) {
	ctx := context.Background()
	tables, _ := newTestTables(t, &Options{TargetColumns: 3})

	require.NoError(t, tables.CreateAttribute(ctx, "a", "Integer[10]", ""))
	tn, _ := tables.AttributeTable("a")
	assert.Equal(t, "attribute_value_t0", tn)
	assert.Len(t, tables.AttributeValueColumns("a"), 10)
	assert.Equal(t, "a_c", tables.AttributeComputationColumn("a"))
	assert.Empty(t, tables.AttributeComputationGroupColumn("a"))

	require.NoError(t, tables.CreateAttribute(ctx, "b", "Integer", ""))
	tn, _ = tables.AttributeTable("b")
	assert.Equal(t, "attribute_value_t1", tn)
	assert.Equal(t, []string{"b_v"}, tables.AttributeValueColumns("b"))
	assert.Equal(t, "b_c", tables.AttributeComputationColumn("b"))
	assert.Empty(t, tables.AttributeComputationGroupColumn("b"))
}

// createAttributesAToH declares attributes whose placement with a budget of
// nine columns spreads them over three tables
func createAttributesAToH(t *testing.T, tables *Tables) {
	t.Helper()
	ctx := context.Background()
	defs := []struct{ name, spec, group string }{
		{"a", "Integer", "g1"},
		{"b", "Integer;Float", "g1"},
		{"c", "String(1)[3]", ""},
		{"d", "Integer", "g1"},
		{"e", "Float", "g2"},
		{"f", "Integer", "g2"},
		{"g", "Integer", "g1"},
		{"h", "Integer", ""},
	}
	for _, d := range defs {
		require.NoError(t, tables.CreateAttribute(ctx, d.name, d.spec, d.group))
	}
}

var attributesAToH = []string{"a", "b", "c", "d", "e", "f", "g", "h"}

func TestMultipleTables(t *testing.T) {
	ctx := context.Background()
	tables, url := newTestTables(t, &Options{TargetColumns: 9})
	createAttributesAToH(t, tables)
	require.NoError(t, tables.CheckConsistency(ctx))

	var tableNames, groupColumns, computationColumns []string
	var valueColumns [][]string
	for _, name := range attributesAToH {
		tn, ok := tables.AttributeTable(name)
		require.True(t, ok)
		tableNames = append(tableNames, tn)
		valueColumns = append(valueColumns, tables.AttributeValueColumns(name))
		computationColumns = append(computationColumns, tables.AttributeComputationColumn(name))
		groupColumns = append(groupColumns, tables.AttributeComputationGroupColumn(name))
	}

	p := "attribute_value_t"
	assert.Equal(t, []string{p + "0", p + "0", p + "1", p + "0", p + "1", p + "2", p + "2", p + "2"}, tableNames)
	assert.Equal(t, [][]string{{"a_v"}, {"b_v0", "b_v1"}, {"c_v0", "c_v1", "c_v2"},
		{"d_v"}, {"e_v"}, {"f_v"}, {"g_v"}, {"h_v"}}, valueColumns)
	assert.Equal(t, []string{"a_c", "b_c", "c_c", "d_c", "e_c", "f_c", "g_c", "h_c"}, computationColumns)
	assert.Equal(t, []string{"g1_g", "g1_g", "", "g1_g", "g2_g", "g2_g", "g1_g", ""}, groupColumns)
	assert.Equal(t, []string{"0", "1", "2"}, tables.TableSuffixes())

	// the index rebuilt from the live schema agrees
	require.NoError(t, tables.Close())
	reopened, err := Open(ctx, url, &Options{TargetColumns: 9})
	require.NoError(t, err)
	defer reopened.Close()
	for i, name := range attributesAToH {
		tn, ok := reopened.AttributeTable(name)
		require.True(t, ok)
		assert.Equal(t, tableNames[i], tn)
		assert.Equal(t, groupColumns[i], reopened.AttributeComputationGroupColumn(name))
	}
	assert.Equal(t, tables.index.ncols, reopened.index.ncols)

	for _, name := range attributesAToH {
		require.NoError(t, reopened.DestroyAttribute(ctx, name))
	}
	require.NoError(t, reopened.CheckConsistency(ctx))
	assert.Empty(t, reopened.AttributeNames())
}

func TestComputationIDsDisabled(t *testing.T) {
	ctx := context.Background()
	tables, _ := newTestTables(t, &Options{DisableComputationIDs: true})

	require.NoError(t, tables.CreateAttribute(ctx, "a", "Integer", "g1"))
	require.NoError(t, tables.CheckConsistency(ctx))
	loc, err := tables.AttributeLocation("a")
	require.NoError(t, err)
	assert.Empty(t, loc.ComputationColumn)
	assert.Empty(t, loc.GroupColumn)
	assert.Equal(t, 2, tables.index.ncols["0"])

	def, err := tables.catalog.Get(ctx, tables.client.GetDB(), "a")
	require.NoError(t, err)
	assert.Empty(t, def.ComputationGroup)
}

func TestComputationGroupsDisabled(t *testing.T) {
	ctx := context.Background()
	tables, _ := newTestTables(t, &Options{DisableComputationGroups: true})

	require.NoError(t, tables.CreateAttribute(ctx, "a", "Integer", "g1"))
	require.NoError(t, tables.CheckConsistency(ctx))
	loc, err := tables.AttributeLocation("a")
	require.NoError(t, err)
	assert.Equal(t, "a_c", loc.ComputationColumn)
	assert.Empty(t, loc.GroupColumn)
	assert.Equal(t, 3, tables.index.ncols["0"])
}
