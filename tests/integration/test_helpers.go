//go:build integration
// +build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tordrt/attrtables"
)

// databaseURL returns the URL from env, or fallback
func databaseURL(env, fallback string) string {
	if url := os.Getenv(env); url != "" {
		return url
	}
	return fallback
}

// openTables opens tables under a prefix unique to the test and drops
// everything again at cleanup
func openTables(t *testing.T, url string) (*attrtables.Tables, *attrtables.Options) {
	t.Helper()
	ctx := context.Background()

	id := uuid.NewString()[:8]
	opts := &attrtables.Options{
		TablePrefix:      "it_" + id + "_t",
		DefinitionsTable: "it_" + id + "_definition",
		TargetColumns:    9,
		Logger:           zaptest.NewLogger(t).Sugar(),
	}
	tables, err := attrtables.Open(ctx, url, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, tables.DropAll(ctx))
		assert.NoError(t, tables.Close())
	})
	return tables, opts
}

// asString renders a scanned value independently of the driver's choice
// between []byte, string and numeric types
func asString(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func verifyValues(t *testing.T, results map[string]attrtables.Result, entity string, want ...string) {
	t.Helper()

	r, ok := results[entity]
	require.True(t, ok, "no result for %s", entity)
	got := make([]string, len(r.Values))
	for i, v := range r.Values {
		got[i] = asString(v)
	}
	assert.Equal(t, want, got, "values of %s", entity)
}

func verifyComputationID(t *testing.T, results map[string]attrtables.Result, entity string, want uuid.UUID) {
	t.Helper()

	b, ok := results[entity].ComputationID.([]byte)
	require.True(t, ok, "computation id of %s is %T", entity, results[entity].ComputationID)
	assert.Equal(t, want[:], b)
}

// runScenario exercises the full attribute life cycle against one engine
func runScenario(t *testing.T, url string) {
	ctx := context.Background()
	tables, _ := openTables(t, url)
	id1 := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	id2 := uuid.MustParse("66666666-7777-8888-9999-aaaaaaaaaaaa")

	require.NoError(t, tables.CreateAttribute(ctx, "a", "Integer", "g1"))
	require.NoError(t, tables.CreateAttribute(ctx, "b", "String(16)[2]", "g1"))
	require.NoError(t, tables.CreateAttribute(ctx, "c", "Float", ""))
	require.NoError(t, tables.CreateAttribute(ctx, "d", "Integer;String(8)", "g2"))

	// a, b, c and g1 fill the first table, d goes to a second one
	assert.Equal(t, []string{"0", "1"}, tables.TableSuffixes())
	tnA, _ := tables.AttributeTable("a")
	tnD, _ := tables.AttributeTable("d")
	assert.NotEqual(t, tnA, tnD)

	err := tables.SetAttributes(ctx, []string{"a", "c"}, map[string]attrtables.Values{
		"e1": attrtables.Seq(1, 1.5),
		"e2": attrtables.Seq(2, nil),
	}, id1)
	require.NoError(t, err)

	results, err := tables.QueryAttribute(ctx, "a", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	verifyValues(t, results, "e1", "1")
	verifyComputationID(t, results, "e1", id1)

	results, err = tables.QueryAttribute(ctx, "c", []string{"e1", "e2", "e3"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	verifyValues(t, results, "e1", "1.5")

	input := "e1\t10\tx\ty\t7\tq\n" +
		"e3\t\\N\tz\n"
	n, err := tables.LoadComputation(ctx, id2, []string{"a", "b", "d"}, strings.NewReader(input), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err = tables.QueryAttribute(ctx, "a", nil)
	require.NoError(t, err)
	verifyValues(t, results, "e1", "10")
	verifyValues(t, results, "e2", "2")
	assert.NotContains(t, results, "e3")
	// whole group g1 was loaded
	verifyComputationID(t, results, "e1", id2)

	results, err = tables.QueryAttribute(ctx, "b", []string{"e3"})
	require.NoError(t, err)
	verifyValues(t, results, "e3", "z", "NULL")

	results, err = tables.QueryAttribute(ctx, "d", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	verifyValues(t, results, "e1", "7", "q")
	verifyComputationID(t, results, "e1", id2)

	require.NoError(t, tables.CheckConsistency(ctx))

	layout, err := tables.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, layout.AttributeCount())
	require.Len(t, layout.Tables, 2)
	assert.Equal(t, 3, layout.Tables[0].EntityCount)

	require.NoError(t, tables.UnsetAttribute(ctx, "a", []string{"e1", "e2"}))
	results, err = tables.QueryAttribute(ctx, "a", nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, tables.DestroyAttribute(ctx, "b"))
	require.NoError(t, tables.DestroyAttribute(ctx, "d"))
	require.NoError(t, tables.CheckConsistency(ctx))
	assert.Equal(t, []string{"a", "c"}, tables.AttributeNames())
}

// runReopen checks that a second instance loads the layout written by the
// first one
func runReopen(t *testing.T, url string) {
	ctx := context.Background()
	tables, opts := openTables(t, url)
	require.NoError(t, tables.CreateAttribute(ctx, "x", "Boolean[2]", "g"))
	require.NoError(t, tables.CreateAttribute(ctx, "y", "String(4)", ""))
	require.NoError(t, tables.SetAttribute(ctx, "x", map[string]attrtables.Values{
		"e1": attrtables.Seq(true, false),
	}, uuid.New()))

	reopened, err := attrtables.Open(ctx, url, opts)
	require.NoError(t, err)
	defer func() { assert.NoError(t, reopened.Close()) }()

	assert.Equal(t, tables.TableSuffixes(), reopened.TableSuffixes())
	assert.Equal(t, []string{"x", "y"}, reopened.AttributeNames())
	assert.Equal(t, "g", reopened.AttributeGroup("x"))
	assert.Equal(t, []string{"x_v0", "x_v1"}, reopened.AttributeValueColumns("x"))
	require.NoError(t, reopened.CheckConsistency(ctx))

	results, err := reopened.QueryAttribute(ctx, "x", []string{"e1"})
	require.NoError(t, err)
	require.Contains(t, results, "e1")
	assert.Len(t, results["e1"].Values, 2)
}

// runCaseSensitiveKeys checks that entity ids differing only in case are
// kept apart
func runCaseSensitiveKeys(t *testing.T, url string) {
	ctx := context.Background()
	tables, _ := openTables(t, url)
	require.NoError(t, tables.CreateAttribute(ctx, "a", "Integer", ""))

	id := uuid.New()
	require.NoError(t, tables.SetAttribute(ctx, "a", map[string]attrtables.Values{
		"e1": attrtables.Seq(1),
	}, id))
	require.NoError(t, tables.SetAttribute(ctx, "a", map[string]attrtables.Values{
		"E1": attrtables.Seq(2),
	}, id))

	results, err := tables.QueryAttribute(ctx, "a", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	verifyValues(t, results, "e1", "1")
	verifyValues(t, results, "E1", "2")

	results, err = tables.QueryAttribute(ctx, "a", []string{"E1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	verifyValues(t, results, "E1", "2")

	require.NoError(t, tables.CheckConsistency(ctx))
}
