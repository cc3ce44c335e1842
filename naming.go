package attrtables

import (
	"sort"
	"strconv"
	"strings"
)

// EntityIDColumn is the key column present in every value table
const EntityIDColumn = "entity_id"

const (
	valueColumnSuffix       = "_v"
	computationColumnSuffix = "_c"
	groupColumnSuffix       = "_g"
)

// NormalizeSuffix returns the canonical form of a table suffix
func NormalizeSuffix(sfx string) string {
	return strings.ToUpper(sfx)
}

// valueColumnNames returns <name>_v for a single column and
// <name>_v0 .. <name>_v{n-1} otherwise
func valueColumnNames(name string, n int) []string {
	if n == 1 {
		return []string{name + valueColumnSuffix}
	}
	names := make([]string, n)
	for i := range names {
		names[i] = name + valueColumnSuffix + strconv.Itoa(i)
	}
	return names
}

func computationColumnName(name string) string {
	return name + computationColumnSuffix
}

func groupColumnName(group string) string {
	return group + groupColumnSuffix
}

// baseName strips the type suffix (_v, _v3, _c, _g) from a column name
func baseName(column string) string {
	if i := strings.LastIndex(column, "_"); i >= 0 {
		return column[:i]
	}
	return column
}

// sortSuffixes orders numeric suffixes by value, followed by the others
// in lexicographic order
func sortSuffixes(suffixes []string) {
	sort.SliceStable(suffixes, func(i, j int) bool {
		a, aErr := strconv.Atoi(suffixes[i])
		b, bErr := strconv.Atoi(suffixes[j])
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return suffixes[i] < suffixes[j]
		}
	})
}
