package attrtables

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-set/v2"
)

// Location is where an attribute is stored
type Location struct {
	Suffix            string
	Table             string
	ValueColumns      []string
	ComputationColumn string // empty when computation ids are disabled
	GroupColumn       string // column of the attribute's group, if any
}

// TableName returns the full name of the table with the given suffix
func (t *Tables) TableName(sfx string) string {
	return t.prefix + sfx
}

// TableSuffix returns the suffix of a value table name
func (t *Tables) TableSuffix(tableName string) (string, error) {
	if !strings.HasPrefix(tableName, t.prefix) {
		return "", errors.Newf("table name %s does not start with prefix %s", tableName, t.prefix)
	}
	return tableName[len(t.prefix):], nil
}

// TableSuffixes returns the suffixes of all value tables in visiting order
func (t *Tables) TableSuffixes() []string {
	return append([]string(nil), t.index.order...)
}

// AttributeNames returns the names of all resident attributes, sorted
func (t *Tables) AttributeNames() []string {
	return t.index.attributeNames()
}

// AttributeTable returns the name of the table holding the attribute
func (t *Tables) AttributeTable(name string) (string, bool) {
	sfx, ok := t.index.a2t[name]
	if !ok {
		return "", false
	}
	return t.TableName(sfx), true
}

// TableForAttribute is like AttributeTable but fails for unknown names
func (t *Tables) TableForAttribute(name string) (string, error) {
	tn, ok := t.AttributeTable(name)
	if !ok {
		return "", errors.Wrapf(ErrUnknownAttribute, "attribute %s", name)
	}
	return tn, nil
}

// AttributeGroup returns the computation group the attribute is recorded
// under in its table, or "" if none or groups are disabled
func (t *Tables) AttributeGroup(name string) string {
	if !t.groups {
		return ""
	}
	return t.index.groupOf(name)
}

// AttributeValueColumns returns the value column names, or nil if the
// attribute is unknown
func (t *Tables) AttributeValueColumns(name string) []string {
	sfx, ok := t.index.a2t[name]
	if !ok {
		return nil
	}
	return valueColumnNames(name, t.index.t2a[sfx][name])
}

// AttributeComputationColumn returns the computation id column name, or ""
func (t *Tables) AttributeComputationColumn(name string) string {
	if _, ok := t.index.a2t[name]; !ok || !t.computationIDs {
		return ""
	}
	return computationColumnName(name)
}

// AttributeComputationGroupColumn returns the column of the attribute's
// computation group, or "" if it has none
func (t *Tables) AttributeComputationGroupColumn(name string) string {
	if g := t.AttributeGroup(name); g != "" {
		return groupColumnName(g)
	}
	return ""
}

// AttributeLocation returns the table and columns of an attribute
func (t *Tables) AttributeLocation(name string) (Location, error) {
	sfx, ok := t.index.a2t[name]
	if !ok {
		return Location{}, errors.Wrapf(ErrUnknownAttribute, "attribute %s", name)
	}
	return Location{
		Suffix:            sfx,
		Table:             t.TableName(sfx),
		ValueColumns:      t.AttributeValueColumns(name),
		ComputationColumn: t.AttributeComputationColumn(name),
		GroupColumn:       t.AttributeComputationGroupColumn(name),
	}, nil
}

// TableAttributes returns the attributes resident in a table, sorted
func (t *Tables) TableAttributes(tableName string) ([]string, error) {
	sfx, err := t.TableSuffix(tableName)
	if err != nil {
		return nil, err
	}
	attrs, ok := t.index.t2a[sfx]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTable, "table %s", tableName)
	}
	return sortedKeys(attrs), nil
}

// TablesForAttributes groups attribute names by the table holding them
func (t *Tables) TablesForAttributes(names []string) (map[string][]string, error) {
	result := make(map[string][]string)
	for _, name := range names {
		tn, err := t.TableForAttribute(name)
		if err != nil {
			return nil, err
		}
		result[tn] = append(result[tn], name)
	}
	return result, nil
}

// TableLocations lists, for one table, the columns written when a set of
// attributes is stored together.
type TableLocations struct {
	Suffix     string
	Table      string
	Attributes []string
	// ValueColumns are the value columns of Attributes, in request order
	ValueColumns []string
	// SetComputation are the columns receiving the computation id
	SetComputation []string
	// UnsetComputation are the computation columns cleared
	UnsetComputation []string
}

// Locations is the result of LocationsForAttributes
type Locations struct {
	// Tables in the order they are first touched by the request
	Tables []*TableLocations
	// ValueColumns of all requested attributes, in request order; a value
	// sequence passed to SetAttributes is aligned with it
	ValueColumns []string
}

// LocationsForAttributes computes where the values of the given attributes
// are stored, and which computation id columns a write must set and clear.
//
// If every member of a computation group resident in a table is written,
// the group column receives the computation id and the members' own columns
// are cleared. If only some members are written, the id goes to the written
// members' own columns and the group column is kept, since it is still
// valid for the others. Attributes without group always get their own.
func (t *Tables) LocationsForAttributes(names []string) (*Locations, error) {
	result := &Locations{}
	byTable := make(map[string]*TableLocations)
	seen := set.New[string](len(names))

	for _, name := range names {
		sfx, ok := t.index.a2t[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownAttribute, "attribute %s", name)
		}
		if !seen.Insert(name) {
			return nil, errors.Newf("attribute %s requested more than once", name)
		}
		tl, ok := byTable[sfx]
		if !ok {
			tl = &TableLocations{Suffix: sfx, Table: t.TableName(sfx)}
			byTable[sfx] = tl
			result.Tables = append(result.Tables, tl)
		}
		vcols := valueColumnNames(name, t.index.t2a[sfx][name])
		tl.Attributes = append(tl.Attributes, name)
		tl.ValueColumns = append(tl.ValueColumns, vcols...)
		result.ValueColumns = append(result.ValueColumns, vcols...)
	}

	if !t.computationIDs {
		return result, nil
	}

	for _, tl := range result.Tables {
		requested := set.From(tl.Attributes)
		grouped := set.New[string](0)
		groups := t.index.t2g[tl.Suffix]
		for _, g := range sortedKeys(groups) {
			members := groups[g]
			grouped.InsertSet(members)
			if !members.Empty() && requested.Subset(members) {
				// whole group
				tl.SetComputation = append(tl.SetComputation, groupColumnName(g))
				for _, m := range sortedMembers(members) {
					tl.UnsetComputation = append(tl.UnsetComputation, computationColumnName(m))
				}
				continue
			}
			// partial group
			for _, name := range tl.Attributes {
				if members.Contains(name) {
					tl.SetComputation = append(tl.SetComputation, computationColumnName(name))
				}
			}
		}
		for _, name := range tl.Attributes {
			if !grouped.Contains(name) {
				tl.SetComputation = append(tl.SetComputation, computationColumnName(name))
			}
		}
	}
	return result, nil
}

func sortedMembers(members *set.Set[string]) []string {
	names := members.Slice()
	sort.Strings(names)
	return names
}
