package attrtables

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-set/v2"

	"github.com/tordrt/attrtables/internal/db"
)

// locationIndex is derived from the live schema: which table holds each
// attribute, how many value columns it has there, which computation group
// columns each table carries and the resident members of each group.
type locationIndex struct {
	order []string                              // table suffixes in visiting order
	a2t   map[string]string                     // attribute -> table suffix
	t2a   map[string]map[string]int             // table suffix -> attribute -> value columns
	t2g   map[string]map[string]*set.Set[string] // table suffix -> group -> resident members
	ncols map[string]int                        // table suffix -> columns, entity key included
}

func newLocationIndex() *locationIndex {
	return &locationIndex{
		a2t:   make(map[string]string),
		t2a:   make(map[string]map[string]int),
		t2g:   make(map[string]map[string]*set.Set[string]),
		ncols: make(map[string]int),
	}
}

func (ix *locationIndex) hasTable(sfx string) bool {
	_, ok := ix.t2a[sfx]
	return ok
}

func (ix *locationIndex) addTable(sfx string) {
	ix.order = append(ix.order, sfx)
	ix.t2a[sfx] = make(map[string]int)
	ix.t2g[sfx] = make(map[string]*set.Set[string])
	ix.ncols[sfx] = 1
}

// removeTable forgets a table and every attribute resident in it
func (ix *locationIndex) removeTable(sfx string) {
	for name := range ix.t2a[sfx] {
		delete(ix.a2t, name)
	}
	delete(ix.t2a, sfx)
	delete(ix.t2g, sfx)
	delete(ix.ncols, sfx)
	for i, s := range ix.order {
		if s == sfx {
			ix.order = append(ix.order[:i], ix.order[i+1:]...)
			break
		}
	}
}

func (ix *locationIndex) addAttribute(sfx, name string, nvalues int, group string, ncols int) {
	ix.a2t[name] = sfx
	ix.t2a[sfx][name] = nvalues
	if group != "" {
		members, ok := ix.t2g[sfx][group]
		if !ok {
			members = set.New[string](1)
			ix.t2g[sfx][group] = members
		}
		members.Insert(name)
	}
	ix.ncols[sfx] += ncols
}

func (ix *locationIndex) removeAttribute(sfx, name, group string, ncols int) {
	delete(ix.a2t, name)
	delete(ix.t2a[sfx], name)
	if members, ok := ix.t2g[sfx][group]; ok {
		members.Remove(name)
		if members.Empty() {
			delete(ix.t2g[sfx], group)
		}
	}
	ix.ncols[sfx] -= ncols
}

// groupOf returns the group in whose membership the attribute is recorded
func (ix *locationIndex) groupOf(name string) string {
	sfx, ok := ix.a2t[name]
	if !ok {
		return ""
	}
	for _, g := range sortedKeys(ix.t2g[sfx]) {
		if ix.t2g[sfx][g].Contains(name) {
			return g
		}
	}
	return ""
}

func (ix *locationIndex) attributeNames() []string {
	return sortedKeys(ix.a2t)
}

// rebuildIndex derives the location index from the live tables whose name
// carries the configured prefix, reading group membership from the catalog.
func (t *Tables) rebuildIndex(ctx context.Context, q db.Querier) (*locationIndex, error) {
	tableNames, err := t.dialect.TableNames(ctx, q)
	if err != nil {
		return nil, err
	}

	var suffixes []string
	for _, tn := range tableNames {
		if strings.HasPrefix(tn, t.prefix) && len(tn) > len(t.prefix) && tn != t.catalog.Table() {
			suffixes = append(suffixes, tn[len(t.prefix):])
		}
	}
	sortSuffixes(suffixes)

	ix := newLocationIndex()
	var conflicts error
	for _, sfx := range suffixes {
		tn := t.TableName(sfx)
		columns, err := t.dialect.Columns(ctx, q, tn)
		if err != nil {
			return nil, err
		}

		ix.addTable(sfx)
		ix.ncols[sfx] = len(columns)

		var groupNames []string
		for _, col := range columns {
			switch {
			case col.Name == EntityIDColumn:
			case strings.HasSuffix(col.Name, computationColumnSuffix):
			case strings.HasSuffix(col.Name, groupColumnSuffix):
				groupNames = append(groupNames, baseName(col.Name))
			default:
				ix.t2a[sfx][baseName(col.Name)]++
			}
		}

		names := sortedKeys(ix.t2a[sfx])
		for _, name := range names {
			if other, ok := ix.a2t[name]; ok {
				conflicts = errors.CombineErrors(conflicts, errors.Wrapf(ErrMultiTableAttribute,
					"attribute %s found in %s and %s", name, t.TableName(other), tn))
				continue
			}
			ix.a2t[name] = sfx
		}

		if !t.groups {
			continue
		}
		for _, g := range groupNames {
			members, err := t.catalog.GroupMembers(ctx, q, g, names)
			if err != nil {
				return nil, err
			}
			ix.t2g[sfx][g] = set.From(members)
		}
	}

	if conflicts != nil {
		return nil, conflicts
	}

	t.logger.Debugw("Rebuilt location index",
		"tables", len(ix.order),
		"attributes", len(ix.a2t))
	return ix, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
