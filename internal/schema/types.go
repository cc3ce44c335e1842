package schema

// Column represents a live column as reported by the storage engine
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Layout describes the placement of all attributes across the value tables
type Layout struct {
	Prefix        string
	TargetColumns int
	Tables        []Table
}

// Table represents one attribute value table
type Table struct {
	Suffix      string
	Name        string
	ColumnCount int
	EntityCount int
	Attributes  []Attribute
	Groups      []Group
}

// Attribute represents an attribute resident in a table
type Attribute struct {
	Name              string
	Datatype          string
	Group             string
	ValueColumns      []string
	ComputationColumn string
	ValueCount        int // entities holding a value
}

// Group represents a computation group column and its resident members
type Group struct {
	Name    string
	Column  string
	Members []string
}

// AttributeCount returns the number of attributes over all tables
func (l *Layout) AttributeCount() int {
	n := 0
	for _, t := range l.Tables {
		n += len(t.Attributes)
	}
	return n
}
