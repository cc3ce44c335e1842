package attrtables

// Values is what SetAttributes writes for one entity: either a sequence of
// values aligned with the value columns of the request, or an explicit
// clear of all of them.
type Values struct {
	elems []any
	clear bool
}

// Seq returns a value sequence. Use nil elements for NULL.
func Seq(vals ...any) Values {
	return Values{elems: vals}
}

// Clear returns a Values that sets all value columns to NULL
func Clear() Values {
	return Values{clear: true}
}

// IsClear reports whether v clears the value columns
func (v Values) IsClear() bool {
	return v.clear
}

// Elems returns the values of a sequence
func (v Values) Elems() []any {
	return v.elems
}

// Result is the stored value of one attribute for one entity
type Result struct {
	// Values holds one element per value column
	Values []any
	// ComputationID is the attribute's computation id, or the one of its
	// computation group if the attribute has none recorded. It is nil if
	// neither is set or computation ids are disabled.
	ComputationID any
}

// Scalar returns the value of a single-column attribute. For attributes
// with several value columns it returns the first one.
func (r Result) Scalar() any {
	if len(r.Values) == 0 {
		return nil
	}
	return r.Values[0]
}

// Tuple returns all values in value column order
func (r Result) Tuple() []any {
	return append([]any(nil), r.Values...)
}
