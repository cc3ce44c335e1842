package attrtables

import (
	"github.com/cockroachdb/errors"

	"github.com/tordrt/attrtables/internal/datatype"
)

// Error kinds. Operations wrap these with context; test with errors.Is.
var (
	// ErrDuplicateAttribute is returned when declaring an existing name
	ErrDuplicateAttribute = errors.New("attribute exists already")

	// ErrUnknownAttribute is returned when operating on an undeclared name
	ErrUnknownAttribute = errors.New("attribute not found")

	// ErrUnknownDatatypeToken is returned when a datatype specification
	// cannot be parsed
	ErrUnknownDatatypeToken = datatype.ErrUnknownToken

	// ErrTableSuffixCollision is returned when creating a table whose
	// suffix is in use, or when the staging suffix names a value table
	ErrTableSuffixCollision = errors.New("table suffix is not unique")

	// ErrUnknownTable is returned when dropping a table that does not exist
	ErrUnknownTable = errors.New("no table has this suffix")

	// ErrMultiTableAttribute is returned when an attribute's columns are
	// found in more than one table while rebuilding the location index
	ErrMultiTableAttribute = errors.New("attribute found in multiple tables")

	// ErrSchemaMismatch is returned by CheckConsistency for missing
	// columns, wrong column types and inconsistent group membership
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrMissingDefinitionsTable is returned when the attribute
	// definitions table does not exist
	ErrMissingDefinitionsTable = errors.New("attribute definitions table not found")

	// ErrOrphanedDefinition is returned when attribute definitions have no
	// corresponding columns in the value tables
	ErrOrphanedDefinition = errors.New("attribute definitions without value columns")

	// ErrValueCount is returned when a value sequence does not match the
	// number of value columns being set
	ErrValueCount = errors.New("wrong number of values")

	// ErrUnsupportedDatabase is returned for unknown URL schemes or engines
	ErrUnsupportedDatabase = errors.New("unsupported database")
)
