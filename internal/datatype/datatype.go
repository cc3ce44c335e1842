// Package datatype parses attribute datatype specifications.
//
// A specification is a semicolon separated list of element types, each
// optionally carrying constructor arguments and a repeat count:
//
//	Boolean[8];Integer;String(12)
//
// describes ten value elements: eight booleans, one integer and one string
// of length 12. Whitespace between tokens is not accepted.
package datatype

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// ErrUnknownToken is returned when a specification token cannot be resolved
// to a known scalar type, or its arguments or repeat count are malformed.
var ErrUnknownToken = errors.New("unknown datatype token")

// Kind identifies a scalar SQL type family.
type Kind int

const (
	Integer Kind = iota
	SmallInteger
	BigInteger
	Float
	Double
	Numeric
	Boolean
	String
	Char
	Text
	Binary
	VarBinary
	Blob
	Date
	DateTime
	Timestamp
)

var kindNames = map[Kind]string{
	Integer:      "Integer",
	SmallInteger: "SmallInteger",
	BigInteger:   "BigInteger",
	Float:        "Float",
	Double:       "Double",
	Numeric:      "Numeric",
	Boolean:      "Boolean",
	String:       "String",
	Char:         "CHAR",
	Text:         "Text",
	Binary:       "BINARY",
	VarBinary:    "VARBINARY",
	Blob:         "LargeBinary",
	Date:         "Date",
	DateTime:     "DateTime",
	Timestamp:    "TIMESTAMP",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// typeNames maps every accepted type name to its kind. Both the generic
// CamelCase names and the SQL standard upper-case names are accepted.
var typeNames = map[string]Kind{
	"Integer":      Integer,
	"INTEGER":      Integer,
	"INT":          Integer,
	"SmallInteger": SmallInteger,
	"SMALLINT":     SmallInteger,
	"BigInteger":   BigInteger,
	"BIGINT":       BigInteger,
	"Float":        Float,
	"FLOAT":        Float,
	"REAL":         Float,
	"Double":       Double,
	"DOUBLE":       Double,
	"Numeric":      Numeric,
	"NUMERIC":      Numeric,
	"DECIMAL":      Numeric,
	"Boolean":      Boolean,
	"BOOLEAN":      Boolean,
	"String":       String,
	"VARCHAR":      String,
	"CHAR":         Char,
	"Text":         Text,
	"TEXT":         Text,
	"BINARY":       Binary,
	"VARBINARY":    VarBinary,
	"LargeBinary":  Blob,
	"BLOB":         Blob,
	"Date":         Date,
	"DATE":         Date,
	"DateTime":     DateTime,
	"DATETIME":     DateTime,
	"TIMESTAMP":    Timestamp,
}

// maxArgs is the number of constructor arguments accepted per kind;
// kinds not listed take none.
var maxArgs = map[Kind]int{
	String:    1,
	Char:      1,
	Binary:    1,
	VarBinary: 1,
	Numeric:   2,
}

// Type is one element of a parsed specification.
type Type struct {
	Kind Kind
	Args []int
}

// Length returns the first constructor argument, or def if there is none.
func (t Type) Length(def int) int {
	if len(t.Args) == 0 {
		return def
	}
	return t.Args[0]
}

// ConvertText converts the text form of a value of this type into a driver
// argument: integers, floats and booleans are parsed, binary kinds become
// bytes, and strings are checked against their length.
func (t Type) ConvertText(s string) (any, error) {
	switch t.Kind {
	case Integer, SmallInteger, BigInteger:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s value %q", t, s)
		}
		return v, nil
	case Float, Double:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s value %q", t, s)
		}
		return v, nil
	case Numeric:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return nil, errors.Wrapf(err, "invalid %s value %q", t, s)
		}
		return s, nil
	case Boolean:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s value %q", t, s)
		}
		return v, nil
	case String, Char:
		if n := t.Length(0); n > 0 && utf8.RuneCountInString(s) > n {
			return nil, errors.Newf("%s value %q is longer than %d characters", t, s, n)
		}
		return s, nil
	case Binary, VarBinary, Blob:
		return []byte(s), nil
	default:
		return s, nil
	}
}

// String renders the type back into specification syntax.
func (t Type) String() string {
	if len(t.Args) == 0 {
		return t.Kind.String()
	}
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = strconv.Itoa(a)
	}
	return t.Kind.String() + "(" + strings.Join(args, ",") + ")"
}

// Parse parses a datatype specification into its flattened element types.
func Parse(spec string) ([]Type, error) {
	if spec == "" {
		return nil, errors.Wrap(ErrUnknownToken, "empty datatype specification")
	}
	var result []Type
	for _, token := range strings.Split(spec, ";") {
		t, n, err := parseToken(token)
		if err != nil {
			return nil, errors.Wrapf(err, "in datatype specification %q", spec)
		}
		for i := 0; i < n; i++ {
			result = append(result, t)
		}
	}
	return result, nil
}

// ParseOne parses a specification which must describe exactly one element.
func ParseOne(spec string) (Type, error) {
	types, err := Parse(spec)
	if err != nil {
		return Type{}, err
	}
	if len(types) != 1 {
		return Type{}, errors.Wrapf(ErrUnknownToken, "%q describes %d elements, expected one", spec, len(types))
	}
	return types[0], nil
}

func parseToken(token string) (Type, int, error) {
	if token == "" {
		return Type{}, 0, errors.Wrap(ErrUnknownToken, "empty token")
	}

	base, n := token, 1
	if strings.HasSuffix(token, "]") {
		open := strings.LastIndex(token, "[")
		if open < 0 {
			return Type{}, 0, errors.Wrapf(ErrUnknownToken, "unbalanced repeat count in %q", token)
		}
		count, err := strconv.Atoi(token[open+1 : len(token)-1])
		if err != nil || count <= 1 {
			return Type{}, 0, errors.Wrapf(ErrUnknownToken, "repeat count in %q must be an integer > 1", token)
		}
		base, n = token[:open], count
	}

	name := base
	var args []int
	if strings.HasSuffix(base, ")") {
		open := strings.Index(base, "(")
		if open < 0 {
			return Type{}, 0, errors.Wrapf(ErrUnknownToken, "unbalanced arguments in %q", token)
		}
		name = base[:open]
		for _, raw := range strings.Split(base[open+1:len(base)-1], ",") {
			arg, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return Type{}, 0, errors.Wrapf(ErrUnknownToken, "argument %q in %q is not an integer", raw, token)
			}
			args = append(args, arg)
		}
	}

	kind, ok := typeNames[name]
	if !ok {
		return Type{}, 0, errors.Wrapf(ErrUnknownToken, "unknown datatype %q", name)
	}
	if len(args) > maxArgs[kind] {
		return Type{}, 0, errors.Wrapf(ErrUnknownToken, "%s accepts at most %d arguments, got %d", name, maxArgs[kind], len(args))
	}
	return Type{Kind: kind, Args: args}, n, nil
}

// Compatible reports whether a column declared as expected may be reported
// by the engine as found. Both are SQL type strings; comparison is case
// insensitive and by prefix, so that "INT(11)" satisfies "INT". Engines
// without a native boolean store BOOLEAN as TINYINT, which is accepted.
func Compatible(expected, found string) bool {
	e := strings.ToUpper(strings.TrimSpace(expected))
	f := strings.ToUpper(strings.TrimSpace(found))
	if strings.HasPrefix(f, e) {
		return true
	}
	return strings.HasPrefix(e, "BOOLEAN") && strings.HasPrefix(f, "TINYINT")
}
