package flow

import (
	"fmt"
	"strings"
)

// Record represents a single row flowing through a graph: a mapping from
// column name to a scalar or list value. Supported scalars are signed
// integers, floats, strings, booleans and nil; lists hold scalars.
type Record map[string]interface{}

// clone returns a shallow copy of the record. Operators that rebuild records
// work on copies so that upstream buffers are never mutated.
func (r Record) clone() Record {
	dup := make(Record, len(r))
	for k, v := range r {
		dup[k] = v
	}
	return dup
}

// keyTuple extracts the values at the given columns in order.
// A missing column is reported with its name so callers can build a SchemaError.
func (r Record) keyTuple(columns []string) ([]interface{}, string, bool) {
	tuple := make([]interface{}, len(columns))
	for i, column := range columns {
		value, ok := r[column]
		if !ok {
			return nil, column, false
		}
		tuple[i] = value
	}
	return tuple, "", true
}

// valueKind classifies a value for ordering purposes. Integers and floats
// share a kind so that numeric columns compare naturally; everything else
// only compares within its own kind.
type valueKind int

const (
	kindNull valueKind = iota
	kindBool
	kindNumber
	kindString
	kindList
	kindUnsupported
)

func (k valueKind) String() string {
	switch k {
	case kindNull:
		return "null"
	case kindBool:
		return "bool"
	case kindNumber:
		return "number"
	case kindString:
		return "string"
	case kindList:
		return "list"
	default:
		return "unsupported"
	}
}

func kindOf(value interface{}) valueKind {
	switch value.(type) {
	case nil:
		return kindNull
	case bool:
		return kindBool
	case int, int32, int64, float32, float64:
		return kindNumber
	case string:
		return kindString
	case []interface{}:
		return kindList
	default:
		return kindUnsupported
	}
}

// compareValues defines the total order used by Sort and the join merge.
// Nulls form their own equivalence class and order before every other value.
// Comparing values of different non-null kinds (for instance a number against
// a string) is a schema violation and returns an error.
func compareValues(a, b interface{}) (int, error) {
	ka, kb := kindOf(a), kindOf(b)
	if ka == kindUnsupported || kb == kindUnsupported {
		return 0, fmt.Errorf("value of type %T is not comparable", pickUnsupported(a, b))
	}
	if ka == kindNull || kb == kindNull {
		switch {
		case ka == kb:
			return 0, nil
		case ka == kindNull:
			return -1, nil
		default:
			return 1, nil
		}
	}
	if ka != kb {
		return 0, fmt.Errorf("cannot compare %s with %s", ka, kb)
	}

	switch ka {
	case kindBool:
		av, bv := a.(bool), b.(bool)
		switch {
		case av == bv:
			return 0, nil
		case !av:
			return -1, nil
		default:
			return 1, nil
		}
	case kindNumber:
		return compareNumbers(a, b), nil
	case kindString:
		return strings.Compare(a.(string), b.(string)), nil
	case kindList:
		return compareLists(a.([]interface{}), b.([]interface{}))
	}
	return 0, nil
}

// compareNumbers compares two numeric values. Integer pairs are compared as
// int64 so that identifiers beyond float64 precision keep their order; mixed
// integer/float pairs fall back to float comparison.
func compareNumbers(a, b interface{}) int {
	ai, aIsInt := asInt64(a)
	bi, bIsInt := asInt64(b)
	if aIsInt && bIsInt {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	af, bf := asFloat64(a), asFloat64(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func compareLists(a, b []interface{}) (int, error) {
	limit := len(a)
	if len(b) < limit {
		limit = len(b)
	}
	for i := 0; i < limit; i++ {
		cmp, err := compareValues(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if cmp != 0 {
			return cmp, nil
		}
	}
	switch {
	case len(a) < len(b):
		return -1, nil
	case len(a) > len(b):
		return 1, nil
	default:
		return 0, nil
	}
}

// compareTuples compares two key tuples column by column.
func compareTuples(a, b []interface{}) (int, error) {
	for i := range a {
		cmp, err := compareValues(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if cmp != 0 {
			return cmp, nil
		}
	}
	return 0, nil
}

// equalTuples reports whether two key tuples are equal under the comparison
// order. Tuples of incomparable kinds are simply unequal: Reduce uses this to
// close a group, which does not require a total order.
func equalTuples(a, b []interface{}) bool {
	for i := range a {
		cmp, err := compareValues(a[i], b[i])
		if err != nil || cmp != 0 {
			return false
		}
	}
	return true
}

func asInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func asFloat64(value interface{}) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}

func pickUnsupported(a, b interface{}) interface{} {
	if kindOf(a) == kindUnsupported {
		return a
	}
	return b
}
