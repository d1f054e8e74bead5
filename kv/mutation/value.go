package mutation

import (
	"encoding/gob"
	"fmt"
	"strings"

	"github.com/pingcap/errors"
	"github.com/shopspring/decimal"
)

func init() {
	gob.Register(decimal.Decimal{})
}

// ValueType is the type of an attribute or associated data value.
type ValueType int

const (
	TypeUnknown ValueType = iota
	TypeString
	TypeInt
	TypeBool
	TypeDecimal
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeDecimal:
		return "decimal"
	}
	return "unknown"
}

func (t ValueType) Numeric() bool {
	return t == TypeInt || t == TypeDecimal
}

// ParseValueType is the inverse of ValueType.String.
func ParseValueType(s string) (ValueType, error) {
	for _, t := range []ValueType{TypeString, TypeInt, TypeBool, TypeDecimal} {
		if strings.EqualFold(t.String(), s) {
			return t, nil
		}
	}
	return TypeUnknown, errors.Errorf("unknown value type %q", s)
}

// TypeOf returns the ValueType of v, or TypeUnknown for unsupported values.
func TypeOf(v interface{}) ValueType {
	switch v.(type) {
	case string:
		return TypeString
	case int64:
		return TypeInt
	case bool:
		return TypeBool
	case decimal.Decimal:
		return TypeDecimal
	}
	return TypeUnknown
}

// CompareValues orders two values of the same type. Values of different types are ordered by type.
func CompareValues(a, b interface{}) int {
	ta, tb := TypeOf(a), TypeOf(b)
	if ta != tb {
		if ta < tb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case string:
		return strings.Compare(av, b.(string))
	case int64:
		bv := b.(int64)
		if av < bv {
			return -1
		} else if av > bv {
			return 1
		}
		return 0
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		} else if !av {
			return -1
		}
		return 1
	case decimal.Decimal:
		return av.Cmp(b.(decimal.Decimal))
	}
	return 0
}

func ValuesEqual(a, b interface{}) bool {
	return TypeOf(a) == TypeOf(b) && CompareValues(a, b) == 0
}

// ValueKey renders v into a string usable as a map key. Equal values render equally, so 1.50 and 1.5
// share a key.
func ValueKey(v interface{}) string {
	switch tv := v.(type) {
	case decimal.Decimal:
		return "d:" + tv.String()
	case string:
		return "s:" + tv
	}
	return fmt.Sprintf("%c:%v", TypeOf(v).String()[0], v)
}

// addDelta adds delta to a numeric value of the same type.
func addDelta(value, delta interface{}) (interface{}, error) {
	switch v := value.(type) {
	case int64:
		if d, ok := delta.(int64); ok {
			return v + d, nil
		}
	case decimal.Decimal:
		if d, ok := delta.(decimal.Decimal); ok {
			return v.Add(d), nil
		}
	default:
		return nil, errors.Errorf("value %v of type %s is not numeric", value, TypeOf(value))
	}
	return nil, errors.Errorf("delta %v of type %s does not match value type %s", delta, TypeOf(delta), TypeOf(value))
}
