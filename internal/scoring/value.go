package scoring

import (
	"fmt"
	"strconv"
)

// Kind tags the semantic type of a metrics value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindBool
	KindString
)

// Value is a metrics field decoded into a tagged variant.
type Value struct {
	Kind   Kind
	Number float64
	Bool   bool
	Str    string
}

// ValueOf classifies a raw metrics value. Integer and float types of any
// width are numbers; anything unrecognised is rendered as a string.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{Kind: KindNull}
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case float64:
		return Value{Kind: KindNumber, Number: t}
	case float32:
		return Value{Kind: KindNumber, Number: float64(t)}
	case int:
		return Value{Kind: KindNumber, Number: float64(t)}
	case int8:
		return Value{Kind: KindNumber, Number: float64(t)}
	case int16:
		return Value{Kind: KindNumber, Number: float64(t)}
	case int32:
		return Value{Kind: KindNumber, Number: float64(t)}
	case int64:
		return Value{Kind: KindNumber, Number: float64(t)}
	case uint:
		return Value{Kind: KindNumber, Number: float64(t)}
	case uint32:
		return Value{Kind: KindNumber, Number: float64(t)}
	case uint64:
		return Value{Kind: KindNumber, Number: float64(t)}
	case string:
		return Value{Kind: KindString, Str: t}
	default:
		return Value{Kind: KindString, Str: fmt.Sprint(t)}
	}
}

// Key is the canonical lookup key used by value rules: "true"/"false",
// "null", shortest decimal form for numbers, the string itself otherwise.
func (v Value) Key() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	default:
		return v.Str
	}
}

func (v Value) IsNumber() bool { return v.Kind == KindNumber }
