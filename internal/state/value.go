package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Value is one field value of a printer object. Values are immutable once built;
// the maps and slices returned by Fields and Items must not be modified.
type Value struct {
	kind    Kind
	num     float64
	str     string
	boolean bool
	fields  Fields
	items   []Value
}

// Fields maps field names to values.
type Fields map[string]Value

// Null returns the null value.
func Null() Value { return Value{} }

// Number wraps a float.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Map wraps a nested mapping. A nil map yields an empty mapping.
func Map(f Fields) Value {
	if f == nil {
		f = Fields{}
	}
	return Value{kind: KindMap, fields: f}
}

// List wraps a sequence.
func List(items ...Value) Value { return Value{kind: KindList, items: items} }

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the number held by v.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Str returns the string held by v.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Boolean returns the boolean held by v.
func (v Value) Boolean() (bool, bool) { return v.boolean, v.kind == KindBool }

// Fields returns the nested mapping held by v.
func (v Value) Fields() (Fields, bool) { return v.fields, v.kind == KindMap }

// Items returns the sequence held by v.
func (v Value) Items() ([]Value, bool) { return v.items, v.kind == KindList }

// Get walks nested mappings along path.
func (v Value) Get(path ...string) (Value, bool) {
	cur := v
	for _, key := range path {
		if cur.kind != KindMap {
			return Value{}, false
		}
		next, ok := cur.fields[key]
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.boolean == o.boolean
	case KindMap:
		return v.fields.Equal(o.fields)
	case KindList:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal reports deep equality of two field maps.
func (f Fields) Equal(o Fields) bool {
	if len(f) != len(o) {
		return false
	}
	for k, v := range f {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Interface converts v back to plain Go values (float64, string, bool,
// map[string]any, []any, nil).
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.boolean
	case KindMap:
		out := make(map[string]any, len(v.fields))
		for k, fv := range v.fields {
			out[k] = fv.Interface()
		}
		return out
	case KindList:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// String renders v compactly for display.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNull:
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(data)
}

// MarshalJSON implements json.Marshaler. Map keys are emitted sorted.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("marshal value: non-finite number")
		}
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.boolean)
	case KindMap:
		keys := make([]string, 0, len(v.fields))
		for k := range v.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.fields[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case KindList:
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler, validating the decoded shape.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// FromAny converts the output of encoding/json into a Value. Any other dynamic
// type is rejected.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case float64:
		return Number(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("decode number %q: %w", x, err)
		}
		return Number(f), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case map[string]any:
		fields := make(Fields, len(x))
		for k, item := range x {
			fv, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", k, err)
			}
			fields[k] = fv
		}
		return Map(fields), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = iv
		}
		return List(items...), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}
