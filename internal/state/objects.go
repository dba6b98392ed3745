package state

import (
	"encoding/json"
	"fmt"
)

// Objects maps printer object names (extruder, heater_bed, print_stats, ...) to
// their latest known fields.
type Objects map[string]Fields

// DecodeObjects validates and decodes a `{object: {field: value}}` payload as sent
// by printer.objects.subscribe and notify_status_update. A null object decodes to
// an empty field map.
func DecodeObjects(raw json.RawMessage) (Objects, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("decode objects: %w", err)
	}
	if top == nil {
		return nil, fmt.Errorf("decode objects: payload is not an object")
	}
	objects := make(Objects, len(top))
	for name, body := range top {
		var v Value
		if err := v.UnmarshalJSON(body); err != nil {
			return nil, fmt.Errorf("decode object %q: %w", name, err)
		}
		switch v.Kind() {
		case KindNull:
			objects[name] = Fields{}
		case KindMap:
			objects[name] = v.fields
		default:
			return nil, fmt.Errorf("decode object %q: got %s, want map", name, v.Kind())
		}
	}
	return objects, nil
}

// Merge returns o with delta applied. Delta keys overwrite, nested mappings are
// merged recursively, and everything delta does not name is kept. Neither input
// is modified; untouched objects are shared with o.
func (o Objects) Merge(delta Objects) Objects {
	out := make(Objects, len(o)+len(delta))
	for name, fields := range o {
		out[name] = fields
	}
	for name, fields := range delta {
		out[name] = mergeFields(o[name], fields)
	}
	return out
}

// Equal reports deep equality.
func (o Objects) Equal(other Objects) bool {
	if len(o) != len(other) {
		return false
	}
	for name, fields := range o {
		of, ok := other[name]
		if !ok || !fields.Equal(of) {
			return false
		}
	}
	return true
}

// Names returns the object names in no particular order.
func (o Objects) Names() []string {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	return names
}

func mergeFields(base, delta Fields) Fields {
	out := make(Fields, len(base)+len(delta))
	for k, v := range base {
		out[k] = v
	}
	for k, dv := range delta {
		if bv, ok := base[k]; ok && bv.kind == KindMap && dv.kind == KindMap {
			out[k] = Map(mergeFields(bv.fields, dv.fields))
			continue
		}
		out[k] = dv
	}
	return out
}
