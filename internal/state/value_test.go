package state

import (
	"encoding/json"
	"testing"
)

func TestValue_UnmarshalTaggedUnion(t *testing.T) {
	var v Value
	raw := `{"temperature": 201.5, "target": 0, "name": "extruder", "can_extrude": true,
		"info": {"current_layer": null}, "position": [1, 2.5, "x"]}`
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.Kind() != KindMap {
		t.Fatalf("Kind = %v, want map", v.Kind())
	}
	if f, ok := mustGet(t, v, "temperature").Float(); !ok || f != 201.5 {
		t.Fatalf("temperature = %v, %v, want 201.5", f, ok)
	}
	if s, ok := mustGet(t, v, "name").Str(); !ok || s != "extruder" {
		t.Fatalf("name = %q, %v", s, ok)
	}
	if b, ok := mustGet(t, v, "can_extrude").Boolean(); !ok || !b {
		t.Fatalf("can_extrude = %v, %v", b, ok)
	}
	if !mustGet(t, v, "info", "current_layer").IsNull() {
		t.Fatalf("info.current_layer is not null")
	}
	items, ok := mustGet(t, v, "position").Items()
	if !ok || len(items) != 3 || items[2].Kind() != KindString {
		t.Fatalf("position = %v, want 3 mixed items", items)
	}
	if _, ok := v.Get("temperature", "deeper"); ok {
		t.Fatalf("Get through a number succeeded")
	}
}

func TestValue_MarshalRoundTripIsStable(t *testing.T) {
	v := Map(Fields{
		"b": Number(2),
		"a": List(Bool(true), Null(), String("s")),
		"c": Map(nil),
	})
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"a":[true,null,"s"],"b":2,"c":{}}` {
		t.Fatalf("Marshal = %s", data)
	}
	var back Value
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.Equal(v) {
		t.Fatalf("round trip changed value: %s", back)
	}
}

func TestFromAny_RejectsForeignTypes(t *testing.T) {
	if _, err := FromAny(struct{}{}); err == nil {
		t.Fatalf("FromAny(struct{}) returned nil error")
	}
	if _, err := FromAny(map[string]any{"x": []any{1}}); err == nil {
		t.Fatalf("FromAny with int element returned nil error")
	}
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{String("ready"), "ready"},
		{Number(1.5), "1.5"},
		{Null(), "null"},
		{Bool(false), "false"},
		{Map(Fields{"x": Number(1)}), `{"x":1}`},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Fatalf("String() = %q, want %q", got, tt.want)
		}
	}
}

func mustGet(t *testing.T, v Value, path ...string) Value {
	t.Helper()
	got, ok := v.Get(path...)
	if !ok {
		t.Fatalf("Get(%v) missing", path)
	}
	return got
}
