package moonraker

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeFrame_Classifies(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want FrameKind
	}{
		{"response with result", `{"jsonrpc":"2.0","id":7,"result":"ok"}`, KindResponse},
		{"response with null result", `{"jsonrpc":"2.0","id":7,"result":null}`, KindResponse},
		{"response with error", `{"jsonrpc":"2.0","id":"8","error":{"code":400,"message":"bad"}}`, KindResponse},
		{"request", `{"jsonrpc":"2.0","id":3,"method":"server.ping"}`, KindRequest},
		{"notification", `{"jsonrpc":"2.0","method":"notify_klippy_ready"}`, KindNotification},
		{"null id notification", `{"jsonrpc":"2.0","id":null,"method":"notify_klippy_ready"}`, KindNotification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := DecodeFrame([]byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeFrame returned error: %v", err)
			}
			if got := frame.Kind(); got != tt.want {
				t.Fatalf("Kind = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeFrame_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{not-json`},
		{"array", `[1,2]`},
		{"notification without method", `{"jsonrpc":"2.0","params":[]}`},
		{"request without method", `{"jsonrpc":"2.0","id":4}`},
		{"non numeric response id", `{"jsonrpc":"2.0","id":"abc","result":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame([]byte(tt.raw))
			if !errors.Is(err, ErrInvalidFrame) {
				t.Fatalf("DecodeFrame error = %v, want ErrInvalidFrame", err)
			}
		})
	}
}

func TestNumericID(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"id":"42","result":{}}`))
	if err != nil {
		t.Fatalf("DecodeFrame returned error: %v", err)
	}
	id, ok := frame.NumericID()
	if !ok || id != 42 {
		t.Fatalf("NumericID = %d, %v, want 42, true", id, ok)
	}
}

func TestEncodeRequestAndNotification(t *testing.T) {
	data, err := EncodeRequest(5, MethodObjectsSubscribe, NewSubscribeParams([]string{"extruder"}))
	if err != nil {
		t.Fatalf("EncodeRequest returned error: %v", err)
	}
	var req map[string]any
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if req["jsonrpc"] != Version || req["id"] != float64(5) || req["method"] != MethodObjectsSubscribe {
		t.Fatalf("request = %v, want jsonrpc/id/method set", req)
	}
	objects := req["params"].(map[string]any)["objects"].(map[string]any)
	if v, ok := objects["extruder"]; !ok || v != nil {
		t.Fatalf("params.objects = %v, want extruder: null", objects)
	}

	data, err = EncodeNotification(MethodGCodeScript, GCodeScriptParams{Script: "G28"})
	if err != nil {
		t.Fatalf("EncodeNotification returned error: %v", err)
	}
	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame returned error: %v", err)
	}
	if frame.HasID() || frame.Kind() != KindNotification {
		t.Fatalf("notification frame = %+v, want no id", frame)
	}
}

func TestEncodeResponse(t *testing.T) {
	data, err := EncodeResponse(json.RawMessage("9"), nil, &RPCError{Code: 503, Message: "Klippy Host not connected"})
	if err != nil {
		t.Fatalf("EncodeResponse returned error: %v", err)
	}
	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame returned error: %v", err)
	}
	if frame.Kind() != KindResponse || frame.Error == nil || frame.Error.Code != 503 {
		t.Fatalf("frame = %+v, want error response 503", frame)
	}
}

func TestStatusUpdate(t *testing.T) {
	delta, eventTime, err := StatusUpdate(json.RawMessage(`[{"extruder":{"temperature":201.5}}, 1234.5]`))
	if err != nil {
		t.Fatalf("StatusUpdate returned error: %v", err)
	}
	if eventTime != 1234.5 {
		t.Fatalf("eventtime = %v, want 1234.5", eventTime)
	}
	if string(delta) != `{"extruder":{"temperature":201.5}}` {
		t.Fatalf("delta = %s", delta)
	}

	for _, raw := range []string{`{}`, `[]`, `[{}, "x"]`} {
		if _, _, err := StatusUpdate(json.RawMessage(raw)); !errors.Is(err, ErrInvalidFrame) {
			t.Fatalf("StatusUpdate(%s) error = %v, want ErrInvalidFrame", raw, err)
		}
	}
}

func TestGCodeResponse(t *testing.T) {
	lines, err := GCodeResponse(json.RawMessage(`["// Klipper state: Ready"]`))
	if err != nil || len(lines) != 1 {
		t.Fatalf("GCodeResponse = %v, %v, want one line", lines, err)
	}
	if _, err := GCodeResponse(json.RawMessage(`{"a":1}`)); err == nil {
		t.Fatalf("GCodeResponse returned nil error for object params")
	}
}
