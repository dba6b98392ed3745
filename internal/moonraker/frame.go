package moonraker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Version is the JSON-RPC version tag Moonraker expects on every frame.
const Version = "2.0"

// ErrInvalidFrame marks frames that are not valid JSON or lack the fields their
// shape requires.
var ErrInvalidFrame = errors.New("invalid frame")

// FrameKind classifies an inbound frame by which fields are present.
type FrameKind int

const (
	KindNotification FrameKind = iota // no id
	KindRequest                       // id without result or error
	KindResponse                      // id with result or error
)

func (k FrameKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	default:
		return "notification"
	}
}

// Frame is the union of every JSON-RPC message shape on the websocket.
type Frame struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error payload of a failed response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HasID reports whether the frame carries a non-null id.
func (f Frame) HasID() bool {
	trimmed := bytes.TrimSpace(f.ID)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Kind classifies the frame.
func (f Frame) Kind() FrameKind {
	switch {
	case f.HasID() && (f.Result != nil || f.Error != nil):
		return KindResponse
	case f.HasID():
		return KindRequest
	default:
		return KindNotification
	}
}

// NumericID returns the id as an int64. Ids sent as numeric strings are accepted.
func (f Frame) NumericID() (int64, bool) {
	if !f.HasID() {
		return 0, false
	}
	raw := bytes.TrimSpace(f.ID)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		raw = []byte(s)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// DecodeFrame parses and validates one inbound text frame.
func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	switch frame.Kind() {
	case KindNotification:
		if frame.Method == "" {
			return Frame{}, fmt.Errorf("%w: notification without method", ErrInvalidFrame)
		}
	case KindRequest:
		if frame.Method == "" {
			return Frame{}, fmt.Errorf("%w: request without method", ErrInvalidFrame)
		}
	case KindResponse:
		if _, ok := frame.NumericID(); !ok {
			return Frame{}, fmt.Errorf("%w: response id %s is not numeric", ErrInvalidFrame, frame.ID)
		}
	}
	return frame, nil
}

// EncodeRequest builds a request frame. A nil params is omitted.
func EncodeRequest(id int64, method string, params any) ([]byte, error) {
	frame := Frame{JSONRPC: Version, ID: json.RawMessage(strconv.FormatInt(id, 10)), Method: method}
	if err := setParams(&frame, params); err != nil {
		return nil, err
	}
	return json.Marshal(frame)
}

// EncodeNotification builds a frame without an id; no response is expected.
func EncodeNotification(method string, params any) ([]byte, error) {
	frame := Frame{JSONRPC: Version, Method: method}
	if err := setParams(&frame, params); err != nil {
		return nil, err
	}
	return json.Marshal(frame)
}

// EncodeResponse builds a response frame. Used by test servers.
func EncodeResponse(id json.RawMessage, result any, rpcErr *RPCError) ([]byte, error) {
	frame := Frame{JSONRPC: Version, ID: id, Error: rpcErr}
	if rpcErr == nil {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		frame.Result = data
	}
	return json.Marshal(frame)
}

func setParams(frame *Frame, params any) error {
	if params == nil {
		return nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		frame.Params = raw
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params for %s: %w", frame.Method, err)
	}
	frame.Params = data
	return nil
}
