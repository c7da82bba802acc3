package rpc

import (
	"encoding/json"
)

// Bodies are opaque bytes; encoding/json carries them as base64.
type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Body   []byte `json:"body,omitempty"`
}

type response struct {
	ID      uint64 `json:"id"`
	Code    Code   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Body    []byte `json:"body,omitempty"`
}

func (r response) err() error {
	if r.Code == 0 {
		return nil
	}
	return &Error{Code: r.Code, Message: r.Message}
}

// Marshal encodes a typed request or response body.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, newError(ExecutionError, "marshal %T: %v", v, err)
	}
	return data, nil
}

// Unmarshal decodes a body produced by Marshal.
func Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return newError(ExecutionError, "unmarshal %T: %v", v, err)
	}
	return nil
}
