package lincheck

import (
	"encoding/json"
	"fmt"

	"github.com/matrix-sim/matrix/sim/history"
)

// Methods of the key-value store.
const (
	KVSet = "KV.Set"
	KVGet = "KV.Get"
)

// KVArgs is the request body of KV.Set and KV.Get. The response of KV.Get is
// the JSON encoded uint32 value.
type KVArgs struct {
	Key   string `json:"key"`
	Value uint32 `json:"value,omitempty"`
}

// KVModel is a map from string keys to uint32 values, all initially 0.
// Its state is the canonical JSON encoding of the map.
type KVModel struct{}

var _ Model[string] = KVModel{}

func (KVModel) Init() string {
	return "{}"
}

func (KVModel) Apply(state string, c history.Call) (string, bool) {
	args, err := decodeKVArgs(c)
	if err != nil {
		return state, false
	}
	store := map[string]uint32{}
	if err := json.Unmarshal([]byte(state), &store); err != nil {
		panic(fmt.Sprintf("corrupt KV model state %q", state))
	}
	switch c.Method {
	case KVSet:
		store[args.Key] = args.Value
		next, _ := json.Marshal(store)
		return string(next), true
	case KVGet:
		if !c.IsCompleted() {
			return state, true
		}
		var got uint32
		if err := json.Unmarshal(c.Result, &got); err != nil {
			return state, false
		}
		return state, got == store[args.Key]
	default:
		return state, false
	}
}

func (KVModel) IsMutation(c history.Call) bool {
	return c.Method == KVSet
}

// Decompose splits by key, in order of first appearance.
func (KVModel) Decompose(h history.History) []history.History {
	var keys []string
	byKey := map[string]history.History{}
	for _, c := range h {
		args, err := decodeKVArgs(c)
		if err != nil {
			// Undecodable calls go into their own part and fail there.
			args.Key = "\x00malformed"
		}
		if _, ok := byKey[args.Key]; !ok {
			keys = append(keys, args.Key)
		}
		byKey[args.Key] = append(byKey[args.Key], c)
	}
	out := make([]history.History, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out
}

func (KVModel) Describe(c history.Call) string {
	args, err := decodeKVArgs(c)
	if err != nil {
		return fmt.Sprintf("%s(%q)", c.Method, c.Arguments)
	}
	switch c.Method {
	case KVSet:
		return fmt.Sprintf("Set(%s, %d)", args.Key, args.Value)
	case KVGet:
		if c.IsCompleted() {
			return fmt.Sprintf("Get(%s) -> %s", args.Key, c.Result)
		}
		return fmt.Sprintf("Get(%s)", args.Key)
	default:
		return c.Method
	}
}

func decodeKVArgs(c history.Call) (KVArgs, error) {
	var args KVArgs
	err := json.Unmarshal(c.Arguments, &args)
	return args, err
}
