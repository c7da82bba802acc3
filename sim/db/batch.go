package db

// MutationType is the kind of a single write.
type MutationType int

const (
	MutationPut MutationType = iota
	MutationDelete
)

type Mutation struct {
	Type  MutationType `json:"type"`
	Key   string       `json:"key"`
	Value []byte       `json:"value,omitempty"`
}

// WriteBatch is a group of mutations applied atomically.
type WriteBatch struct {
	Muts []Mutation `json:"muts"`
}

func (b *WriteBatch) Put(key string, value []byte) {
	b.Muts = append(b.Muts, Mutation{Type: MutationPut, Key: key, Value: value})
}

func (b *WriteBatch) Delete(key string) {
	b.Muts = append(b.Muts, Mutation{Type: MutationDelete, Key: key})
}

func (b *WriteBatch) Len() int {
	return len(b.Muts)
}
