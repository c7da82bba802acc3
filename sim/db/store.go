package db

import (
	"encoding/json"
	"fmt"
)

// Store is a typed view over a key namespace of a DB. Values are JSON encoded.
type Store[T any] struct {
	db        *DB
	namespace string
}

func NewStore[T any](db *DB, namespace string) *Store[T] {
	return &Store[T]{db: db, namespace: namespace}
}

func (s *Store[T]) key(k string) string {
	return s.namespace + ":" + k
}

func (s *Store[T]) Put(key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.key(key), err)
	}
	return s.db.Put(s.key(key), data)
}

func (s *Store[T]) TryGet(key string) (T, bool, error) {
	var v T
	data, ok, err := s.db.TryGet(s.key(key))
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("decoding %s: %w", s.key(key), err)
	}
	return v, true, nil
}

// GetOr returns the stored value or def when the key is absent.
func (s *Store[T]) GetOr(key string, def T) (T, error) {
	v, ok, err := s.TryGet(key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func (s *Store[T]) Delete(key string) error {
	return s.db.Delete(s.key(key))
}
