// Package kv is the persistence layer behind the roster: a namespaced
// key/value store holding one JSON document per key. Backends decide where
// the bytes live (memory, local files, Postgres, object storage); the Store
// wrapper owns the JSON codec and key namespacing.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrNotFound is returned by backends when a key has never been written.
	ErrNotFound = errors.New("kv: key not found")

	// ErrCorrupt is returned by Load when a stored value is not valid JSON
	// for the requested type.
	ErrCorrupt = errors.New("kv: corrupt value")
)

// Backend stores raw values by key.
type Backend interface {
	// Init prepares the backend (creates directories, checks connectivity).
	Init(ctx context.Context) error
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Store wraps a Backend with key namespacing and JSON (de)serialization.
type Store struct {
	backend   Backend
	namespace string
}

// New constructs a Store. An empty namespace stores keys verbatim.
func New(backend Backend, namespace string) *Store {
	return &Store{
		backend:   backend,
		namespace: strings.Trim(namespace, "/"),
	}
}

// Init prepares the underlying backend.
func (s *Store) Init(ctx context.Context) error {
	return s.backend.Init(ctx)
}

// Close releases the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Get returns the raw bytes stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	return s.backend.Get(ctx, s.key(key))
}

// Set stores raw bytes under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.backend.Set(ctx, s.key(key), value)
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, s.key(key))
}

// Load decodes the value under key into v. It reports false when the key is
// absent. A value that cannot be decoded yields an error wrapping ErrCorrupt
// and leaves v untouched.
func (s *Store) Load(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("kv: get %q: %w", key, err)
	}
	if err := decode(raw, v); err != nil {
		return true, fmt.Errorf("%w: %q: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

// Save encodes v as JSON and stores it under key.
func (s *Store) Save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %q: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) key(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + "/" + key
}

// decode unmarshals into a fresh value of v's type and only copies it into v
// on success, so a failed decode never leaves v half-written.
func decode(raw []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("decode target must be a non-nil pointer")
	}
	tmp := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(raw, tmp.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(tmp.Elem())
	return nil
}
