// Package storage provides the key/value stores identity records are
// persisted in.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is a key/value store. A Put that returns nil is durable.
//
// Implementations must be safe for concurrent use. Values passed to and
// returned from a DB are copies; callers may modify or zero them.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	// ForEach calls fn for every key with the given prefix.
	// A non-nil error from fn stops iteration and is returned.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}
