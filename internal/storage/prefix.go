package storage

import "bytes"

// PrefixDB namespaces a shared DB: every key is stored under a fixed
// prefix, so the keystore's records cannot collide with anything else
// kept in the same database.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB returns a view of inner restricted to prefix.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: bytes.Clone(prefix)}
}

// key returns k under the namespace. The full slice expression forces a
// fresh backing array on every call.
func (p *PrefixDB) key(k []byte) []byte {
	return append(p.prefix[:len(p.prefix):len(p.prefix)], k...)
}

func (p *PrefixDB) Get(key []byte) ([]byte, error) { return p.inner.Get(p.key(key)) }

func (p *PrefixDB) Put(key, value []byte) error { return p.inner.Put(p.key(key), value) }

// ForEach visits keys under prefix within the namespace. Keys passed to
// fn have the namespace removed.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return p.inner.ForEach(p.key(prefix), func(key, value []byte) error {
		return fn(bytes.TrimPrefix(key, p.prefix), value)
	})
}

// Close does nothing; the inner DB owns the underlying resources.
func (p *PrefixDB) Close() error { return nil }
