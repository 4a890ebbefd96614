// Package store is a small JSON key/value store on top of bbolt.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	BucketTokens = "tokens"
	BucketFeeds  = "feeds"
)

// Store wraps an open bbolt database.
type Store struct {
	d    *bolt.DB
	path string
}

// Open opens (creating if needed) the database at path and makes sure the
// known buckets exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	d, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open db %s: %w", path, err)
	}
	err = d.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{BucketTokens, BucketFeeds} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("unable to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	return &Store{d: d, path: path}, nil
}

// Close closes the database if possible.
func (s *Store) Close() error {
	if s == nil || s.d == nil {
		return nil
	}
	return s.d.Close()
}

// Get decodes the value stored under key into v. It reports false when the
// key is absent.
func (s *Store) Get(bucket, key string, v any) (bool, error) {
	var raw []byte
	err := s.d.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("invalid bucket %s", bucket)
		}
		if data := b.Get([]byte(key)); data != nil {
			// data is only valid inside the transaction.
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// Put stores v as JSON under key, creating the bucket if needed.
func (s *Store) Put(bucket, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}
	return s.d.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), raw)
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(bucket, key string) error {
	return s.d.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// Keys lists the keys of bucket in byte order.
func (s *Store) Keys(bucket string) ([]string, error) {
	var keys []string
	err := s.d.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Bucket returns a view of s scoped to one bucket.
func (s *Store) Bucket(name string) *Bucket {
	return &Bucket{s: s, name: name}
}

// Bucket is a Store restricted to a single bucket.
type Bucket struct {
	s    *Store
	name string
}

func (b *Bucket) Get(key string, v any) (bool, error) { return b.s.Get(b.name, key, v) }
func (b *Bucket) Put(key string, v any) error         { return b.s.Put(b.name, key, v) }
func (b *Bucket) Delete(key string) error             { return b.s.Delete(b.name, key) }
func (b *Bucket) Keys() ([]string, error)             { return b.s.Keys(b.name) }
