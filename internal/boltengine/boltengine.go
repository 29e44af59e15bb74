// Package boltengine adapts Bolt into the kv.Engine interface so the
// dispatcher can serve it interchangeably with the log-structured
// engine. Bolt owns its own file format and durability; this adapter
// only translates operations and error semantics.
package boltengine

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/boltdb/bolt"

	"github.com/4lexvav/logkv/pkg/kv"
)

const dbFileName = "bolt.db"

var bucketName = []byte("keys")

type Engine struct {
	db *bolt.DB
}

var _ kv.Engine = (*Engine)(nil)

// Open creates or opens a Bolt database file inside dir.
func Open(dir string) (*Engine, error) {
	db, err := bolt.Open(filepath.Join(dir, dbFileName), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &Engine{db: db}, nil
}

// Get returns the value stored under key. Existence is checked with a
// cursor seek because Bolt returns nil for both missing keys and
// zero-length values.
func (e *Engine) Get(key string) (string, bool, error) {
	var value string
	var found bool

	err := e.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		k, v := c.Seek([]byte(key))
		if k == nil || !bytes.Equal(k, []byte(key)) {
			return nil
		}
		value = string(v)
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

func (e *Engine) Set(key, value string) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
}

// Remove deletes key, failing with kv.ErrKeyNotFound when it is absent.
func (e *Engine) Remove(key string) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		k, _ := c.Seek([]byte(key))
		if k == nil || !bytes.Equal(k, []byte(key)) {
			return kv.ErrKeyNotFound
		}
		return b.Delete([]byte(key))
	})
}

// Reset drops and recreates the bucket, removing every key.
func (e *Engine) Reset() error {
	return e.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}

func (e *Engine) Close() error {
	return e.db.Close()
}
