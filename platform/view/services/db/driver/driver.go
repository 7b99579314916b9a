/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package driver

import "github.com/pkg/errors"

// UniqueKeyViolation is returned when an insert collides with an existing key
var UniqueKeyViolation = errors.New("unique key violation")

// PersistenceType names a persistence driver
type PersistenceType string

type Read struct {
	Key string
	Raw []byte
}

type ResultsIterator interface {
	// Next returns the next item in the result set. The `Read` is expected to be nil when
	// the iterator gets exhausted
	Next() (*Read, error)
	// Close releases resources occupied by the iterator
	Close()
}

// WriteTransaction groups writes that are applied atomically on Commit
type WriteTransaction interface {
	SetState(namespace, key string, value []byte) error
	DeleteState(namespace, key string) error
	Commit() error
	Discard() error
}

// Persistence is an unversioned key-value store partitioned in namespaces.
// Writes outside a WriteTransaction are applied immediately.
type Persistence interface {
	SetState(namespace, key string, value []byte) error
	GetState(namespace, key string) ([]byte, error)
	DeleteState(namespace, key string) error
	// GetStateRangeScanIterator returns the keys in [startKey, endKey) in lexicographic order
	GetStateRangeScanIterator(namespace string, startKey string, endKey string) (ResultsIterator, error)
	// GetStateSetIterator returns the passed keys, missing keys come back with a nil Raw
	GetStateSetIterator(namespace string, keys ...string) (ResultsIterator, error)
	NewWriteTransaction() (WriteTransaction, error)
	Close() error
}

// Opts are the options shared by the persistence drivers
type Opts struct {
	// Path is the directory badger and sqlite store their files in
	Path string `mapstructure:"path"`
	// DataSource overrides the sqlite data source built from Path
	DataSource   string `mapstructure:"dataSource"`
	SkipPragmas  bool   `mapstructure:"skipPragmas"`
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
}

// Driver opens named stores
type Driver interface {
	// New returns the store with the passed name, creating it if needed
	New(name string) (Persistence, error)
}

type NamedDriver struct {
	Name   PersistenceType
	Driver Driver
}
