/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mem

import (
	"sort"
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/keys"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("view.db.driver.memory")

type DB struct {
	mutex  sync.RWMutex
	keys   map[string]map[string][]byte
	closed bool
}

func New() *DB {
	return &DB{keys: map[string]map[string][]byte{}}
}

func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.closed = true
	return nil
}

func (db *DB) isClosed() bool {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.closed
}

func (db *DB) SetState(namespace, key string, value []byte) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.set(namespace, key, value)
}

func (db *DB) DeleteState(namespace, key string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.delete(namespace, key)
}

func (db *DB) GetState(namespace, key string) ([]byte, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if db.closed {
		return nil, errors.New("db closed")
	}
	v, ok := db.keys[namespace][key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (db *DB) GetStateSetIterator(namespace string, ids ...string) (driver.ResultsIterator, error) {
	reads := make([]*driver.Read, len(ids))
	for i, key := range ids {
		raw, err := db.GetState(namespace, key)
		if err != nil {
			return nil, err
		}
		reads[i] = &driver.Read{Key: key, Raw: raw}
	}
	return &keys.DummyIterator{Items: reads}, nil
}

// GetStateRangeScanIterator takes a snapshot of the range, later writes are not observed
func (db *DB) GetStateRangeScanIterator(namespace string, startKey string, endKey string) (driver.ResultsIterator, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if db.closed {
		return nil, errors.New("db closed")
	}
	vv := db.keys[namespace]
	sortedKeys := make([]string, 0, len(vv))
	for k := range vv {
		if (startKey == "" || k >= startKey) && (endKey == "" || k < endKey) {
			sortedKeys = append(sortedKeys, k)
		}
	}
	sort.Strings(sortedKeys)

	reads := make([]*driver.Read, len(sortedKeys))
	for i, k := range sortedKeys {
		reads[i] = &driver.Read{Key: k, Raw: append([]byte(nil), vv[k]...)}
	}
	return &keys.DummyIterator{Items: reads}, nil
}

func (db *DB) NewWriteTransaction() (driver.WriteTransaction, error) {
	return &WriteTransaction{db: db}, nil
}

func (db *DB) set(namespace, key string, value []byte) error {
	if db.closed {
		return errors.New("db closed")
	}
	if len(value) == 0 {
		logger.Warnf("set key [%s:%s] to nil value, will be deleted instead", namespace, key)
		return db.delete(namespace, key)
	}
	m, ok := db.keys[namespace]
	if !ok {
		m = map[string][]byte{}
		db.keys[namespace] = m
	}
	m[key] = append([]byte(nil), value...)
	return nil
}

func (db *DB) delete(namespace, key string) error {
	if db.closed {
		return errors.New("db closed")
	}
	m := db.keys[namespace]
	delete(m, key)
	if len(m) == 0 {
		delete(db.keys, namespace)
	}
	return nil
}

type write struct {
	namespace, key string
	value          []byte
}

// WriteTransaction buffers writes and applies them under a single lock on Commit
type WriteTransaction struct {
	db     *DB
	writes []write
	done   bool
}

func (w *WriteTransaction) SetState(namespace, key string, value []byte) error {
	if w.done {
		return errors.New("transaction already closed")
	}
	w.writes = append(w.writes, write{namespace: namespace, key: key, value: append([]byte(nil), value...)})
	return nil
}

func (w *WriteTransaction) DeleteState(namespace, key string) error {
	return w.SetState(namespace, key, nil)
}

func (w *WriteTransaction) Commit() error {
	if w.done {
		return errors.New("transaction already closed")
	}
	w.done = true

	w.db.mutex.Lock()
	defer w.db.mutex.Unlock()
	for _, wr := range w.writes {
		if err := w.db.set(wr.namespace, wr.key, wr.value); err != nil {
			return err
		}
	}
	return nil
}

func (w *WriteTransaction) Discard() error {
	w.done = true
	w.writes = nil
	return nil
}
