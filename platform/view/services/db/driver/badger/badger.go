/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package badger

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/keys"
	"github.com/pkg/errors"
)

const (
	defaultGCInterval     = 5 * time.Minute
	defaultGCDiscardRatio = 0.5 // recommended ratio by badger docs
)

var logger = logging.MustGetLogger("view.db.driver.badger")

var iteratorOptions = badger.IteratorOptions{
	PrefetchValues: false,
	PrefetchSize:   100,
	Reverse:        false,
	AllVersions:    false,
}

type DB struct {
	db     *badger.DB
	stopGC context.CancelFunc
}

// OpenDB opens the badger database at path. An empty path opens an in-memory database.
func OpenDB(path string) (*DB, error) {
	opt := badger.DefaultOptions(path)
	if len(path) == 0 {
		opt = opt.WithInMemory(true)
	}
	// let's pass our logger to badger
	opt.Logger = logger

	db, err := badger.Open(opt)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open DB at '%s'", path)
	}

	// count number of keys
	counter := uint64(0)
	if err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			counter++
		}
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "failed to count number of keys")
	}
	logger.Debugf("badger db at [%s] contains [%d] keys", path, counter)

	res := &DB{db: db, stopGC: func() {}}
	if !opt.InMemory {
		var ctx context.Context
		ctx, res.stopGC = context.WithCancel(context.Background())
		go collectValueLog(ctx, db, defaultGCInterval, defaultGCDiscardRatio)
	}
	return res, nil
}

func (db *DB) Close() error {
	db.stopGC()
	if err := db.db.Close(); err != nil {
		return errors.Wrap(err, "could not close DB")
	}
	return nil
}

func (db *DB) SetState(namespace, key string, value []byte) error {
	return db.db.Update(func(txn *badger.Txn) error {
		return setState(txn, namespace, key, value)
	})
}

func (db *DB) DeleteState(namespace, key string) error {
	return db.db.Update(func(txn *badger.Txn) error {
		return deleteState(txn, namespace, key)
	})
}

func (db *DB) GetState(namespace, key string) ([]byte, error) {
	var raw []byte
	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dbKey(namespace, key)))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "could not retrieve item for key %s", key)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	return raw, err
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

func (db *DB) GetStateRangeScanIterator(namespace string, startKey string, endKey string) (driver.ResultsIterator, error) {
	txn := db.db.NewTransaction(false)
	it := txn.NewIterator(iteratorOptions)
	it.Seek([]byte(dbKey(namespace, startKey)))

	return &rangeScanIterator{
		txn:    txn,
		it:     it,
		prefix: []byte(dbKey(namespace, "")),
		endKey: endKey,
		end:    []byte(dbKey(namespace, endKey)),
	}, nil
}

func (db *DB) NewWriteTransaction() (driver.WriteTransaction, error) {
	return &WriteTransaction{txn: db.db.NewTransaction(true)}, nil
}

type WriteTransaction struct {
	txn *badger.Txn
}

func (w *WriteTransaction) SetState(namespace, key string, value []byte) error {
	if w.txn == nil {
		return errors.New("programming error, writing without ongoing update")
	}
	return setState(w.txn, namespace, key, value)
}

func (w *WriteTransaction) DeleteState(namespace, key string) error {
	if w.txn == nil {
		return errors.New("programming error, writing without ongoing update")
	}
	return deleteState(w.txn, namespace, key)
}

func (w *WriteTransaction) Commit() error {
	if w.txn == nil {
		return errors.New("no commit in progress")
	}
	err := w.txn.Commit()
	w.txn = nil
	if err != nil {
		return errors.Wrap(err, "could not commit transaction")
	}
	return nil
}

func (w *WriteTransaction) Discard() error {
	if w.txn != nil {
		w.txn.Discard()
		w.txn = nil
	}
	return nil
}

type rangeScanIterator struct {
	txn    *badger.Txn
	it     *badger.Iterator
	prefix []byte
	endKey string
	end    []byte
}

func (r *rangeScanIterator) Next() (*driver.Read, error) {
	if !r.it.ValidForPrefix(r.prefix) {
		return nil, nil
	}
	item := r.it.Item()
	if r.endKey != "" && bytes.Compare(item.Key(), r.end) >= 0 {
		return nil, nil
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, errors.Wrapf(err, "error iterating on range")
	}
	key := string(item.KeyCopy(nil)[len(r.prefix):])
	r.it.Next()
	return &driver.Read{Key: key, Raw: raw}, nil
}

func (r *rangeScanIterator) Close() {
	r.it.Close()
	r.txn.Discard()
}

func setState(txn *badger.Txn, namespace, key string, value []byte) error {
	if len(value) == 0 {
		logger.Warnf("set key [%s:%s] to nil value, will be deleted instead", namespace, key)
		return deleteState(txn, namespace, key)
	}
	if err := txn.Set([]byte(dbKey(namespace, key)), append([]byte(nil), value...)); err != nil {
		return errors.Wrapf(err, "could not set value for key %s", key)
	}
	return nil
}

func deleteState(txn *badger.Txn, namespace, key string) error {
	if err := txn.Delete([]byte(dbKey(namespace, key))); err != nil {
		return errors.Wrapf(err, "could not delete value for key %s", key)
	}
	return nil
}

func dbKey(namespace, key string) string {
	return namespace + keys.NamespaceSeparator + key
}
