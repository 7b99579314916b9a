/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package kvs

import (
	"encoding/json"
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils"
	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/common/utils/cache"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("view.kvs")

const (
	cacheSizeConfigKey = "iou.kvs.cache.size"
	DefaultCacheSize   = 100
)

// ErrNotFound is returned by Get when the key does not exist
var ErrNotFound = errors.New("state not found")

// ConfigProvider models the DB configuration provider
type ConfigProvider interface {
	// IsSet checks to see if the key has been set in any of the data locations
	IsSet(key string) bool
	// GetInt returns the value associated with the key as an integer
	GetInt(key string) int
}

type Iterator interface {
	HasNext() bool
	Close() error
	Next(state interface{}) (string, error)
}

// KVS stores JSON values in one namespace of a persistence.
// Recently written or read values are kept in a cache.
type KVS struct {
	namespace string
	store     driver.Persistence

	putMutex sync.RWMutex
	cache    cache.Map[string, []byte]
}

// New returns a new KVS instance for the passed namespace using the passed driver
func New(persistence driver.Persistence, namespace string, cacheSize int) (*KVS, error) {
	var c cache.Map[string, []byte]
	if cacheSize > 0 {
		c = cache.NewLRUCache[string, []byte](cacheSize, cacheSize/5+1, nil)
	} else {
		c = cache.NewMapCache[string, []byte]()
	}
	return &KVS{
		namespace: namespace,
		store:     persistence,
		cache:     c,
	}, nil
}

// GetExisting returns the passed ids that are bound to a value
func (o *KVS) GetExisting(ids ...string) []string {
	result := make([]string, 0, len(ids))
	notFound := make([]string, 0)

	o.putMutex.RLock()
	for _, id := range ids {
		if v, ok := o.cache.Get(id); !ok {
			notFound = append(notFound, id)
		} else if len(v) > 0 {
			result = append(result, id)
		}
	}
	o.putMutex.RUnlock()
	if len(notFound) == 0 {
		return result
	}

	it, err := o.store.GetStateSetIterator(o.namespace, notFound...)
	if err != nil {
		logger.Warnf("failed checking existence of [%v]: %s", notFound, err)
		return result
	}
	defer it.Close()
	for v, err := it.Next(); v != nil || err != nil; v, err = it.Next() {
		if err != nil {
			logger.Warnf("failed checking existence: %s", err)
			return result
		}
		if len(v.Raw) > 0 {
			result = append(result, v.Key)
		}
	}
	return result
}

func (o *KVS) Exists(id string) bool {
	return len(o.GetExisting(id)) > 0
}

func (o *KVS) Put(id string, state interface{}) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrapf(err, "cannot marshal state with id [%s]", id)
	}

	o.putMutex.Lock()
	defer o.putMutex.Unlock()

	if err := utils.NewProbabilisticRetryRunner(3, 200, true).RunWithErrors(func() (bool, error) {
		err := o.store.SetState(o.namespace, id, raw)
		return err == nil, err
	}); err != nil {
		return errors.WithMessagef(err, "failed storing state [%s,%s]", o.namespace, id)
	}
	o.cache.Put(id, raw)
	return nil
}

func (o *KVS) Get(id string, state interface{}) error {
	o.putMutex.RLock()
	raw, ok := o.cache.Get(id)
	o.putMutex.RUnlock()

	if !ok {
		var err error
		raw, err = o.store.GetState(o.namespace, id)
		if err != nil {
			logger.Debugf("failed retrieving state [%s,%s]", o.namespace, id)
			return errors.Wrapf(err, "failed retrieving state [%s,%s]", o.namespace, id)
		}
		if len(raw) != 0 {
			o.putMutex.Lock()
			o.cache.Put(id, raw)
			o.putMutex.Unlock()
		}
	}
	if len(raw) == 0 {
		return errors.Wrapf(ErrNotFound, "state [%s,%s] does not exist", o.namespace, id)
	}

	if err := json.Unmarshal(raw, state); err != nil {
		logger.Debugf("failed retrieving state [%s,%s], cannot unmarshal state, error [%s]", o.namespace, id, err)
		return errors.Wrapf(err, "failed retrieving state [%s,%s], cannot unmarshal state", o.namespace, id)
	}
	return nil
}

func (o *KVS) Delete(id string) error {
	logger.Debugf("delete state [%s,%s]", o.namespace, id)

	o.putMutex.Lock()
	defer o.putMutex.Unlock()

	if err := o.store.DeleteState(o.namespace, id); err != nil {
		return err
	}
	o.cache.Delete(id)
	return nil
}

// GetByPartialCompositeID iterates over all the keys sharing the passed composite key prefix
func (o *KVS) GetByPartialCompositeID(prefix string, attrs []string) (Iterator, error) {
	startKey, endKey, err := CreateRangeKeysForPartialCompositeKey(prefix, attrs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed building composite key")
	}

	itr, err := o.store.GetStateRangeScanIterator(o.namespace, startKey, endKey)
	if err != nil {
		return nil, errors.Wrapf(err, "store access failure for GetStateRangeScanIterator, ns [%s] range [%s,%s]", o.namespace, startKey, endKey)
	}
	return &it{ri: itr}, nil
}

// NewBatch returns a batch of writes applied atomically on Commit
func (o *KVS) NewBatch() (*Batch, error) {
	tx, err := o.store.NewWriteTransaction()
	if err != nil {
		return nil, errors.Wrap(err, "failed starting write transaction")
	}
	return &Batch{kvs: o, tx: tx, values: map[string][]byte{}}, nil
}

func (o *KVS) Stop() {
	if err := o.store.Close(); err != nil {
		logger.Errorf("failed stopping kvs [%s]", err)
	}
}

// Batch collects writes on a KVS
type Batch struct {
	kvs     *KVS
	tx      driver.WriteTransaction
	values  map[string][]byte
	deleted []string
}

func (b *Batch) Put(id string, state interface{}) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrapf(err, "cannot marshal state with id [%s]", id)
	}
	if err := b.tx.SetState(b.kvs.namespace, id, raw); err != nil {
		return err
	}
	b.values[id] = raw
	return nil
}

func (b *Batch) Delete(id string) error {
	if err := b.tx.DeleteState(b.kvs.namespace, id); err != nil {
		return err
	}
	delete(b.values, id)
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *Batch) Commit() error {
	b.kvs.putMutex.Lock()
	defer b.kvs.putMutex.Unlock()

	if err := b.tx.Commit(); err != nil {
		return errors.Wrap(err, "failed committing batch")
	}
	for _, id := range b.deleted {
		b.kvs.cache.Delete(id)
	}
	for id, raw := range b.values {
		b.kvs.cache.Put(id, raw)
	}
	return nil
}

func (b *Batch) Discard() {
	if err := b.tx.Discard(); err != nil {
		logger.Debugf("failed discarding batch [%s]", err)
	}
}

type it struct {
	ri   driver.ResultsIterator
	next *driver.Read
}

func (i *it) HasNext() bool {
	var err error
	i.next, err = i.ri.Next()
	if err != nil || i.next == nil {
		return false
	}
	return true
}

func (i *it) Close() error {
	i.ri.Close()
	return nil
}

// Next unmarshals the current state into the given state object.
// It also returns the key of the current state.
func (i *it) Next(state interface{}) (string, error) {
	return i.next.Key, json.Unmarshal(i.next.Raw, state)
}

// CacheSizeFromConfig returns the KVS cache size from current configuration.
// Returns DefaultCacheSize, if no configuration found.
// Returns an error and DefaultCacheSize, if the loaded value from configuration is invalid (must be >= 0).
func CacheSizeFromConfig(cp ConfigProvider) (int, error) {
	if !cp.IsSet(cacheSizeConfigKey) {
		return DefaultCacheSize, nil
	}

	cacheSize := cp.GetInt(cacheSizeConfigKey)
	if cacheSize < 0 {
		return DefaultCacheSize, errors.Errorf("invalid cache size configuration: expect value >= 0, actual %d", cacheSize)
	}
	return cacheSize, nil
}
