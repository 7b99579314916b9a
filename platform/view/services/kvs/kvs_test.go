/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package kvs_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils/errors"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver/badger"
	mem "github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver/memory"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver/sqlite"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/kvs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stuff struct {
	S string `json:"s"`
	I int    `json:"i"`
}

type configProvider map[string]int

func (c configProvider) IsSet(key string) bool { _, ok := c[key]; return ok }
func (c configProvider) GetInt(key string) int { return c[key] }

func testRound(t *testing.T, persistence driver.Persistence) {
	kvstore, err := kvs.New(persistence, "_default", kvs.DefaultCacheSize)
	require.NoError(t, err)
	defer kvstore.Stop()

	k1, err := kvs.CreateCompositeKey("k", []string{"1"})
	require.NoError(t, err)
	k2, err := kvs.CreateCompositeKey("k", []string{"2"})
	require.NoError(t, err)

	require.NoError(t, kvstore.Put(k1, &stuff{"santa", 1}))
	val := &stuff{}
	require.NoError(t, kvstore.Get(k1, val))
	assert.Equal(t, &stuff{"santa", 1}, val)

	require.NoError(t, kvstore.Put(k2, &stuff{"claws", 2}))
	val = &stuff{}
	require.NoError(t, kvstore.Get(k2, val))
	assert.Equal(t, &stuff{"claws", 2}, val)

	it, err := kvstore.GetByPartialCompositeID("k", []string{})
	require.NoError(t, err)
	var keys []string
	for it.HasNext() {
		val = &stuff{}
		key, err := it.Next(val)
		require.NoError(t, err)
		keys = append(keys, key)
	}
	require.NoError(t, it.Close())
	assert.Equal(t, []string{k1, k2}, keys)

	assert.True(t, kvstore.Exists(k1))
	assert.Equal(t, []string{k1, k2}, kvstore.GetExisting(k1, "missing", k2))

	require.NoError(t, kvstore.Delete(k2))
	assert.False(t, kvstore.Exists(k2))
	err = kvstore.Get(k2, val)
	assert.True(t, errors.HasCause(err, kvs.ErrNotFound))

	batch, err := kvstore.NewBatch()
	require.NoError(t, err)
	k3 := kvs.CreateCompositeKeyOrPanic("k", []string{"3"})
	k4 := kvs.CreateCompositeKeyOrPanic("k", []string{"4"})
	require.NoError(t, batch.Put(k3, &stuff{"rudolf", 3}))
	require.NoError(t, batch.Put(k4, &stuff{"dasher", 4}))
	assert.False(t, kvstore.Exists(k3))
	require.NoError(t, batch.Commit())
	assert.Equal(t, []string{k3, k4}, kvstore.GetExisting(k3, k4))

	batch, err = kvstore.NewBatch()
	require.NoError(t, err)
	require.NoError(t, batch.Delete(k3))
	require.NoError(t, batch.Put(k2, &stuff{"vixen", 2}))
	assert.True(t, kvstore.Exists(k3))
	require.NoError(t, batch.Commit())
	assert.Equal(t, []string{k2, k4}, kvstore.GetExisting(k2, k3, k4))

	batch, err = kvstore.NewBatch()
	require.NoError(t, err)
	require.NoError(t, batch.Put("discarded", &stuff{}))
	batch.Discard()
	assert.False(t, kvstore.Exists("discarded"))
}

func testParallelWrites(t *testing.T, persistence driver.Persistence) {
	kvstore, err := kvs.New(persistence, "_default", 10)
	require.NoError(t, err)
	defer kvstore.Stop()

	n := 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			k := kvs.CreateCompositeKeyOrPanic("parallel", []string{fmt.Sprintf("%03d", i)})
			assert.NoError(t, kvstore.Put(k, &stuff{S: "item", I: i}))
		}(i)
	}
	wg.Wait()

	it, err := kvstore.GetByPartialCompositeID("parallel", nil)
	require.NoError(t, err)
	defer it.Close()
	count := 0
	for ; it.HasNext(); count++ {
		val := &stuff{}
		_, err := it.Next(val)
		require.NoError(t, err)
		assert.Equal(t, count, val.I)
	}
	assert.Equal(t, n, count)
}

func TestMemoryKVS(t *testing.T) {
	testRound(t, mem.New())
	testParallelWrites(t, mem.New())
}

func TestBadgerKVS(t *testing.T) {
	dir := t.TempDir()
	db, err := badger.OpenDB(filepath.Join(dir, "round"))
	require.NoError(t, err)
	testRound(t, db)

	db, err = badger.OpenDB(filepath.Join(dir, "parallel"))
	require.NoError(t, err)
	testParallelWrites(t, db)
}

func TestSqliteKVS(t *testing.T) {
	dir := t.TempDir()
	db, err := sqlite.NewUnversioned("file:"+filepath.Join(dir, "round.sqlite"), 2, false, "kvs")
	require.NoError(t, err)
	testRound(t, db)

	db, err = sqlite.NewUnversioned("file:"+filepath.Join(dir, "parallel.sqlite"), 2, false, "kvs")
	require.NoError(t, err)
	testParallelWrites(t, db)
}

func TestCompositeKeys(t *testing.T) {
	k, err := kvs.CreateCompositeKey("tx", []string{"abc", "1"})
	require.NoError(t, err)
	objectType, attrs, err := kvs.SplitCompositeKey(k)
	require.NoError(t, err)
	assert.Equal(t, "tx", objectType)
	assert.Equal(t, []string{"abc", "1"}, attrs)

	_, err = kvs.CreateCompositeKey("tx", []string{"a\x00b"})
	assert.Error(t, err)
	_, _, err = kvs.SplitCompositeKey("plain")
	assert.Error(t, err)
}

func TestCacheSizeFromConfig(t *testing.T) {
	size, err := kvs.CacheSizeFromConfig(configProvider{})
	require.NoError(t, err)
	assert.Equal(t, kvs.DefaultCacheSize, size)

	size, err = kvs.CacheSizeFromConfig(configProvider{"iou.kvs.cache.size": 7})
	require.NoError(t, err)
	assert.Equal(t, 7, size)

	_, err = kvs.CacheSizeFromConfig(configProvider{"iou.kvs.cache.size": -1})
	assert.Error(t, err)
}
