/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dbtest

import (
	"testing"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Cases lists the behaviours every persistence driver must share
var Cases = []struct {
	Name string
	Fn   func(*testing.T, driver.Persistence)
}{
	{"SetGetDelete", TTestSetGetDelete},
	{"RangeQueries", TTestRangeQueries},
	{"SetIterator", TTestSetIterator},
	{"WriteTransaction", TTestWriteTransaction},
	{"CompositeKeys", TTestCompositeKeys},
}

// RunTests runs all the cases against fresh stores returned by open
func RunTests(t *testing.T, open func(name string) driver.Persistence) {
	for _, c := range Cases {
		t.Run(c.Name, func(t *testing.T) {
			db := open(c.Name)
			defer func() { assert.NoError(t, db.Close()) }()
			c.Fn(t, db)
		})
	}
}

func TTestSetGetDelete(t *testing.T, db driver.Persistence) {
	ns := "ns"
	raw, err := db.GetState(ns, "foo")
	require.NoError(t, err)
	assert.Nil(t, raw)

	require.NoError(t, db.SetState(ns, "foo", []byte("bar")))
	raw, err = db.GetState(ns, "foo")
	require.NoError(t, err)
	assert.Equal(t, []byte("bar"), raw)

	// namespaces are isolated
	raw, err = db.GetState("other", "foo")
	require.NoError(t, err)
	assert.Nil(t, raw)

	require.NoError(t, db.SetState(ns, "foo", []byte("baz")))
	raw, err = db.GetState(ns, "foo")
	require.NoError(t, err)
	assert.Equal(t, []byte("baz"), raw)

	require.NoError(t, db.DeleteState(ns, "foo"))
	raw, err = db.GetState(ns, "foo")
	require.NoError(t, err)
	assert.Nil(t, raw)

	// an empty value deletes the key
	require.NoError(t, db.SetState(ns, "foo", []byte("bar")))
	require.NoError(t, db.SetState(ns, "foo", nil))
	raw, err = db.GetState(ns, "foo")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TTestRangeQueries(t *testing.T, db driver.Persistence) {
	ns := "ns"
	for _, k := range []string{"k1", "k2", "k111", "k3", "j1"} {
		require.NoError(t, db.SetState(ns, k, []byte(k+"-value")))
	}
	require.NoError(t, db.SetState("other", "k1", []byte("other")))

	assert.Equal(t, []string{"k1", "k111", "k2"}, rangeKeys(t, db, ns, "k1", "k3"))
	assert.Equal(t, []string{"k1", "k111", "k2", "k3"}, rangeKeys(t, db, ns, "k1", ""))
	assert.Equal(t, []string{"j1", "k1", "k111"}, rangeKeys(t, db, ns, "", "k2"))
	assert.Equal(t, []string{"j1", "k1", "k111", "k2", "k3"}, rangeKeys(t, db, ns, "", ""))
	assert.Empty(t, rangeKeys(t, db, "missing", "", ""))
}

func TTestSetIterator(t *testing.T, db driver.Persistence) {
	ns := "ns"
	require.NoError(t, db.SetState(ns, "a", []byte("1")))
	require.NoError(t, db.SetState(ns, "c", []byte("3")))

	it, err := db.GetStateSetIterator(ns, "a", "b", "c")
	require.NoError(t, err)
	defer it.Close()

	var reads []*driver.Read
	for r, err := it.Next(); r != nil || err != nil; r, err = it.Next() {
		require.NoError(t, err)
		reads = append(reads, r)
	}
	require.Len(t, reads, 3)
	assert.Equal(t, []byte("1"), reads[0].Raw)
	assert.Nil(t, reads[1].Raw)
	assert.Equal(t, []byte("3"), reads[2].Raw)
}

func TTestWriteTransaction(t *testing.T, db driver.Persistence) {
	ns := "ns"
	require.NoError(t, db.SetState(ns, "gone", []byte("x")))

	tx, err := db.NewWriteTransaction()
	require.NoError(t, err)
	require.NoError(t, tx.SetState(ns, "a", []byte("1")))
	require.NoError(t, tx.SetState(ns, "b", []byte("2")))
	require.NoError(t, tx.DeleteState(ns, "gone"))
	require.NoError(t, tx.Commit())

	assert.Equal(t, []string{"a", "b"}, rangeKeys(t, db, ns, "", ""))

	tx, err = db.NewWriteTransaction()
	require.NoError(t, err)
	require.NoError(t, tx.SetState(ns, "c", []byte("3")))
	require.NoError(t, tx.Discard())

	raw, err := db.GetState(ns, "c")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TTestCompositeKeys(t *testing.T, db driver.Persistence) {
	ns := "ns"
	prefix := "\x00tx\x00"
	keys := []string{prefix + "1\x00", prefix + "2\x00a\x00", prefix + "2\x00b\x00", "\x00txs\x00"}
	for _, k := range keys {
		require.NoError(t, db.SetState(ns, k, []byte("v")))
	}
	assert.Equal(t, keys[:3], rangeKeys(t, db, ns, prefix, prefix+string(rune(0x10FFFF))))
	assert.Equal(t, keys[1:3], rangeKeys(t, db, ns, prefix+"2\x00", prefix+"2\x00"+string(rune(0x10FFFF))))
}

func rangeKeys(t *testing.T, db driver.Persistence, ns, start, end string) []string {
	it, err := db.GetStateRangeScanIterator(ns, start, end)
	require.NoError(t, err)
	defer it.Close()

	var res []string
	for r, err := it.Next(); r != nil || err != nil; r, err = it.Next() {
		require.NoError(t, err)
		res = append(res, r.Key)
	}
	return res
}
