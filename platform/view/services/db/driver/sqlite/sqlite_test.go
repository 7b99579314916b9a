/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sqlite

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/dbtest"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqlite(t *testing.T) {
	dir := t.TempDir()
	dbtest.RunTests(t, func(name string) driver.Persistence {
		db, err := NewUnversioned(fmt.Sprintf("file:%s", filepath.Join(dir, name+".sqlite")), 2, false, "test")
		require.NoError(t, err)
		return db
	})
}

func TestDriverTables(t *testing.T) {
	d := NewDriver(driver.Opts{Path: t.TempDir()})
	a, err := d.New("vault")
	require.NoError(t, err)
	defer a.Close()
	b, err := d.New("notary")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.SetState("ns", "k", []byte("v")))
	raw, err := b.GetState("ns", "k")
	require.NoError(t, err)
	assert.Nil(t, raw)

	_, err = NewDriver(driver.Opts{}).New("x")
	assert.Error(t, err)
	assert.Equal(t, "kvs_a_b", TableName("a.b"))
}
