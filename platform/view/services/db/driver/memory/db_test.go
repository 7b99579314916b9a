/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mem

import (
	"testing"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/dbtest"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	dbtest.RunTests(t, func(string) driver.Persistence { return New() })
}

func TestDriverSharesStoresByName(t *testing.T) {
	d := NewDriver()
	a, err := d.New("a")
	require.NoError(t, err)
	require.NoError(t, a.SetState("ns", "k", []byte("v")))

	again, err := d.New("a")
	require.NoError(t, err)
	raw, err := again.GetState("ns", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), raw)

	b, err := d.New("b")
	require.NoError(t, err)
	raw, err = b.GetState("ns", "k")
	require.NoError(t, err)
	assert.Nil(t, raw)
}
