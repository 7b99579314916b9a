/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileRunViewOptions(t *testing.T) {
	opts, err := CompileRunViewOptions()
	require.NoError(t, err)
	assert.False(t, opts.AsInitiator)
	assert.Nil(t, opts.Call)

	ctx := context.WithValue(context.Background(), struct{}{}, "v")
	opts, err = CompileRunViewOptions(AsInitiator(), WithContext(ctx), WithViewCall(func(Context) (interface{}, error) { return "ok", nil }))
	require.NoError(t, err)
	assert.True(t, opts.AsInitiator)
	assert.True(t, opts.SameContext)
	assert.Equal(t, ctx, opts.Ctx)
	res, err := opts.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res)

	_, err = CompileRunViewOptions(func(*RunViewOptions) error { return errors.New("bad option") })
	assert.EqualError(t, err, "bad option")
}

func TestIdentities(t *testing.T) {
	a, b, c := Identity("alice"), Identity("bob"), Identity("charlie")

	assert.True(t, Identities{a, b}.Contains(b))
	assert.False(t, Identities{a, b}.Contains(c))
	assert.Equal(t, Identities{a, b}, Identities{a, b, a}.Distinct())
	assert.True(t, Identities{a, b}.SameSet(Identities{b, a, b}))
	assert.False(t, Identities{a, b}.SameSet(Identities{a, c}))
	assert.False(t, Identities{a}.SameSet(Identities{a, b}))

	assert.True(t, Identity(nil).IsNone())
	assert.Equal(t, "<empty>", Identity(nil).UniqueID())
	assert.NotEqual(t, a.UniqueID(), b.UniqueID())
}
