/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ecdsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	id, signer, verifier, err := NewSigner()
	require.NoError(t, err)

	sigma, err := signer.Sign([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, verifier.Verify([]byte("hello"), sigma))
	assert.Error(t, verifier.Verify([]byte("hello world"), sigma))
	assert.Error(t, verifier.Verify([]byte("hello"), []byte("garbage")))

	// the identity alone is enough to verify
	id2, v2, err := NewIdentityFromBytes(id)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	require.NoError(t, v2.Verify([]byte("hello"), sigma))

	_, _, err = NewIdentityFromBytes([]byte("not a key"))
	assert.Error(t, err)
}

func TestSignerSerialization(t *testing.T) {
	id, signer, _, err := NewSigner()
	require.NoError(t, err)

	raw, err := signer.Serialize()
	require.NoError(t, err)
	id2, signer2, err := NewSignerFromPEM(raw)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	sigma, err := signer2.Sign([]byte("msg"))
	require.NoError(t, err)
	v, err := (&Deserializer{}).DeserializeVerifier(id)
	require.NoError(t, err)
	assert.NoError(t, v.Verify([]byte("msg"), sigma))

	_, _, err = NewSignerFromPEM([]byte("invalid PEM"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot pem decode")
}
