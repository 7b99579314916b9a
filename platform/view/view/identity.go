/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
)

// Identity wraps the byte representation of a lower level identity.
// For this module it is the PKIX encoding of the owning public key.
type Identity []byte

// Equal return true if the identities are the same
func (id Identity) Equal(id2 Identity) bool {
	return bytes.Equal(id, id2)
}

// UniqueID returns a unique identifier of this identity
func (id Identity) UniqueID() string {
	if len(id) == 0 {
		return "<empty>"
	}
	h := sha256.Sum256(id)
	return base64.StdEncoding.EncodeToString(h[:])
}

// String returns a string representation of this identity
func (id Identity) String() string {
	return id.UniqueID()
}

// Bytes returns the byte representation of this identity
func (id Identity) Bytes() []byte {
	return id
}

// IsNone returns true if this identity is empty
func (id Identity) IsNone() bool {
	return len(id) == 0
}

// Identities is a list of identities with set-like helpers
type Identities []Identity

// Contains returns true if id is in the list
func (ids Identities) Contains(id Identity) bool {
	for _, i := range ids {
		if i.Equal(id) {
			return true
		}
	}
	return false
}

// Distinct returns the list without duplicates, first occurrence wins
func (ids Identities) Distinct() Identities {
	res := make(Identities, 0, len(ids))
	for _, id := range ids {
		if !res.Contains(id) {
			res = append(res, id)
		}
	}
	return res
}

// SameSet returns true if both lists contain the same identities, ignoring order and duplicates
func (ids Identities) SameSet(other Identities) bool {
	a, b := ids.Distinct(), other.Distinct()
	if len(a) != len(b) {
		return false
	}
	for _, id := range a {
		if !b.Contains(id) {
			return false
		}
	}
	return true
}
