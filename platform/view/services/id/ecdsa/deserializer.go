/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ecdsa

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/sig"
)

// Deserializer turns PKIX identities into verifiers and PEM keys into signers
type Deserializer struct{}

func (d *Deserializer) DeserializeVerifier(raw []byte) (sig.Verifier, error) {
	_, v, err := NewIdentityFromBytes(raw)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (d *Deserializer) DeserializeSigner(raw []byte) (sig.Signer, error) {
	_, s, err := NewSignerFromPEM(raw)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Deserializer) String() string {
	return "ecdsa p256 deserializer"
}
