/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ecdsa

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"math/big"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

const privateKeyPEMType = "PRIVATE KEY"

type ecdsaSignature struct {
	R, S *big.Int
}

// Signer signs the sha256 digest of a message with a P-256 key
type Signer struct {
	sk *ecdsa.PrivateKey
}

func (d *Signer) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return ecdsa.SignASN1(rand.Reader, d.sk, digest[:])
}

// Serialize returns the PEM encoded PKCS8 form of the secret key
func (d *Signer) Serialize() ([]byte, error) {
	raw, err := x509.MarshalPKCS8PrivateKey(d.sk)
	if err != nil {
		return nil, errors.Wrap(err, "failed marshalling secret key")
	}
	return pem.EncodeToMemory(&pem.Block{Type: privateKeyPEMType, Bytes: raw}), nil
}

type Verifier struct {
	pk *ecdsa.PublicKey
}

func (d *Verifier) Verify(message, sigma []byte) error {
	signature := &ecdsaSignature{}
	if _, err := asn1.Unmarshal(sigma, signature); err != nil {
		return errors.Wrap(err, "failed unmarshalling signature")
	}
	digest := sha256.Sum256(message)
	if !ecdsa.Verify(d.pk, digest[:], signature.R, signature.S) {
		return errors.Errorf("signature not valid")
	}
	return nil
}

// NewSigner generates a fresh key pair. The identity is the PKIX encoding of the public key.
func NewSigner() (view.Identity, *Signer, *Verifier, error) {
	sk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, nil, err
	}
	pkRaw, err := x509.MarshalPKIXPublicKey(sk.Public())
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed marshalling public key")
	}
	return pkRaw, &Signer{sk: sk}, &Verifier{pk: &sk.PublicKey}, nil
}

func NewSignerFromPEM(raw []byte) (view.Identity, *Signer, error) {
	p, _ := pem.Decode(raw)
	if p == nil {
		return nil, nil, errors.New("cannot pem decode secret key")
	}
	key, err := x509.ParsePKCS8PrivateKey(p.Bytes)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed unmarshalling secret key")
	}
	sk, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, nil, errors.New("expected *ecdsa.PrivateKey")
	}
	pkRaw, err := x509.MarshalPKIXPublicKey(sk.Public())
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed marshalling public key")
	}
	return pkRaw, &Signer{sk: sk}, nil
}

func NewIdentityFromBytes(raw []byte) (view.Identity, *Verifier, error) {
	genericPublicKey, err := x509.ParsePKIXPublicKey(raw)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed parsing received public key")
	}
	publicKey, ok := genericPublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, nil, errors.New("expected *ecdsa.PublicKey")
	}
	return raw, &Verifier{pk: publicKey}, nil
}
