/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

var (
	ErrIDMismatch        = errors.New("transaction id does not match content")
	ErrMissingSignatures = errors.New("missing signatures")
	ErrInvalidSignature  = errors.New("invalid signature")
)

// SigningService signs messages on behalf of identities held by this node
type SigningService interface {
	Sign(identity view.Identity, message []byte) ([]byte, error)
}

// VerifierProvider returns the verifier bound to an identity
type VerifierProvider interface {
	GetVerifier(identity view.Identity) (sig.Verifier, error)
}

// Signature is a signature by Signer over the id of a transaction
type Signature struct {
	Signer view.Identity `json:"signer"`
	Value  []byte        `json:"value"`
}

// SignedTransaction is a transaction together with the signatures collected so far.
// NotarySignature is set once the notary has accepted the transaction.
type SignedTransaction struct {
	Tx              *Transaction `json:"tx"`
	Signatures      []Signature  `json:"signatures"`
	NotarySignature *Signature   `json:"notary_signature,omitempty"`
}

func NewSignedTransaction(tx *Transaction) *SignedTransaction {
	return &SignedTransaction{Tx: tx}
}

func (s *SignedTransaction) ID() string {
	return s.Tx.ID
}

// Signers returns the identities that signed so far
func (s *SignedTransaction) Signers() view.Identities {
	res := make(view.Identities, 0, len(s.Signatures))
	for _, sigma := range s.Signatures {
		res = append(res, sigma.Signer)
	}
	return res
}

// Sign adds the signatures of the passed identities, skipping those already present
func (s *SignedTransaction) Sign(ss SigningService, ids ...view.Identity) error {
	for _, id := range ids {
		if s.Signers().Contains(id) {
			continue
		}
		sigma, err := ss.Sign(id, []byte(s.ID()))
		if err != nil {
			return errors.WithMessagef(err, "failed signing [%s] with [%s]", s.ID(), id)
		}
		s.Signatures = append(s.Signatures, Signature{Signer: id, Value: sigma})
	}
	return nil
}

// AddSignatures merges signatures produced elsewhere
func (s *SignedTransaction) AddSignatures(sigs ...Signature) {
	for _, sigma := range sigs {
		if !s.Signers().Contains(sigma.Signer) {
			s.Signatures = append(s.Signatures, sigma)
		}
	}
}

// MissingSigners returns the required signers that did not sign yet
func (s *SignedTransaction) MissingSigners() view.Identities {
	signers := s.Signers()
	var res view.Identities
	for _, id := range s.Tx.RequiredSigners() {
		if !signers.Contains(id) {
			res = append(res, id)
		}
	}
	return res
}

// VerifyRequiredSignatures checks the id and that every required signer produced a valid signature
func (s *SignedTransaction) VerifyRequiredSignatures(vp VerifierProvider) error {
	return s.VerifySignaturesExcept(vp)
}

// VerifySignaturesExcept checks the id and all present signatures,
// tolerating missing signatures only from the passed identities.
func (s *SignedTransaction) VerifySignaturesExcept(vp VerifierProvider, allowedToBeMissing ...view.Identity) error {
	if s.Tx == nil {
		return errors.New("empty transaction")
	}
	if err := s.Tx.CheckID(); err != nil {
		return err
	}
	for _, sigma := range s.Signatures {
		if err := verify(vp, s.ID(), sigma); err != nil {
			return err
		}
	}
	var missing view.Identities
	for _, id := range s.MissingSigners() {
		if !view.Identities(allowedToBeMissing).Contains(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) != 0 {
		return errors.Wrapf(ErrMissingSignatures, "transaction [%s] misses %d signatures", s.ID(), len(missing))
	}
	return nil
}

// VerifyNotarySignature checks that the notary of the transaction signed it
func (s *SignedTransaction) VerifyNotarySignature(vp VerifierProvider) error {
	if s.NotarySignature == nil {
		return errors.Wrapf(ErrMissingSignatures, "transaction [%s] is not notarised", s.ID())
	}
	if !s.NotarySignature.Signer.Equal(s.Tx.Notary.Identity) {
		return errors.Wrapf(ErrInvalidSignature, "transaction [%s] signed by a notary other than [%s]", s.ID(), s.Tx.Notary)
	}
	return verify(vp, s.ID(), *s.NotarySignature)
}

func verify(vp VerifierProvider, txID string, sigma Signature) error {
	v, err := vp.GetVerifier(sigma.Signer)
	if err != nil {
		return errors.WithMessagef(err, "no verifier for [%s]", sigma.Signer)
	}
	if err := v.Verify([]byte(txID), sigma.Value); err != nil {
		return errors.Wrapf(ErrInvalidSignature, "signature by [%s] on [%s]: %s", sigma.Signer, txID, err)
	}
	return nil
}
