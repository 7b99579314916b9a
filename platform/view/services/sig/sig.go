/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sig

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/kvs"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("view.sig")

const signerPrefix = "sig.signer"

// Signer is an interface which wraps the Sign method.
type Signer interface {
	// Sign signs message bytes and returns the signature or an error on failure.
	Sign(message []byte) ([]byte, error)
}

// Verifier is an interface which wraps the Verify method.
type Verifier interface {
	// Verify verifies the signature over the passed message.
	Verify(message, sigma []byte) error
}

// Serializable signers can be stored and restored through a Deserializer
type Serializable interface {
	Serialize() ([]byte, error)
}

type KVS interface {
	Exists(id string) bool
	Put(id string, state interface{}) error
	Get(id string, state interface{}) error
}

type VerifierEntry struct {
	Verifier   Verifier
	DebugStack []byte
}

type SignerEntry struct {
	Signer     Signer
	DebugStack []byte
}

// Service models a repository of sign and verify keys.
// Signers are persisted in the KVS when they can be serialized,
// verifiers for unknown identities are obtained from the deserializer.
type Service struct {
	deserializer Deserializer
	kvs          KVS

	mutex     sync.RWMutex
	signers   map[string]SignerEntry
	verifiers map[string]VerifierEntry
}

// GetService returns the signing service registered in sp
func GetService(sp view.ServiceProvider) (*Service, error) {
	s, err := sp.GetService(reflect.TypeOf((*Service)(nil)))
	if err != nil {
		return nil, errors.Wrap(err, "cannot get signing service")
	}
	return s.(*Service), nil
}

func NewService(deserializer Deserializer, kvs KVS) *Service {
	return &Service{
		signers:      map[string]SignerEntry{},
		verifiers:    map[string]VerifierEntry{},
		deserializer: deserializer,
		kvs:          kvs,
	}
}

// RegisterSigner binds the passed identity to the passed signer and verifier
func (o *Service) RegisterSigner(identity view.Identity, signer Signer, verifier Verifier) error {
	if signer == nil {
		return errors.New("invalid signer, expected a valid instance")
	}

	idHash := identity.UniqueID()
	o.mutex.Lock()
	if s, ok := o.signers[idHash]; ok {
		o.mutex.Unlock()
		logger.Debugf("another signer bound to [%s]:[%s][%s] from [%s]", identity, GetIdentifier(s.Signer), GetIdentifier(signer), string(s.DebugStack))
		return nil
	}
	entry := SignerEntry{Signer: signer}
	if logger.IsEnabledFor(logging.DebugLevel) {
		entry.DebugStack = debug.Stack()
	}
	o.signers[idHash] = entry
	o.mutex.Unlock()

	if o.kvs != nil {
		if err := o.storeSigner(idHash, signer); err != nil {
			o.deleteSigner(idHash)
			return errors.WithMessage(err, "failed to store entry in kvs for the passed signer")
		}
	}

	if verifier != nil {
		if err := o.RegisterVerifier(identity, verifier); err != nil {
			o.deleteSigner(idHash)
			return err
		}
	}
	logger.Debugf("signer for [%s][%s] registered", idHash, GetIdentifier(signer))
	return nil
}

// RegisterVerifier binds the passed identity to the passed verifier
func (o *Service) RegisterVerifier(identity view.Identity, verifier Verifier) error {
	if verifier == nil {
		return errors.New("invalid verifier, expected a valid instance")
	}

	idHash := identity.UniqueID()
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if v, ok := o.verifiers[idHash]; ok {
		logger.Debugf("another verifier bound to [%s]:[%s][%s] from [%s]", idHash, GetIdentifier(v.Verifier), GetIdentifier(verifier), string(v.DebugStack))
		return nil
	}
	entry := VerifierEntry{Verifier: verifier}
	if logger.IsEnabledFor(logging.DebugLevel) {
		entry.DebugStack = debug.Stack()
	}
	o.verifiers[idHash] = entry
	logger.Debugf("register verifier to [%s]:[%s]", idHash, GetIdentifier(verifier))
	return nil
}

// IsMe returns true if a signer was ever registered for the passed identity
func (o *Service) IsMe(identity view.Identity) bool {
	idHash := identity.UniqueID()
	o.mutex.RLock()
	_, ok := o.signers[idHash]
	o.mutex.RUnlock()
	if ok {
		return true
	}
	if o.kvs != nil {
		k, err := kvs.CreateCompositeKey(signerPrefix, []string{idHash})
		if err != nil {
			return false
		}
		return o.kvs.Exists(k)
	}
	return false
}

// AreMe returns the unique ids of the passed identities that have a signer registered
func (o *Service) AreMe(identities ...view.Identity) []string {
	var res []string
	for _, id := range identities {
		if o.IsMe(id) {
			res = append(res, id.UniqueID())
		}
	}
	return res
}

// GetSigner returns the signer bound to the passed identity
func (o *Service) GetSigner(identity view.Identity) (Signer, error) {
	idHash := identity.UniqueID()
	o.mutex.RLock()
	entry, ok := o.signers[idHash]
	o.mutex.RUnlock()
	if ok {
		return entry.Signer, nil
	}
	if o.kvs == nil || o.deserializer == nil {
		return nil, errors.Errorf("signer not found for [%s]", identity)
	}

	k, err := kvs.CreateCompositeKey(signerPrefix, []string{idHash})
	if err != nil {
		return nil, err
	}
	var raw []byte
	if err := o.kvs.Get(k, &raw); err != nil {
		return nil, errors.WithMessagef(err, "signer not found for [%s]", identity)
	}
	signer, err := o.deserializer.DeserializeSigner(raw)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed deserializing signer for [%s]", identity)
	}
	o.mutex.Lock()
	o.signers[idHash] = SignerEntry{Signer: signer}
	o.mutex.Unlock()
	return signer, nil
}

// GetVerifier returns the verifier bound to the passed identity
func (o *Service) GetVerifier(identity view.Identity) (Verifier, error) {
	if identity.IsNone() {
		return nil, errors.New("cannot get verifier for an empty identity")
	}
	idHash := identity.UniqueID()
	o.mutex.RLock()
	entry, ok := o.verifiers[idHash]
	o.mutex.RUnlock()
	if ok {
		return entry.Verifier, nil
	}
	if o.deserializer == nil {
		return nil, errors.Errorf("cannot find verifier for [%s], no deserializer", identity)
	}

	verifier, err := o.deserializer.DeserializeVerifier(identity)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed deserializing identity for verifier [%s]", identity)
	}
	o.mutex.Lock()
	o.verifiers[idHash] = VerifierEntry{Verifier: verifier}
	o.mutex.Unlock()
	return verifier, nil
}

// Sign signs the passed message with the signer bound to the passed identity
func (o *Service) Sign(identity view.Identity, message []byte) ([]byte, error) {
	signer, err := o.GetSigner(identity)
	if err != nil {
		return nil, err
	}
	return signer.Sign(message)
}

// Verify checks the passed signature against the verifier bound to the passed identity
func (o *Service) Verify(identity view.Identity, message, sigma []byte) error {
	verifier, err := o.GetVerifier(identity)
	if err != nil {
		return err
	}
	return verifier.Verify(message, sigma)
}

func (o *Service) storeSigner(idHash string, signer Signer) error {
	s, ok := signer.(Serializable)
	if !ok {
		logger.Debugf("signer [%s] is not serializable, kept in memory only", GetIdentifier(signer))
		return nil
	}
	raw, err := s.Serialize()
	if err != nil {
		return errors.Wrap(err, "failed serializing signer")
	}
	k, err := kvs.CreateCompositeKey(signerPrefix, []string{idHash})
	if err != nil {
		return err
	}
	return o.kvs.Put(k, raw)
}

func (o *Service) deleteSigner(id string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	delete(o.signers, id)
}

func GetIdentifier(f any) string {
	if f == nil {
		return "<nil>"
	}
	t := reflect.TypeOf(f)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return fmt.Sprintf("%s/%s", t.PkgPath(), t.Name())
}
