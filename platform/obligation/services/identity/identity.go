/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package identity

import (
	"reflect"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils/errors"
	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/id/ecdsa"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/kvs"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	perrors "github.com/pkg/errors"
)

var logger = logging.MustGetLogger("obligation.identity")

const certificatePrefix = "identity.certificate"

var (
	// ErrUnresolvable is returned when a pseudonymous party is not bound to any known well-known party
	ErrUnresolvable = perrors.New("cannot resolve party")
	// ErrInvalidCertificate is returned when a certificate is not signed by the well-known party it names
	ErrInvalidCertificate = perrors.New("invalid certificate")
)

// Certificate binds a pseudonymous key to the well-known party owning it.
// Signature is by the well-known party over the anonymous identity.
type Certificate struct {
	WellKnown states.Party  `json:"well_known"`
	Anonymous view.Identity `json:"anonymous"`
	Signature []byte        `json:"signature"`
}

func (c *Certificate) message() []byte {
	return append([]byte(certificatePrefix+":"), c.Anonymous...)
}

type SigService interface {
	RegisterSigner(identity view.Identity, signer sig.Signer, verifier sig.Verifier) error
	Sign(identity view.Identity, message []byte) ([]byte, error)
	Verify(identity view.Identity, message, sigma []byte) error
}

type KVS interface {
	Exists(id string) bool
	Put(id string, state interface{}) error
	Get(id string, state interface{}) error
}

// Service knows the well-known party of this node, mints pseudonymous keys
// and resolves pseudonymous parties through the certificates it learned.
type Service struct {
	me         states.Party
	networkMap *NetworkMap
	sigService SigService
	kvs        KVS
}

func NewService(me states.Party, networkMap *NetworkMap, sigService SigService, kvs KVS) *Service {
	return &Service{me: me, networkMap: networkMap, sigService: sigService, kvs: kvs}
}

func GetService(sp view.ServiceProvider) (*Service, error) {
	s, err := sp.GetService(reflect.TypeOf((*Service)(nil)))
	if err != nil {
		return nil, perrors.Wrap(err, "cannot get identity service")
	}
	return s.(*Service), nil
}

// Me returns the well-known party of this node
func (s *Service) Me() states.Party {
	return s.me
}

func (s *Service) NetworkMap() *NetworkMap {
	return s.networkMap
}

// FreshAnonymousIdentity creates a one-time key owned by this node and the certificate binding it to Me
func (s *Service) FreshAnonymousIdentity() (states.Party, *Certificate, error) {
	id, signer, verifier, err := ecdsa.NewSigner()
	if err != nil {
		return states.Party{}, nil, perrors.Wrap(err, "failed generating key")
	}
	if err := s.sigService.RegisterSigner(id, signer, verifier); err != nil {
		return states.Party{}, nil, perrors.WithMessage(err, "failed registering signer")
	}
	cert := &Certificate{WellKnown: s.me, Anonymous: id}
	cert.Signature, err = s.sigService.Sign(s.me.Identity, cert.message())
	if err != nil {
		return states.Party{}, nil, perrors.WithMessage(err, "failed signing certificate")
	}
	if err := s.store(cert); err != nil {
		return states.Party{}, nil, err
	}
	logger.Debugf("fresh anonymous identity [%s] for [%s]", id.UniqueID(), s.me)
	return states.Party{Identity: id}, cert, nil
}

// RegisterCertificate learns the binding in cert after checking its signature
func (s *Service) RegisterCertificate(cert *Certificate) error {
	if cert == nil || cert.Anonymous.IsNone() {
		return perrors.Wrap(ErrInvalidCertificate, "empty certificate")
	}
	wk, err := s.networkMap.PartyFromIdentity(cert.WellKnown.Identity)
	if err != nil {
		return perrors.Wrapf(ErrInvalidCertificate, "unknown well-known party [%s]", cert.WellKnown)
	}
	if err := s.sigService.Verify(wk.Identity, cert.message(), cert.Signature); err != nil {
		return perrors.Wrapf(ErrInvalidCertificate, "signature of [%s]: %s", wk, err)
	}
	cert.WellKnown = wk
	return s.store(cert)
}

// Certificate returns the certificate for an anonymous identity, if known
func (s *Service) Certificate(anonymous view.Identity) (*Certificate, error) {
	cert := &Certificate{}
	if err := s.kvs.Get(certificateKey(anonymous), cert); err != nil {
		if errors.HasCause(err, kvs.ErrNotFound) {
			return nil, perrors.Wrapf(ErrUnresolvable, "no certificate for [%s]", anonymous.UniqueID())
		}
		return nil, err
	}
	return cert, nil
}

// WellKnownPartyFromAnonymous resolves a party to the well-known party owning its key
func (s *Service) WellKnownPartyFromAnonymous(p states.Party) (states.Party, error) {
	if wk, err := s.networkMap.PartyFromIdentity(p.Identity); err == nil {
		return wk, nil
	}
	cert, err := s.Certificate(p.Identity)
	if err != nil {
		return states.Party{}, err
	}
	return cert.WellKnown, nil
}

// IsMine tells whether the party is Me or one of my anonymous identities
func (s *Service) IsMine(p states.Party) bool {
	wk, err := s.WellKnownPartyFromAnonymous(p)
	return err == nil && wk.Equal(s.me)
}

func (s *Service) store(cert *Certificate) error {
	if err := s.kvs.Put(certificateKey(cert.Anonymous), cert); err != nil {
		return perrors.WithMessagef(err, "failed storing certificate for [%s]", cert.Anonymous.UniqueID())
	}
	return nil
}

func certificateKey(id view.Identity) string {
	return kvs.CreateCompositeKeyOrPanic(certificatePrefix, []string{id.UniqueID()})
}
