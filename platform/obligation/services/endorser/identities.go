/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package endorser

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/identity"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/session"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type swapIdentitiesView struct {
	intent string
	other  states.Party
}

// SwapIdentities creates a fresh anonymous identity for this node and obtains one from other.
// Both parties learn the certificates binding the two keys to their owners.
func SwapIdentities(ctx view.Context, intent string, other states.Party) (me states.Party, them states.Party, err error) {
	res, err := ctx.RunView(&swapIdentitiesView{intent: intent, other: other})
	if err != nil {
		return states.Party{}, states.Party{}, err
	}
	pair := res.([2]states.Party)
	return pair[0], pair[1], nil
}

func (v *swapIdentitiesView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	if err != nil {
		return nil, err
	}
	me, cert, err := s.identities.FreshAnonymousIdentity()
	if err != nil {
		return nil, err
	}
	js, err := session.NewJSON(ctx, ctx.Initiator(), v.other.Identity, s.config.SessionTimeout)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed opening session to [%s]", v.other)
	}
	if err := js.Send(&Envelope{Kind: Swap, Intent: v.intent, Certificates: []*identity.Certificate{cert}}); err != nil {
		return nil, errors.WithMessage(err, "failed sending identity")
	}
	answer := &Envelope{}
	if err := js.Receive(answer); err != nil {
		return nil, rejection(v.other, err, "failed receiving identity")
	}
	if answer.Kind != Swap || len(answer.Certificates) != 1 {
		return nil, errors.Wrapf(ErrUnexpectedMessage, "expected one certificate, got [%s] with %d", answer.Kind, len(answer.Certificates))
	}
	theirs := answer.Certificates[0]
	if err := s.identities.RegisterCertificate(theirs); err != nil {
		return nil, err
	}
	if !theirs.WellKnown.Equal(v.other) {
		return nil, errors.Wrapf(identity.ErrInvalidCertificate, "certificate issued by [%s], expected [%s]", theirs.WellKnown, v.other)
	}
	logger.Debugf("swapped identities with [%s]", v.other)
	return [2]states.Party{me, {Identity: theirs.Anonymous}}, nil
}

// respondSwap answers a swap request received on the default session
func respondSwap(s *services, js *session.JSONSession, env *Envelope) error {
	if len(env.Certificates) != 1 {
		return errors.Wrapf(ErrUnexpectedMessage, "expected one certificate, got %d", len(env.Certificates))
	}
	theirs := env.Certificates[0]
	if err := s.identities.RegisterCertificate(theirs); err != nil {
		return err
	}
	if caller := js.Session().Info().Caller; !theirs.WellKnown.Identity.Equal(caller) {
		return errors.Wrapf(identity.ErrInvalidCertificate, "certificate issued by [%s], not by the caller", theirs.WellKnown)
	}
	_, cert, err := s.identities.FreshAnonymousIdentity()
	if err != nil {
		return err
	}
	return js.Send(&Envelope{Kind: Swap, Certificates: []*identity.Certificate{cert}})
}

type syncIdentitiesView struct {
	tx      *ledger.Transaction
	parties []states.Party
}

// SyncIdentities sends to every party the certificates of the anonymous identities in tx this node knows about
func SyncIdentities(ctx view.Context, tx *ledger.Transaction, parties ...states.Party) error {
	_, err := ctx.RunView(&syncIdentitiesView{tx: tx, parties: parties})
	return err
}

func (v *syncIdentitiesView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	if err != nil {
		return nil, err
	}
	var certs []*identity.Certificate
	seen := view.Identities{}
	for _, id := range append(v.tx.Participants().Identities(), v.tx.RequiredSigners()...) {
		if seen.Contains(id) {
			continue
		}
		seen = append(seen, id)
		cert, err := s.identities.Certificate(id)
		if err != nil {
			continue
		}
		certs = append(certs, cert)
	}
	logger.Debugf("syncing %d certificates of [%s] with %d parties", len(certs), v.tx.ID, len(v.parties))

	synced := make([]bool, len(v.parties))
	g, gctx := errgroup.WithContext(ctx.Context())
	for i, party := range v.parties {
		i, party := i, party
		g.Go(func() error {
			raw, err := ctx.GetSession(ctx.Initiator(), party.Identity)
			if err != nil {
				return errors.WithMessagef(err, "failed opening session to [%s]", party)
			}
			js := session.Wrap(gctx, raw, s.config.SessionTimeout)
			if err := js.Send(&Envelope{Kind: Sync, Certificates: certs}); err != nil {
				return errors.WithMessagef(err, "failed syncing identities with [%s]", party)
			}
			synced[i] = true
			return receiveAck(js, party)
		})
	}
	if err := g.Wait(); err != nil {
		notifyAbort(ctx, s, selected(v.parties, synced), err)
		return nil, err
	}
	return nil, nil
}

// respondSync learns the certificates of a sync request received on the default session
func respondSync(s *services, js *session.JSONSession, env *Envelope) error {
	for _, cert := range env.Certificates {
		if err := s.identities.RegisterCertificate(cert); err != nil {
			return err
		}
	}
	return js.Send(&Envelope{Kind: Ack})
}

func receiveAck(js *session.JSONSession, party states.Party) error {
	ack := &Envelope{}
	if err := js.Receive(ack); err != nil {
		return rejection(party, err, "no acknowledgement")
	}
	if ack.Kind != Ack {
		return errors.Wrapf(ErrUnexpectedMessage, "expected [%s] from [%s], got [%s]", Ack, party, ack.Kind)
	}
	return nil
}

// rejection turns an error sent by party into a CounterpartyRejection
func rejection(party states.Party, err error, msg string) error {
	var remote *session.RemoteError
	if errors.As(err, &remote) {
		return &CounterpartyRejection{Party: party, Reason: remote.Reason}
	}
	return errors.WithMessagef(err, "%s from [%s]", msg, party)
}
