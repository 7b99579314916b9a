/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package endorser

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/contract"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/notary"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/session"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type finalityView struct {
	stx       *ledger.SignedTransaction
	signers   []states.Party
	observers []states.Party
}

// Finality notarises stx, records it and distributes it.
// Signers get the final transaction over the sessions used to collect their signatures,
// observers over new sessions. It returns once every party acknowledged.
// If notarisation fails the signers are told to abort.
func Finality(ctx view.Context, stx *ledger.SignedTransaction, signers []states.Party, observers []states.Party) (*ledger.SignedTransaction, error) {
	res, err := ctx.RunView(&finalityView{stx: stx, signers: signers, observers: observers})
	if err != nil {
		return nil, err
	}
	return res.(*ledger.SignedTransaction), nil
}

func (f *finalityView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	if err != nil {
		return nil, err
	}
	client, err := notary.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	stx, err := client.Finalize(ctx, f.stx)
	if err != nil {
		notifyAbort(ctx, s, f.signers, err)
		return nil, err
	}
	if err := s.vault.Record(ctx.Context(), stx); err != nil {
		return nil, errors.WithMessagef(err, "failed recording [%s]", stx.ID())
	}

	g, gctx := errgroup.WithContext(ctx.Context())
	for _, party := range f.signers {
		party := party
		g.Go(func() error {
			raw, err := ctx.GetSession(ctx.Initiator(), party.Identity)
			if err != nil {
				return errors.WithMessagef(err, "failed opening session to [%s]", party)
			}
			js := session.Wrap(gctx, raw, s.config.FinalityTimeout)
			if err := js.Send(&Envelope{Kind: Final, Transaction: stx}); err != nil {
				return errors.WithMessagef(err, "failed distributing [%s] to [%s]", stx.ID(), party)
			}
			return receiveAck(js, party)
		})
	}
	if len(f.observers) != 0 {
		g.Go(func() error {
			_, err := ctx.RunView(&broadcastView{stx: stx, parties: f.observers}, view.WithContext(gctx))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Debugf("[%s] final at %d signers and %d observers", stx.ID(), len(f.signers), len(f.observers))
	return stx, nil
}

// notifyAbort tells parties the agreement failed. Failures are only logged.
func notifyAbort(ctx view.Context, s *services, parties []states.Party, cause error) {
	for _, party := range parties {
		raw, err := ctx.GetSession(ctx.Initiator(), party.Identity)
		if err != nil {
			logger.Warnf("cannot notify abort to [%s]: %s", party, err)
			continue
		}
		if err := session.Wrap(ctx.Context(), raw, s.config.SessionTimeout).Send(&Envelope{Kind: Abort, Reason: cause.Error()}); err != nil {
			logger.Warnf("cannot notify abort to [%s]: %s", party, err)
		}
	}
}

// selected returns the parties whose flag is set
func selected(parties []states.Party, flags []bool) []states.Party {
	var res []states.Party
	for i, party := range parties {
		if flags[i] {
			res = append(res, party)
		}
	}
	return res
}

type broadcastView struct {
	stx     *ledger.SignedTransaction
	parties []states.Party
}

// Call opens one session per observer, the responder is ObserverView
func (b *broadcastView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	if err != nil {
		return nil, err
	}
	g, gctx := errgroup.WithContext(ctx.Context())
	for _, party := range b.parties {
		party := party
		g.Go(func() error {
			raw, err := ctx.GetSession(b, party.Identity)
			if err != nil {
				return errors.WithMessagef(err, "failed opening session to [%s]", party)
			}
			js := session.Wrap(gctx, raw, s.config.FinalityTimeout)
			if err := js.Send(&Envelope{Kind: Final, Transaction: b.stx}); err != nil {
				return errors.WithMessagef(err, "failed distributing [%s] to [%s]", b.stx.ID(), party)
			}
			return receiveAck(js, party)
		})
	}
	return nil, g.Wait()
}

// ObserverView records a final transaction sent to a party that did not sign it
type ObserverView struct{}

func NewObserverView() view.View {
	return &ObserverView{}
}

func (o *ObserverView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	if err != nil {
		return nil, err
	}
	js := session.JSON(ctx, s.config.FinalityTimeout)
	env := &Envelope{}
	if err := js.Receive(env); err != nil {
		return nil, err
	}
	if env.Kind != Final || env.Transaction == nil {
		return nil, errors.Wrapf(ErrUnexpectedMessage, "expected [%s], got [%s]", Final, env.Kind)
	}
	if err := checkFinal(s, env.Transaction); err != nil {
		return nil, err
	}
	if err := contract.VerifyTransaction(env.Transaction.Tx, s.identities); err != nil {
		return nil, err
	}
	if err := s.vault.Record(ctx.Context(), env.Transaction); err != nil {
		return nil, err
	}
	logger.Debugf("recorded [%s] as observer", env.Transaction.ID())
	return env.Transaction, js.Send(&Envelope{Kind: Ack})
}

// BroadcastInitiator returns the view ObserverView answers to, for the responder table
func BroadcastInitiator() view.View {
	return &broadcastView{}
}

func checkFinal(s *services, stx *ledger.SignedTransaction) error {
	if err := stx.VerifyNotarySignature(s.sig); err != nil {
		return err
	}
	return stx.VerifyRequiredSignatures(s.sig)
}
