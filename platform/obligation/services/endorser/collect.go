/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package endorser

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/session"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type collectSignaturesView struct {
	intent  string
	stx     *ledger.SignedTransaction
	parties []states.Party
}

// CollectSignatures sends stx to every party and merges the signatures they return.
// Parties are contacted in parallel, the first failure cancels the others
// and every party that got the proposal is told to abort.
// On success stx carries all the required signatures.
func CollectSignatures(ctx view.Context, intent string, stx *ledger.SignedTransaction, parties ...states.Party) (*ledger.SignedTransaction, error) {
	res, err := ctx.RunView(&collectSignaturesView{intent: intent, stx: stx, parties: parties})
	if err != nil {
		return nil, err
	}
	return res.(*ledger.SignedTransaction), nil
}

func (c *collectSignaturesView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	if err != nil {
		return nil, err
	}

	collected := make([][]ledger.Signature, len(c.parties))
	proposed := make([]bool, len(c.parties))
	g, gctx := errgroup.WithContext(ctx.Context())
	for i, party := range c.parties {
		i, party := i, party
		expected := keysOf(s.identities, c.stx.Tx, party)
		g.Go(func() error {
			raw, err := ctx.GetSession(ctx.Initiator(), party.Identity)
			if err != nil {
				return errors.WithMessagef(err, "failed opening session to [%s]", party)
			}
			js := session.Wrap(gctx, raw, s.config.SessionTimeout)
			if err := js.Send(&Envelope{Kind: Proposal, Intent: c.intent, Transaction: c.stx}); err != nil {
				return errors.WithMessagef(err, "failed sending proposal to [%s]", party)
			}
			proposed[i] = true
			answer := &Envelope{}
			if err := js.Receive(answer); err != nil {
				return rejection(party, err, "failed receiving signatures")
			}
			if answer.Kind != Signatures {
				return errors.Wrapf(ErrUnexpectedMessage, "expected [%s] from [%s], got [%s]", Signatures, party, answer.Kind)
			}
			for _, sigma := range answer.Signatures {
				if !expected.Contains(sigma.Signer) {
					return errors.Errorf("[%s] signed with unexpected key [%s]", party, sigma.Signer)
				}
				v, err := s.sig.GetVerifier(sigma.Signer)
				if err != nil {
					return errors.WithMessagef(err, "no verifier for [%s]", sigma.Signer)
				}
				if err := v.Verify([]byte(c.stx.ID()), sigma.Value); err != nil {
					return errors.Wrapf(ledger.ErrInvalidSignature, "signature of [%s]: %s", party, err)
				}
			}
			logger.Debugf("collected %d signatures from [%s] on [%s]", len(answer.Signatures), party, c.stx.ID())
			collected[i] = answer.Signatures
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		notifyAbort(ctx, s, selected(c.parties, proposed), err)
		return nil, err
	}

	for _, sigs := range collected {
		c.stx.AddSignatures(sigs...)
	}
	if err := c.stx.VerifyRequiredSignatures(s.sig); err != nil {
		notifyAbort(ctx, s, c.parties, err)
		return nil, err
	}
	return c.stx, nil
}
