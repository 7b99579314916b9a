/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package endorser

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/contract"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/session"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/tracker"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

// AdditionalCheck is a business check a responder runs after the contract verification.
// Returning an error rejects the proposal.
type AdditionalCheck func(ctx view.Context, stx *ledger.SignedTransaction) error

// ResponderView answers an agreement initiated by a remote party.
// It moves through SYNC_RECEIVE, REVIEW, ENDORSE and AWAIT_COMMIT as the envelopes arrive.
type ResponderView struct {
	intent string
	checks []AdditionalCheck
}

func NewResponderView(intent string, checks ...AdditionalCheck) *ResponderView {
	return &ResponderView{intent: intent, checks: checks}
}

func (r *ResponderView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	if err != nil {
		return nil, err
	}
	ts, err := tracker.GetService(ctx)
	if err != nil {
		return nil, err
	}
	t := ts.New(ctx.ID(), tracker.Responder, r.intent, ResponderPlan...)
	js := session.JSON(ctx, s.config.SessionTimeout)
	initiator := js.Session().Info().Caller

	synced := false
	for {
		env := &Envelope{}
		if err := js.Receive(env); err != nil {
			return nil, abort(t, err)
		}
		switch env.Kind {
		case Swap, Sync:
			if !synced {
				if err := t.Advance(SyncReceive); err != nil {
					return nil, abort(t, err)
				}
				synced = true
			}
			if env.Kind == Swap {
				err = respondSwap(s, js, env)
			} else {
				err = respondSync(s, js, env)
			}
			if err != nil {
				return nil, abort(t, err)
			}
		case Proposal:
			if env.Transaction == nil || env.Transaction.Tx == nil {
				return nil, abort(t, errors.Wrap(ErrUnexpectedMessage, "empty proposal"))
			}
			return r.endorse(ctx, s, t, js, initiator, env.Transaction)
		case Abort:
			return nil, abort(t, errors.Wrap(ErrAborted, env.Reason))
		default:
			return nil, abort(t, errors.Wrapf(ErrUnexpectedMessage, "got [%s] before the proposal", env.Kind))
		}
	}
}

func (r *ResponderView) endorse(ctx view.Context, s *services, t *tracker.Tracker, js *session.JSONSession, initiator view.Identity, stx *ledger.SignedTransaction) (interface{}, error) {
	t.SetTxID(stx.ID())
	if err := t.Advance(Review); err != nil {
		return nil, abort(t, err)
	}
	if err := r.review(ctx, s, initiator, stx); err != nil {
		logger.Infof("rejecting [%s]: %s", stx.ID(), err)
		if err := js.SendError(err.Error()); err != nil {
			logger.Warnf("failed sending rejection of [%s]: %s", stx.ID(), err)
		}
		return nil, abort(t, err)
	}
	if os := stx.Tx.OutputObligations(); len(os) != 0 {
		t.SetLinearID(os[0].LinearID)
	} else if is := stx.Tx.InputObligations(); len(is) != 0 {
		t.SetLinearID(is[0].LinearID)
	}

	if err := t.Advance(Endorse); err != nil {
		return nil, abort(t, err)
	}
	keys := MyKeys(s.identities, stx.Tx)
	if err := stx.Sign(s.sig, keys...); err != nil {
		return nil, abort(t, err)
	}
	var sigs []ledger.Signature
	for _, sigma := range stx.Signatures {
		if keys.Contains(sigma.Signer) {
			sigs = append(sigs, sigma)
		}
	}
	if err := js.Send(&Envelope{Kind: Signatures, Signatures: sigs}); err != nil {
		return nil, abort(t, err)
	}

	if err := t.Advance(AwaitCommit); err != nil {
		return nil, abort(t, err)
	}
	env := &Envelope{}
	if err := js.ReceiveWithTimeout(env, s.config.FinalityTimeout); err != nil {
		return nil, abort(t, err)
	}
	switch env.Kind {
	case Final:
	case Abort:
		return nil, abort(t, errors.Wrap(ErrAborted, env.Reason))
	default:
		return nil, abort(t, errors.Wrapf(ErrUnexpectedMessage, "expected [%s], got [%s]", Final, env.Kind))
	}
	final := env.Transaction
	if final == nil || final.Tx == nil || final.ID() != stx.ID() {
		return nil, abort(t, errors.Wrapf(ErrUnexpectedMessage, "final transaction differs from [%s]", stx.ID()))
	}
	if err := checkFinal(s, final); err != nil {
		return nil, abort(t, err)
	}
	if err := s.vault.Record(ctx.Context(), final); err != nil {
		return nil, abort(t, err)
	}
	if err := js.Send(&Envelope{Kind: Ack}); err != nil {
		return nil, abort(t, err)
	}
	if err := t.Commit(); err != nil {
		return nil, err
	}
	logger.Debugf("[%s:%s] committed [%s]", r.intent, ctx.ID(), final.ID())
	return final, nil
}

// review never trusts the checks the initiator ran
func (r *ResponderView) review(ctx view.Context, s *services, initiator view.Identity, stx *ledger.SignedTransaction) error {
	tx := stx.Tx
	if err := tx.CheckID(); err != nil {
		return err
	}
	if err := contract.VerifyTransaction(tx, s.identities); err != nil {
		return err
	}

	// inputs this node takes part in must be current in the local vault
	for _, in := range tx.Inputs {
		if !r.mine(s, in.State.Participants()) {
			continue
		}
		local, err := s.vault.Unconsumed(ctx.Context(), in.State.Contract, in.Ref)
		if err != nil {
			return errors.Wrapf(ErrInconsistentInput, "[%s]: %s", in.Ref, err)
		}
		if !sameState(local.State, in.State) {
			return errors.Wrapf(ErrInconsistentInput, "[%s] differs from the local copy", in.Ref)
		}
	}

	// the initiator signs first, everybody else may still be missing
	var othersMissing view.Identities
	for _, id := range stx.MissingSigners() {
		p, err := s.identities.WellKnownPartyFromAnonymous(states.Party{Identity: id})
		if err == nil && p.Identity.Equal(initiator) {
			return errors.Wrapf(ErrInitiatorSignature, "missing [%s]", id)
		}
		othersMissing = append(othersMissing, id)
	}
	if err := stx.VerifySignaturesExcept(s.sig, othersMissing...); err != nil {
		return err
	}
	if len(MyKeys(s.identities, tx)) == 0 {
		return errors.Wrapf(ErrNotASigner, "[%s]", tx.ID)
	}

	for _, check := range r.checks {
		if err := check(ctx, stx); err != nil {
			return err
		}
	}
	return nil
}

func (r *ResponderView) mine(s *services, parties states.Parties) bool {
	for _, p := range parties {
		if s.identities.IsMine(p) {
			return true
		}
	}
	return false
}

func sameState(a, b ledger.TransactionState) bool {
	if a.Contract != b.Contract {
		return false
	}
	switch a.Contract {
	case ledger.ObligationContract:
		return a.Obligation != nil && b.Obligation != nil && a.Obligation.Equal(*b.Obligation)
	case ledger.CashContract:
		return a.Cash != nil && b.Cash != nil && a.Cash.Amount == b.Cash.Amount &&
			a.Cash.Issuer.Equal(b.Cash.Issuer) && a.Cash.Owner.Equal(b.Cash.Owner)
	}
	return false
}

func abort(t *tracker.Tracker, err error) error {
	step := t.Step()
	t.Abort(err)
	return &AbortError{Step: step, Cause: err}
}
