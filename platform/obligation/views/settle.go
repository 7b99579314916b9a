/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package views

import (
	"encoding/json"

	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/endorser"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

// Settle contains the input to pay an obligation back, fully or partially.
// The node running the view is the borrower.
type Settle struct {
	LinearID string `json:"linear_id"`
	// Amount paid, in the token of the obligation
	Amount string `json:"amount"`
	// Anonymous pays a fresh key of the lender and keeps the change on a fresh key, the node default when unset
	Anonymous *bool `json:"anonymous,omitempty"`
}

type SettleView struct {
	*Settle
}

func NewSettleView(in *Settle) *SettleView {
	return &SettleView{Settle: in}
}

func (v *SettleView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	if err != nil {
		return nil, err
	}
	flow, err := endorser.NewFlow(ctx, SettleIntent)
	if err != nil {
		return nil, err
	}
	flow.SetLinearID(v.LinearID)

	var amount states.Amount
	var in *ledger.StateAndRef
	var notary states.Party
	if err := flow.Do(endorser.Preparing, func() (err error) {
		if amount, err = parseAmount(v.Amount); err != nil {
			return err
		}
		if in, err = s.builder.Current(ctx.Context(), v.LinearID); err != nil {
			return err
		}
		notary, err = s.notary()
		return err
	}); err != nil {
		return nil, err
	}

	o := *in.State.Obligation
	if err := flow.Do(endorser.Authorizing, func() error {
		if err := s.builder.CheckBorrower(o); err != nil {
			return err
		}
		return s.builder.CheckFunds(ctx.Context(), o, amount)
	}); err != nil {
		return nil, err
	}

	anonymous := s.anonymous(v.Anonymous)
	var tx *ledger.Transaction
	var keys view.Identities
	if err := flow.Do(endorser.Building, func() (err error) {
		payee := o.Lender
		if anonymous {
			lender, err := s.identities.WellKnownPartyFromAnonymous(o.Lender)
			if err != nil {
				return errors.WithMessagef(err, "cannot resolve lender of [%s]", v.LinearID)
			}
			if _, payee, err = endorser.SwapIdentities(ctx, SettleIntent, lender); err != nil {
				return err
			}
		}
		tx, keys, err = s.builder.Settle(ctx.Context(), notary, in, amount, payee, anonymous)
		return err
	}); err != nil {
		return nil, err
	}

	stx, err := agree(ctx, flow, s, SettleIntent, tx, keys, false)
	if err != nil {
		return nil, err
	}
	return resultOf(stx, v.LinearID), nil
}

type SettleViewFactory struct{}

func (f *SettleViewFactory) NewView(in []byte) (view.View, error) {
	v := &SettleView{Settle: &Settle{}}
	if err := json.Unmarshal(in, v.Settle); err != nil {
		return nil, errors.Wrap(err, "failed unmarshalling settle input")
	}
	return v, nil
}
