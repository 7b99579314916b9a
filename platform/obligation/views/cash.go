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

// SelfIssueCash contains the amount of cash a node issues to itself
type SelfIssueCash struct {
	Amount string `json:"amount"`
}

// SelfIssueCashView notarises the issuance of cash owned and issued by this node.
// No other party is involved.
type SelfIssueCashView struct {
	*SelfIssueCash
}

func NewSelfIssueCashView(in *SelfIssueCash) *SelfIssueCashView {
	return &SelfIssueCashView{SelfIssueCash: in}
}

func (v *SelfIssueCashView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	if err != nil {
		return nil, err
	}
	flow, err := endorser.NewFlow(ctx, SelfIssueCashIntent)
	if err != nil {
		return nil, err
	}

	var amount states.Amount
	var notary states.Party
	if err := flow.Do(endorser.Preparing, func() (err error) {
		if amount, err = parseAmount(v.Amount); err != nil {
			return err
		}
		notary, err = s.notary()
		return err
	}); err != nil {
		return nil, err
	}

	var tx *ledger.Transaction
	if err := flow.Do(endorser.Building, func() (err error) {
		tb := ledger.NewTransactionBuilder(notary)
		if err := s.wallet.GenerateIssue(tb, amount, s.identities.Me()); err != nil {
			return err
		}
		tx, err = tb.Verify(s.verifier)
		return err
	}); err != nil {
		return nil, err
	}

	stx, err := agree(ctx, flow, s, SelfIssueCashIntent, tx, view.Identities{s.identities.Me().Identity}, false)
	if err != nil {
		return nil, err
	}
	return &Result{TxID: stx.ID()}, nil
}

type SelfIssueCashViewFactory struct{}

func (f *SelfIssueCashViewFactory) NewView(in []byte) (view.View, error) {
	v := &SelfIssueCashView{SelfIssueCash: &SelfIssueCash{}}
	if err := json.Unmarshal(in, v.SelfIssueCash); err != nil {
		return nil, errors.Wrap(err, "failed unmarshalling cash input")
	}
	return v, nil
}
