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

// Transfer contains the input to move an obligation to a new lender.
// The node running the view is the current lender.
type Transfer struct {
	LinearID  string `json:"linear_id"`
	NewLender string `json:"new_lender"`
	// Anonymous replaces the new lender with a fresh key, the node default when unset
	Anonymous *bool `json:"anonymous,omitempty"`
}

type TransferView struct {
	*Transfer
}

func NewTransferView(in *Transfer) *TransferView {
	return &TransferView{Transfer: in}
}

func (t *TransferView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	if err != nil {
		return nil, err
	}
	flow, err := endorser.NewFlow(ctx, TransferIntent)
	if err != nil {
		return nil, err
	}
	flow.SetLinearID(t.LinearID)

	var in *ledger.StateAndRef
	var newLender, notary states.Party
	if err := flow.Do(endorser.Preparing, func() (err error) {
		if in, err = s.builder.Current(ctx.Context(), t.LinearID); err != nil {
			return err
		}
		if newLender, err = s.party("lender", t.NewLender); err != nil {
			return err
		}
		notary, err = s.notary()
		return err
	}); err != nil {
		return nil, err
	}

	if err := flow.Do(endorser.Authorizing, func() error {
		return s.builder.CheckLender(*in.State.Obligation)
	}); err != nil {
		return nil, err
	}

	var tx *ledger.Transaction
	if err := flow.Do(endorser.Building, func() (err error) {
		if s.anonymous(t.Anonymous) && !newLender.Equal(s.identities.Me()) {
			if _, newLender, err = endorser.SwapIdentities(ctx, TransferIntent, newLender); err != nil {
				return err
			}
		}
		tx, err = s.builder.Transfer(notary, in, newLender)
		return err
	}); err != nil {
		return nil, err
	}

	stx, err := agree(ctx, flow, s, TransferIntent, tx, endorser.MyKeys(s.identities, tx), true)
	if err != nil {
		return nil, err
	}
	return resultOf(stx, t.LinearID), nil
}

type TransferViewFactory struct{}

func (f *TransferViewFactory) NewView(in []byte) (view.View, error) {
	v := &TransferView{Transfer: &Transfer{}}
	if err := json.Unmarshal(in, v.Transfer); err != nil {
		return nil, errors.Wrap(err, "failed unmarshalling transfer input")
	}
	return v, nil
}
