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

// Issue contains the input to create a new obligation.
// The node running the view is the borrower.
type Issue struct {
	// Amount owed, for example "10.00 GBP"
	Amount string `json:"amount"`
	// Lender is the name of the party the obligation is owed to
	Lender string `json:"lender"`
	// Anonymous replaces lender and borrower with fresh keys, the node default when unset
	Anonymous *bool `json:"anonymous,omitempty"`
}

type IssueView struct {
	*Issue
}

func NewIssueView(in *Issue) *IssueView {
	return &IssueView{Issue: in}
}

func (i *IssueView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	if err != nil {
		return nil, err
	}
	flow, err := endorser.NewFlow(ctx, IssueIntent)
	if err != nil {
		return nil, err
	}

	var amount states.Amount
	var lender, notary states.Party
	if err := flow.Do(endorser.Preparing, func() (err error) {
		if amount, err = parseAmount(i.Amount); err != nil {
			return err
		}
		if lender, err = s.party("lender", i.Lender); err != nil {
			return err
		}
		notary, err = s.notary()
		return err
	}); err != nil {
		return nil, err
	}

	var tx *ledger.Transaction
	if err := flow.Do(endorser.Building, func() (err error) {
		borrower := s.identities.Me()
		if s.anonymous(i.Anonymous) && !lender.Equal(borrower) {
			if borrower, lender, err = endorser.SwapIdentities(ctx, IssueIntent, lender); err != nil {
				return err
			}
		}
		tx, err = s.builder.Issue(notary, amount, lender, borrower)
		return err
	}); err != nil {
		return nil, err
	}
	linearID := tx.OutputObligations()[0].LinearID
	flow.SetLinearID(linearID)

	stx, err := agree(ctx, flow, s, IssueIntent, tx, endorser.MyKeys(s.identities, tx), false)
	if err != nil {
		return nil, err
	}
	return resultOf(stx, linearID), nil
}

type IssueViewFactory struct{}

func (f *IssueViewFactory) NewView(in []byte) (view.View, error) {
	v := &IssueView{Issue: &Issue{}}
	if err := json.Unmarshal(in, v.Issue); err != nil {
		return nil, errors.Wrap(err, "failed unmarshalling issue input")
	}
	return v, nil
}
