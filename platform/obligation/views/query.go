/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package views

import (
	"sort"

	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/assert"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
)

type queryFactory struct {
	v view.View
}

// query serves a stateless view for any input
func query(v view.View) view.Factory {
	return &queryFactory{v: v}
}

func (q *queryFactory) NewView([]byte) (view.View, error) {
	return q.v, nil
}

// MeView returns the name of this node
type MeView struct{}

func (m *MeView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	assert.NoError(err, "failed getting services")
	return map[string]string{"me": s.identities.Me().Name}, nil
}

// PeersView returns the names of the other parties, notaries excluded
type PeersView struct{}

func (p *PeersView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	assert.NoError(err, "failed getting services")
	var names []string
	for _, peer := range s.identities.NetworkMap().Peers(s.identities.Me().Identity) {
		names = append(names, peer.Name)
	}
	return map[string][]string{"peers": names}, nil
}

// ObligationInfo is an unconsumed obligation with its parties resolved to names where possible
type ObligationInfo struct {
	Ref        ledger.StateRef   `json:"ref"`
	Obligation states.Obligation `json:"obligation"`
	Lender     string            `json:"lender,omitempty"`
	Borrower   string            `json:"borrower,omitempty"`
}

// ObligationsView returns the unconsumed obligations this node is lender or borrower of
type ObligationsView struct{}

func (o *ObligationsView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	assert.NoError(err, "failed getting services")
	obligations, err := s.vault.Obligations(ctx.Context())
	if err != nil {
		return nil, err
	}
	res := make([]*ObligationInfo, 0, len(obligations))
	for _, sr := range obligations {
		info := &ObligationInfo{Ref: sr.Ref, Obligation: *sr.State.Obligation}
		if p, err := s.identities.WellKnownPartyFromAnonymous(info.Obligation.Lender); err == nil {
			info.Lender = p.Name
		}
		if p, err := s.identities.WellKnownPartyFromAnonymous(info.Obligation.Borrower); err == nil {
			info.Borrower = p.Name
		}
		res = append(res, info)
	}
	return res, nil
}

// CashView returns the unconsumed cash owned by this node
type CashView struct{}

func (c *CashView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	assert.NoError(err, "failed getting services")
	coins, err := s.vault.UnconsumedCash(ctx.Context(), "")
	if err != nil {
		return nil, err
	}
	res := make([]states.Cash, 0, len(coins))
	for _, sr := range coins {
		res = append(res, *sr.State.Cash)
	}
	return res, nil
}

// CashBalancesView returns the balance of this node per token
type CashBalancesView struct{}

func (c *CashBalancesView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	assert.NoError(err, "failed getting services")
	return s.wallet.Balances(ctx.Context())
}

// OwedPerCurrencyView sums, per token, the obligations this node is not the lender of
type OwedPerCurrencyView struct{}

func (c *OwedPerCurrencyView) Call(ctx view.Context) (interface{}, error) {
	s, err := getServices(ctx)
	assert.NoError(err, "failed getting services")
	obligations, err := s.vault.Obligations(ctx.Context())
	if err != nil {
		return nil, err
	}
	totals := map[string]states.Amount{}
	for _, sr := range obligations {
		o := sr.State.Obligation
		if s.identities.IsMine(o.Lender) {
			continue
		}
		total, ok := totals[o.Amount.Token]
		if !ok {
			total = states.ZeroOf(o.Amount.Token)
		}
		if totals[o.Amount.Token], err = total.Plus(o.Amount); err != nil {
			return nil, err
		}
	}
	res := make([]states.Amount, 0, len(totals))
	for _, a := range totals {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Token < res[j].Token })
	return res, nil
}
