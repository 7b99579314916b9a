/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package views

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/endorser"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/notary"
	view2 "github.com/hyperledger-labs/iou-smart-client/platform/view/services/view"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

type responderOptions struct {
	checks map[string][]endorser.AdditionalCheck
}

type ResponderOption func(*responderOptions)

// WithAdditionalChecks adds checks run by the responders of intent after the verification of a proposal
func WithAdditionalChecks(intent string, checks ...endorser.AdditionalCheck) ResponderOption {
	return func(o *responderOptions) {
		o.checks[intent] = append(o.checks[intent], checks...)
	}
}

// Responders returns the responder table of a party node
func Responders(opts ...ResponderOption) []view2.Binding {
	o := &responderOptions{checks: map[string][]endorser.AdditionalCheck{}}
	for _, opt := range opts {
		opt(o)
	}
	return []view2.Binding{
		{InitiatedBy: &IssueView{}, Responder: o.responder(IssueIntent, ledger.Issue)},
		{InitiatedBy: &TransferView{}, Responder: o.responder(TransferIntent, ledger.Transfer)},
		{InitiatedBy: &SettleView{}, Responder: o.responder(SettleIntent, ledger.Settle)},
		{InitiatedBy: endorser.BroadcastInitiator(), Responder: endorser.NewObserverView},
	}
}

// NotaryResponders returns the responder table of a notary node
func NotaryResponders() []view2.Binding {
	return []view2.Binding{
		{InitiatedBy: &notary.RequestView{}, Responder: func() view.View { return &notary.Responder{} }},
	}
}

// Factories binds the intent and query views to the ids they are initiated with
func Factories() map[string]view.Factory {
	return map[string]view.Factory{
		IssueIntent:         &IssueViewFactory{},
		TransferIntent:      &TransferViewFactory{},
		SettleIntent:        &SettleViewFactory{},
		SelfIssueCashIntent: &SelfIssueCashViewFactory{},
		"me":                query(&MeView{}),
		"peers":             query(&PeersView{}),
		"obligations":       query(&ObligationsView{}),
		"cash":              query(&CashView{}),
		"cash-balances":     query(&CashBalancesView{}),
		"owed-per-currency": query(&OwedPerCurrencyView{}),
	}
}

func (o *responderOptions) responder(intent string, command ledger.CommandType) view2.ResponderConstructor {
	checks := append([]endorser.AdditionalCheck{expectCommand(command)}, o.checks[intent]...)
	return func() view.View {
		return endorser.NewResponderView(intent, checks...)
	}
}

// expectCommand rejects proposals whose obligation command does not match the intent of the session
func expectCommand(command ledger.CommandType) endorser.AdditionalCheck {
	return func(_ view.Context, stx *ledger.SignedTransaction) error {
		for _, c := range stx.Tx.CommandsOf(ledger.ObligationContract) {
			if c.Type != command {
				return errors.Errorf("expected a [%s] command, got [%s]", command, c.Type)
			}
		}
		return nil
	}
}
