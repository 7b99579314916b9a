/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cash

import (
	"context"
	"reflect"
	"sort"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/identity"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("obligation.cash")

// ErrInsufficientBalance is returned when the unconsumed cash does not cover a spend
var ErrInsufficientBalance = errors.New("insufficient balance")

type Vault interface {
	UnconsumedCash(ctx context.Context, token string) ([]ledger.StateAndRef, error)
}

type Identities interface {
	Me() states.Party
	FreshAnonymousIdentity() (states.Party, *identity.Certificate, error)
}

// Wallet spends and issues the cash owned by this node
type Wallet struct {
	vault      Vault
	identities Identities
}

func NewWallet(vault Vault, identities Identities) *Wallet {
	return &Wallet{vault: vault, identities: identities}
}

func GetWallet(sp view.ServiceProvider) (*Wallet, error) {
	s, err := sp.GetService(reflect.TypeOf((*Wallet)(nil)))
	if err != nil {
		return nil, errors.Wrap(err, "cannot get cash wallet")
	}
	return s.(*Wallet), nil
}

// Balance sums the unconsumed cash in token, regardless of the issuer
func (w *Wallet) Balance(ctx context.Context, token string) (states.Amount, error) {
	coins, err := w.vault.UnconsumedCash(ctx, token)
	if err != nil {
		return states.Amount{}, err
	}
	total := states.ZeroOf(token)
	for _, c := range coins {
		if total, err = total.Plus(c.State.Cash.WithoutIssuer()); err != nil {
			return states.Amount{}, err
		}
	}
	return total, nil
}

// Balances returns one amount per token, sorted by token
func (w *Wallet) Balances(ctx context.Context) ([]states.Amount, error) {
	coins, err := w.vault.UnconsumedCash(ctx, "")
	if err != nil {
		return nil, err
	}
	byToken := map[string]int64{}
	for _, c := range coins {
		byToken[c.State.Cash.Amount.Token] += c.State.Cash.Amount.Quantity
	}
	res := make([]states.Amount, 0, len(byToken))
	for token, q := range byToken {
		res = append(res, states.NewAmount(q, token))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Token < res[j].Token })
	return res, nil
}

// GenerateIssue adds cash issued by this node to owner
func (w *Wallet) GenerateIssue(tb *ledger.TransactionBuilder, amount states.Amount, owner states.Party) error {
	if !amount.IsPositive() {
		return errors.Errorf("cannot issue [%s]", amount)
	}
	me := w.identities.Me()
	tb.AddOutput(ledger.NewCashState(states.Cash{Amount: amount, Issuer: me, Owner: owner}))
	tb.AddCommand(ledger.Command{Contract: ledger.CashContract, Type: ledger.Issue, Signers: view.Identities{me.Identity}})
	return nil
}

// GenerateSpend pays amount to payee out of the unconsumed cash of this node.
// Coins are selected in vault order; per issuer, one output goes to the payee and one change output back to this node.
// It returns the keys that must sign for the consumed coins.
func (w *Wallet) GenerateSpend(ctx context.Context, tb *ledger.TransactionBuilder, amount states.Amount, payee states.Party, anonymousChange bool) (view.Identities, error) {
	if !amount.IsPositive() {
		return nil, errors.Errorf("cannot spend [%s]", amount)
	}
	coins, err := w.vault.UnconsumedCash(ctx, amount.Token)
	if err != nil {
		return nil, err
	}

	// select
	var selected []ledger.StateAndRef
	var gathered int64
	for _, c := range coins {
		if gathered >= amount.Quantity {
			break
		}
		selected = append(selected, c)
		gathered += c.State.Cash.Amount.Quantity
	}
	if gathered < amount.Quantity {
		return nil, errors.Wrapf(ErrInsufficientBalance, "has only %s but needs %s", states.NewAmount(gathered, amount.Token), amount)
	}

	changeOwner := w.identities.Me()
	if anonymousChange && gathered > amount.Quantity {
		if changeOwner, _, err = w.identities.FreshAnonymousIdentity(); err != nil {
			return nil, errors.WithMessage(err, "failed creating change identity")
		}
	}

	// group by issuer, preserving selection order
	var issuers []states.Party
	totals := map[string]int64{}
	var keys view.Identities
	for _, c := range selected {
		if err := tb.AddInput(c); err != nil {
			return nil, err
		}
		issuer := c.State.Cash.Issuer
		if _, ok := totals[issuer.Identity.UniqueID()]; !ok {
			issuers = append(issuers, issuer)
		}
		totals[issuer.Identity.UniqueID()] += c.State.Cash.Amount.Quantity
		keys = append(keys, c.State.Cash.Owner.Identity)
	}

	remaining := amount.Quantity
	for _, issuer := range issuers {
		total := totals[issuer.Identity.UniqueID()]
		pay := total
		if pay > remaining {
			pay = remaining
		}
		remaining -= pay
		if pay > 0 {
			tb.AddOutput(ledger.NewCashState(states.Cash{Amount: states.NewAmount(pay, amount.Token), Issuer: issuer, Owner: payee}))
		}
		if change := total - pay; change > 0 {
			tb.AddOutput(ledger.NewCashState(states.Cash{Amount: states.NewAmount(change, amount.Token), Issuer: issuer, Owner: changeOwner}))
		}
	}
	keys = keys.Distinct()
	tb.AddCommand(ledger.Command{Contract: ledger.CashContract, Type: ledger.Move, Signers: keys})
	logger.Debugf("spending %s to [%s] out of %d coins", amount, payee, len(selected))
	return keys, nil
}
