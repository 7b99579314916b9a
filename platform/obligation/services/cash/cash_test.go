/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cash

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils/errors"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/contract"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/identity"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice  = states.Party{Name: "alice", Identity: view.Identity("alice")}
	bob    = states.Party{Name: "bob", Identity: view.Identity("bob")}
	bank   = states.Party{Name: "bank", Identity: view.Identity("bank")}
	notary = states.Party{Name: "notary", Identity: view.Identity("notary")}
	anon   = states.Party{Identity: view.Identity("anon")}
)

type coins []ledger.StateAndRef

func (c coins) UnconsumedCash(_ context.Context, token string) ([]ledger.StateAndRef, error) {
	var res []ledger.StateAndRef
	for _, s := range c {
		if token == "" || s.State.Cash.Amount.Token == token {
			res = append(res, s)
		}
	}
	return res, nil
}

type me struct{}

func (me) Me() states.Party { return alice }

func (me) FreshAnonymousIdentity() (states.Party, *identity.Certificate, error) {
	return anon, &identity.Certificate{WellKnown: alice, Anonymous: anon.Identity}, nil
}

func coin(i int, quantity int64, token string, issuer states.Party) ledger.StateAndRef {
	return ledger.StateAndRef{
		Ref:   ledger.StateRef{TxID: fmt.Sprintf("tx%d", i), Index: 0},
		State: ledger.NewCashState(states.Cash{Amount: states.NewAmount(quantity, token), Issuer: issuer, Owner: alice}),
	}
}

func TestBalances(t *testing.T) {
	w := NewWallet(coins{
		coin(0, 500, "GBP", alice),
		coin(1, 1000, "GBP", bank),
		coin(2, 700, "USD", alice),
	}, me{})

	b, err := w.Balance(context.Background(), "GBP")
	require.NoError(t, err)
	assert.Equal(t, states.NewAmount(1500, "GBP"), b)

	b, err = w.Balance(context.Background(), "EUR")
	require.NoError(t, err)
	assert.True(t, b.IsZero())

	all, err := w.Balances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []states.Amount{states.NewAmount(1500, "GBP"), states.NewAmount(700, "USD")}, all)
}

func TestGenerateSpend(t *testing.T) {
	ctx := context.Background()

	t.Run("single coin with change", func(t *testing.T) {
		w := NewWallet(coins{coin(0, 1500, "GBP", alice)}, me{})
		tb := ledger.NewTransactionBuilder(notary)
		keys, err := w.GenerateSpend(ctx, tb, states.NewAmount(500, "GBP"), bob, false)
		require.NoError(t, err)
		assert.Equal(t, view.Identities{alice.Identity}, keys)

		tx, err := tb.ToTransaction()
		require.NoError(t, err)
		require.Len(t, tx.Inputs, 1)
		assert.Equal(t, []states.Cash{
			{Amount: states.NewAmount(500, "GBP"), Issuer: alice, Owner: bob},
			{Amount: states.NewAmount(1000, "GBP"), Issuer: alice, Owner: alice},
		}, tx.OutputCash())
		assert.NoError(t, contract.VerifyCash(tx))
	})

	t.Run("exact amount leaves no change", func(t *testing.T) {
		w := NewWallet(coins{coin(0, 300, "GBP", alice), coin(1, 200, "GBP", alice), coin(2, 900, "GBP", alice)}, me{})
		tb := ledger.NewTransactionBuilder(notary)
		_, err := w.GenerateSpend(ctx, tb, states.NewAmount(500, "GBP"), bob, true)
		require.NoError(t, err)

		tx, err := tb.ToTransaction()
		require.NoError(t, err)
		assert.Len(t, tx.Inputs, 2)
		assert.Equal(t, []states.Cash{{Amount: states.NewAmount(500, "GBP"), Issuer: alice, Owner: bob}}, tx.OutputCash())
		assert.NoError(t, contract.VerifyCash(tx))
	})

	t.Run("several issuers", func(t *testing.T) {
		w := NewWallet(coins{coin(0, 300, "GBP", bank), coin(1, 400, "GBP", alice)}, me{})
		tb := ledger.NewTransactionBuilder(notary)
		_, err := w.GenerateSpend(ctx, tb, states.NewAmount(500, "GBP"), bob, true)
		require.NoError(t, err)

		tx, err := tb.ToTransaction()
		require.NoError(t, err)
		assert.Equal(t, []states.Cash{
			{Amount: states.NewAmount(300, "GBP"), Issuer: bank, Owner: bob},
			{Amount: states.NewAmount(200, "GBP"), Issuer: alice, Owner: bob},
			{Amount: states.NewAmount(200, "GBP"), Issuer: alice, Owner: anon},
		}, tx.OutputCash())
		assert.NoError(t, contract.VerifyCash(tx))
	})

	t.Run("other tokens are ignored", func(t *testing.T) {
		w := NewWallet(coins{coin(0, 300, "USD", alice), coin(1, 100, "GBP", alice)}, me{})
		tb := ledger.NewTransactionBuilder(notary)
		_, err := w.GenerateSpend(ctx, tb, states.NewAmount(200, "GBP"), bob, false)
		assert.True(t, errors.HasCause(err, ErrInsufficientBalance))
		assert.Empty(t, tb.Inputs())
	})

	t.Run("non positive amount", func(t *testing.T) {
		w := NewWallet(coins{coin(0, 300, "GBP", alice)}, me{})
		_, err := w.GenerateSpend(ctx, ledger.NewTransactionBuilder(notary), states.ZeroOf("GBP"), bob, false)
		assert.Error(t, err)
	})
}

func TestGenerateIssue(t *testing.T) {
	w := NewWallet(coins{}, me{})
	tb := ledger.NewTransactionBuilder(notary)
	require.NoError(t, w.GenerateIssue(tb, states.NewAmount(1000, "GBP"), alice))
	tx, err := tb.ToTransaction()
	require.NoError(t, err)
	assert.NoError(t, contract.VerifyCash(tx))

	assert.Error(t, w.GenerateIssue(ledger.NewTransactionBuilder(notary), states.NewAmount(-1, "GBP"), alice))
}
