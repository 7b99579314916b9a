/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contract

import (
	"math"
	"testing"

	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

var (
	alice   = states.Party{Name: "alice", Identity: view.Identity("alice")}
	bob     = states.Party{Name: "bob", Identity: view.Identity("bob")}
	charlie = states.Party{Name: "charlie", Identity: view.Identity("charlie")}
	// bob's one-time keys
	bobAnon  = states.Party{Identity: view.Identity("bob-anon")}
	bobAnon2 = states.Party{Identity: view.Identity("bob-anon-2")}
	notary   = states.Party{Name: "notary", Identity: view.Identity("notary")}
)

type resolver map[string]states.Party

func (r resolver) WellKnownPartyFromAnonymous(p states.Party) (states.Party, error) {
	if !p.IsAnonymous() {
		return p, nil
	}
	wk, ok := r[string(p.Identity)]
	if !ok {
		return states.Party{}, errors.New("unknown")
	}
	return wk, nil
}

var testResolver = resolver{string(bobAnon.Identity): bob, string(bobAnon2.Identity): bob}

func gbp(q int64) states.Amount {
	return states.NewAmount(q, "GBP")
}

func keys(ps ...states.Party) view.Identities {
	return states.Parties(ps).Identities()
}

func tx(inputs []ledger.TransactionState, outputs []ledger.TransactionState, commands ...ledger.Command) *ledger.Transaction {
	t := &ledger.Transaction{Notary: notary, Outputs: outputs, Commands: commands}
	for i, in := range inputs {
		t.Inputs = append(t.Inputs, ledger.StateAndRef{Ref: ledger.StateRef{TxID: "prev", Index: i}, State: in})
	}
	return t
}

func cmd(t ledger.CommandType, signers ...states.Party) ledger.Command {
	return ledger.Command{Contract: ledger.ObligationContract, Type: t, Signers: keys(signers...)}
}

func cashCmd(t ledger.CommandType, signers ...states.Party) ledger.Command {
	return ledger.Command{Contract: ledger.CashContract, Type: t, Signers: keys(signers...)}
}

func obl(o states.Obligation) ledger.TransactionState {
	return ledger.NewObligationState(o)
}

func cash(q int64, token string, issuer, owner states.Party) ledger.TransactionState {
	return ledger.NewCashState(states.Cash{Amount: states.NewAmount(q, token), Issuer: issuer, Owner: owner})
}

func TestIssue(t *testing.T) {
	o := states.NewObligation(gbp(100000), alice, bob)
	neg := o
	neg.Amount = gbp(-1)
	neg.Paid = gbp(0)
	zero := o
	zero.Amount = gbp(0)
	same := states.NewObligation(gbp(1), bob, bobAnon)

	for _, tc := range []struct {
		name string
		tx   *ledger.Transaction
		err  error
	}{
		{"ok", tx(nil, []ledger.TransactionState{obl(o)}, cmd(ledger.Issue, alice, bob)), nil},
		{"inputs", tx([]ledger.TransactionState{obl(o)}, []ledger.TransactionState{obl(o)}, cmd(ledger.Issue, alice, bob)), ErrIssueConsumesInputs},
		{"two outputs", tx(nil, []ledger.TransactionState{obl(o), obl(o)}, cmd(ledger.Issue, alice, bob)), ErrIssueOutputCount},
		{"no outputs", tx(nil, nil, cmd(ledger.Issue, alice, bob)), ErrIssueOutputCount},
		{"zero", tx(nil, []ledger.TransactionState{obl(zero)}, cmd(ledger.Issue, alice, bob)), ErrIssueNonPositiveAmount},
		{"negative", tx(nil, []ledger.TransactionState{obl(neg)}, cmd(ledger.Issue, alice, bob)), ErrIssueNonPositiveAmount},
		{"same party", tx(nil, []ledger.TransactionState{obl(same)}, cmd(ledger.Issue, bob, bobAnon)), ErrIssueSameParty},
		{"missing signer", tx(nil, []ledger.TransactionState{obl(o)}, cmd(ledger.Issue, alice)), ErrIssueSigners},
		{"extra signer", tx(nil, []ledger.TransactionState{obl(o)}, cmd(ledger.Issue, alice, bob, charlie)), ErrIssueSigners},
		{"no command", tx(nil, []ledger.TransactionState{obl(o)}), ErrUnrecognisedCommand},
		{"two commands", tx(nil, []ledger.TransactionState{obl(o)}, cmd(ledger.Issue, alice, bob), cmd(ledger.Transfer, alice, bob)), ErrUnrecognisedCommand},
		{"unknown command", tx(nil, []ledger.TransactionState{obl(o)}, cmd("Forgive", alice, bob)), ErrUnrecognisedCommand},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Verify(tc.tx, testResolver)
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, tc.err.Error(), err.Error())
		})
	}
}

func TestTransfer(t *testing.T) {
	in := states.NewObligation(gbp(100000), alice, bob)
	out := in.WithNewLender(charlie)
	changed := out
	changed.Amount = gbp(99999)

	for _, tc := range []struct {
		name string
		tx   *ledger.Transaction
		err  error
	}{
		{"ok", tx([]ledger.TransactionState{obl(in)}, []ledger.TransactionState{obl(out)}, cmd(ledger.Transfer, alice, bob, charlie)), nil},
		{"no input", tx(nil, []ledger.TransactionState{obl(out)}, cmd(ledger.Transfer, alice, bob, charlie)), ErrTransferInputCount},
		{"two inputs", tx([]ledger.TransactionState{obl(in), obl(in)}, []ledger.TransactionState{obl(out)}, cmd(ledger.Transfer, alice, bob, charlie)), ErrTransferInputCount},
		{"two outputs", tx([]ledger.TransactionState{obl(in)}, []ledger.TransactionState{obl(out), obl(out)}, cmd(ledger.Transfer, alice, bob, charlie)), ErrTransferOutputCount},
		{"amount changed", tx([]ledger.TransactionState{obl(in)}, []ledger.TransactionState{obl(changed)}, cmd(ledger.Transfer, alice, bob, charlie)), ErrTransferOnlyLender},
		{"same lender", tx([]ledger.TransactionState{obl(in)}, []ledger.TransactionState{obl(in)}, cmd(ledger.Transfer, alice, bob)), ErrTransferLenderUnchanged},
		{"missing new lender", tx([]ledger.TransactionState{obl(in)}, []ledger.TransactionState{obl(out)}, cmd(ledger.Transfer, alice, bob)), ErrTransferSigners},
		{"extra signer", tx([]ledger.TransactionState{obl(in)}, []ledger.TransactionState{obl(out)}, cmd(ledger.Transfer, alice, bob, charlie, notary)), ErrTransferSigners},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Verify(tc.tx, testResolver)
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestSettle(t *testing.T) {
	in := states.NewObligation(gbp(100000), alice, bob)
	half, _ := in.Pay(gbp(50000))
	wrongPaid, _ := in.Pay(gbp(40000))
	otherLender := half.WithNewLender(charlie)
	otherID := half
	otherID.LinearID = "other"
	otherAmount := half
	otherAmount.Amount = gbp(200000)

	cashIn := cash(150000, "GBP", bob, bob)
	full := []ledger.TransactionState{cash(100000, "GBP", bob, alice), cash(50000, "GBP", bob, bobAnon)}
	partial := []ledger.TransactionState{obl(half), cash(50000, "GBP", bob, alice), cash(100000, "GBP", bob, bobAnon)}
	move := cashCmd(ledger.Move, bob)
	settle := cmd(ledger.Settle, alice, bob)

	for _, tc := range []struct {
		name    string
		inputs  []ledger.TransactionState
		outputs []ledger.TransactionState
		command ledger.Command
		err     error
	}{
		{"full", []ledger.TransactionState{obl(in), cashIn}, full, settle, nil},
		{"partial", []ledger.TransactionState{obl(in), cashIn}, partial, settle, nil},
		{"no input obligation", []ledger.TransactionState{cashIn}, full, settle, ErrSettleInputCount},
		{"no cash", []ledger.TransactionState{obl(in)}, []ledger.TransactionState{obl(half)}, settle, ErrSettleNoCash},
		{"cash elsewhere", []ledger.TransactionState{obl(in), cashIn}, []ledger.TransactionState{cash(150000, "GBP", bob, charlie)}, settle, ErrSettleNoCashToLender},
		{"wrong token", []ledger.TransactionState{obl(in), cash(100000, "USD", bob, bob)}, []ledger.TransactionState{cash(100000, "USD", bob, alice)}, settle, ErrSettleNoCashToLender},
		{"overpaid", []ledger.TransactionState{obl(in), cashIn}, []ledger.TransactionState{cash(150000, "GBP", bob, alice)}, settle, ErrSettleOverpaid},
		{"full with output", []ledger.TransactionState{obl(in), cashIn}, append([]ledger.TransactionState{obl(half)}, full...), settle, ErrSettleUnexpectedOutput},
		{"partial without output", []ledger.TransactionState{obl(in), cashIn}, partial[1:], settle, ErrSettleOutputCount},
		{"amount changed", []ledger.TransactionState{obl(in), cashIn}, append([]ledger.TransactionState{obl(otherAmount)}, partial[1:]...), settle, ErrSettleAmountChanged},
		{"lender changed", []ledger.TransactionState{obl(in), cashIn}, append([]ledger.TransactionState{obl(otherLender)}, partial[1:]...), settle, ErrSettleLenderChanged},
		{"linear id changed", []ledger.TransactionState{obl(in), cashIn}, append([]ledger.TransactionState{obl(otherID)}, partial[1:]...), settle, ErrSettleLinearIDChanged},
		{"paid wrong", []ledger.TransactionState{obl(in), cashIn}, append([]ledger.TransactionState{obl(wrongPaid)}, partial[1:]...), settle, ErrSettlePaidIncorrect},
		{"missing lender signature", []ledger.TransactionState{obl(in), cashIn}, full, cmd(ledger.Settle, bob), ErrSettleSigners},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifyTransaction(tx(tc.inputs, tc.outputs, tc.command, move), testResolver)
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestTransferResolvesLender(t *testing.T) {
	in := states.NewObligation(gbp(1000), bobAnon, alice)
	for _, newLender := range []states.Party{bobAnon2, bob} {
		out := in.WithNewLender(newLender)
		transfer := tx([]ledger.TransactionState{obl(in)}, []ledger.TransactionState{obl(out)}, cmd(ledger.Transfer, bobAnon, alice, newLender))
		assert.ErrorIs(t, Verify(transfer, testResolver), ErrTransferLenderUnchanged, "transfer to [%s]", newLender)
	}

	// without a resolver the keys are different lenders
	out := in.WithNewLender(bobAnon2)
	transfer := tx([]ledger.TransactionState{obl(in)}, []ledger.TransactionState{obl(out)}, cmd(ledger.Transfer, bobAnon, alice, bobAnon2))
	assert.NoError(t, Verify(transfer, resolver{}))

	out = in.WithNewLender(charlie)
	transfer = tx([]ledger.TransactionState{obl(in)}, []ledger.TransactionState{obl(out)}, cmd(ledger.Transfer, bobAnon, alice, charlie))
	assert.NoError(t, Verify(transfer, testResolver))
}

func TestSettleResolvesLender(t *testing.T) {
	// the obligation is owed to bob's one-time key, cash is paid to well-known bob
	in := states.NewObligation(gbp(1000), bobAnon, alice)
	settle := tx(
		[]ledger.TransactionState{obl(in), cash(1000, "GBP", alice, alice)},
		[]ledger.TransactionState{cash(1000, "GBP", alice, bob)},
		cmd(ledger.Settle, bobAnon, alice),
		cashCmd(ledger.Move, alice),
	)
	assert.NoError(t, VerifyTransaction(settle, testResolver))
	assert.ErrorIs(t, VerifyTransaction(settle, resolver{}), ErrSettleNoCashToLender)
	assert.ErrorIs(t, VerifyTransaction(settle, nil), ErrSettleNoCashToLender)
}

func TestSettleSumOverflow(t *testing.T) {
	in := states.NewObligation(gbp(1000), alice, bob)
	// the three payments wrap around to exactly 1000 in int64
	payments := []ledger.TransactionState{
		cash(math.MaxInt64, "GBP", bob, alice),
		cash(math.MaxInt64, "GBP", bob, alice),
		cash(1002, "GBP", bob, alice),
	}
	inputs := append([]ledger.TransactionState{obl(in)}, cash(math.MaxInt64, "GBP", bob, bob), cash(math.MaxInt64, "GBP", bob, bob), cash(1002, "GBP", bob, bob))
	settle := tx(inputs, payments, cmd(ledger.Settle, alice, bob), cashCmd(ledger.Move, bob))
	assert.ErrorIs(t, VerifyTransaction(settle, testResolver), ErrSettleOverpaid)
}

func TestCash(t *testing.T) {
	for _, tc := range []struct {
		name string
		tx   *ledger.Transaction
		err  error
	}{
		{"issue", tx(nil, []ledger.TransactionState{cash(100, "GBP", bob, bob)}, cashCmd(ledger.Issue, bob)), nil},
		{"issue not signed by issuer", tx(nil, []ledger.TransactionState{cash(100, "GBP", bob, alice)}, cashCmd(ledger.Issue, alice)), ErrCashIssuerSigner},
		{"issue with inputs", tx([]ledger.TransactionState{cash(100, "GBP", bob, bob)}, []ledger.TransactionState{cash(100, "GBP", bob, bob)}, cashCmd(ledger.Issue, bob)), ErrCashIssueConsumesInputs},
		{"zero output", tx(nil, []ledger.TransactionState{cash(0, "GBP", bob, bob)}, cashCmd(ledger.Issue, bob)), ErrCashNonPositive},
		{"move", tx([]ledger.TransactionState{cash(100, "GBP", bob, bob)}, []ledger.TransactionState{cash(60, "GBP", bob, alice), cash(40, "GBP", bob, bobAnon)}, cashCmd(ledger.Move, bob)), nil},
		{"move without inputs", tx(nil, []ledger.TransactionState{cash(60, "GBP", bob, alice)}, cashCmd(ledger.Move, bob)), ErrCashMoveNoInputs},
		{"move creates value", tx([]ledger.TransactionState{cash(100, "GBP", bob, bob)}, []ledger.TransactionState{cash(101, "GBP", bob, alice)}, cashCmd(ledger.Move, bob)), ErrCashNotConserved},
		{"move changes issuer", tx([]ledger.TransactionState{cash(100, "GBP", bob, bob)}, []ledger.TransactionState{cash(100, "GBP", alice, alice)}, cashCmd(ledger.Move, bob)), ErrCashNotConserved},
		{"move wraps around", tx([]ledger.TransactionState{cash(100, "GBP", bob, bob)}, []ledger.TransactionState{cash(math.MaxInt64, "GBP", bob, alice), cash(math.MaxInt64, "GBP", bob, alice), cash(102, "GBP", bob, alice)}, cashCmd(ledger.Move, bob)), ErrCashNotConserved},
		{"move not signed by owner", tx([]ledger.TransactionState{cash(100, "GBP", bob, bob)}, []ledger.TransactionState{cash(100, "GBP", bob, alice)}, cashCmd(ledger.Move, alice)), ErrCashOwnerSigners},
		{"no cash command", tx(nil, []ledger.TransactionState{cash(100, "GBP", bob, bob)}), ErrCashCommand},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifyTransaction(tc.tx, nil)
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestVerifyTransaction(t *testing.T) {
	assert.ErrorIs(t, VerifyTransaction(tx(nil, nil), nil), ErrUnrecognisedCommand)
	assert.Error(t, VerifyTransaction(nil, nil))
	gold := ledger.Command{Contract: "gold", Type: ledger.Issue}
	assert.ErrorIs(t, VerifyTransaction(tx(nil, nil, gold), nil), ErrUnrecognisedCommand)

	o := states.NewObligation(gbp(100000), alice, bob)
	v := NewVerifier(testResolver)
	assert.NoError(t, v.Verify(tx(nil, []ledger.TransactionState{obl(o)}, cmd(ledger.Issue, alice, bob))))

	broken := o
	broken.LinearID = ""
	err := v.Verify(tx(nil, []ledger.TransactionState{obl(broken)}, cmd(ledger.Issue, alice, bob)))
	assert.ErrorIs(t, err, ErrInvalidObligation)

	var r *Rejection
	assert.True(t, errors.As(err, &r))
	assert.Equal(t, "InvalidObligation", r.Name)
}
