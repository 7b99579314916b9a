/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contract

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/shopspring/decimal"
)

// VerifyCash checks tx against the cash rules
func VerifyCash(tx *ledger.Transaction) error {
	commands := tx.CommandsOf(ledger.CashContract)
	if len(commands) != 1 {
		return ErrCashCommand
	}
	command := commands[0]

	inputs, outputs := tx.InputCash(), tx.OutputCash()
	if len(outputs) == 0 {
		return ErrCashNoOutputs
	}
	for _, c := range outputs {
		if !c.Amount.IsPositive() {
			return ErrCashNonPositive
		}
	}

	switch command.Type {
	case ledger.Issue:
		if len(inputs) != 0 {
			return ErrCashIssueConsumesInputs
		}
		for _, c := range outputs {
			if !command.Signers.Contains(c.Issuer.Identity) {
				return ErrCashIssuerSigner
			}
		}
	case ledger.Move:
		if len(inputs) == 0 {
			return ErrCashMoveNoInputs
		}
		if !conserved(inputs, outputs) {
			return ErrCashNotConserved
		}
		for _, c := range inputs {
			if !command.Signers.Contains(c.Owner.Identity) {
				return ErrCashOwnerSigners
			}
		}
	default:
		return ErrCashCommand
	}
	return nil
}

type issuedToken struct {
	token  string
	issuer string
}

// conserved compares the per issued token totals without int64 wrap-around
func conserved(inputs, outputs []states.Cash) bool {
	sums := map[issuedToken]decimal.Decimal{}
	for _, c := range inputs {
		k := issuedToken{token: c.Amount.Token, issuer: c.Issuer.Identity.UniqueID()}
		sums[k] = sums[k].Add(decimal.NewFromInt(c.Amount.Quantity))
	}
	for _, c := range outputs {
		k := issuedToken{token: c.Amount.Token, issuer: c.Issuer.Identity.UniqueID()}
		sums[k] = sums[k].Sub(decimal.NewFromInt(c.Amount.Quantity))
	}
	for _, v := range sums {
		if !v.IsZero() {
			return false
		}
	}
	return true
}
