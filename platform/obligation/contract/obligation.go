/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contract

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

// Resolver maps a possibly pseudonymous party to the well-known party owning it
type Resolver interface {
	WellKnownPartyFromAnonymous(p states.Party) (states.Party, error)
}

// Verify checks tx against the obligation rules.
// It is a pure function of tx and the resolver: every node reaches the same verdict.
func Verify(tx *ledger.Transaction, resolver Resolver) error {
	commands := tx.CommandsOf(ledger.ObligationContract)
	if len(commands) != 1 {
		return ErrUnrecognisedCommand
	}
	command := commands[0]

	var err error
	switch command.Type {
	case ledger.Issue:
		err = verifyIssue(tx, command, resolver)
	case ledger.Transfer:
		err = verifyTransfer(tx, command, resolver)
	case ledger.Settle:
		err = verifySettle(tx, command, resolver)
	default:
		return ErrUnrecognisedCommand
	}
	if err != nil {
		return err
	}

	for _, o := range tx.OutputObligations() {
		if err := o.Validate(); err != nil {
			return errors.WithMessage(ErrInvalidObligation, err.Error())
		}
	}
	return nil
}

func verifyIssue(tx *ledger.Transaction, command ledger.Command, resolver Resolver) error {
	if len(tx.Inputs) != 0 {
		return ErrIssueConsumesInputs
	}
	outputs := tx.OutputObligations()
	if len(tx.Outputs) != 1 || len(outputs) != 1 {
		return ErrIssueOutputCount
	}
	out := outputs[0]
	if !out.Amount.IsPositive() {
		return ErrIssueNonPositiveAmount
	}
	if out.Lender.Equal(out.Borrower) || resolve(resolver, out.Lender).Equal(resolve(resolver, out.Borrower)) {
		return ErrIssueSameParty
	}
	if !command.Signers.SameSet(out.ParticipantKeys()) {
		return ErrIssueSigners
	}
	return nil
}

func verifyTransfer(tx *ledger.Transaction, command ledger.Command, resolver Resolver) error {
	inputs := tx.InputObligations()
	if len(tx.Inputs) != 1 || len(inputs) != 1 {
		return ErrTransferInputCount
	}
	outputs := tx.OutputObligations()
	if len(tx.Outputs) != 1 || len(outputs) != 1 {
		return ErrTransferOutputCount
	}
	in, out := inputs[0], outputs[0]
	if !in.WithoutLender().Equal(out.WithoutLender()) {
		return ErrTransferOnlyLender
	}
	if in.Lender.Equal(out.Lender) || resolve(resolver, in.Lender).Equal(resolve(resolver, out.Lender)) {
		return ErrTransferLenderUnchanged
	}
	expected := append(append(view.Identities{}, in.ParticipantKeys()...), out.ParticipantKeys()...)
	if !command.Signers.SameSet(expected) {
		return ErrTransferSigners
	}
	return nil
}

func verifySettle(tx *ledger.Transaction, command ledger.Command, resolver Resolver) error {
	inputs := tx.InputObligations()
	if len(inputs) != 1 {
		return ErrSettleInputCount
	}
	in := inputs[0]

	cash := tx.OutputCash()
	if len(cash) == 0 {
		return ErrSettleNoCash
	}
	// only cash in the obligation's token counts towards the debt
	lender := resolve(resolver, in.Lender)
	var toLender []states.Amount
	for _, c := range cash {
		if c.Amount.Token == in.Amount.Token && resolve(resolver, c.Owner).Equal(lender) {
			toLender = append(toLender, c.WithoutIssuer())
		}
	}
	if len(toLender) == 0 {
		return ErrSettleNoCashToLender
	}
	settled, err := states.Sum(in.Amount.Token, toLender...)
	if err != nil {
		// an int64 overflow is beyond any outstanding amount
		return errors.WithMessage(ErrSettleOverpaid, err.Error())
	}
	outstanding, err := in.Outstanding()
	if err != nil {
		return errors.WithMessage(ErrInvalidObligation, err.Error())
	}
	if settled.Quantity > outstanding.Quantity {
		return ErrSettleOverpaid
	}

	outputs := tx.OutputObligations()
	if settled.Quantity == outstanding.Quantity {
		if len(outputs) != 0 {
			return ErrSettleUnexpectedOutput
		}
	} else {
		if len(outputs) != 1 {
			return ErrSettleOutputCount
		}
		out := outputs[0]
		switch {
		case out.Amount != in.Amount:
			return ErrSettleAmountChanged
		case !out.Borrower.Equal(in.Borrower):
			return ErrSettleBorrowerChanged
		case !out.Lender.Equal(in.Lender):
			return ErrSettleLenderChanged
		case out.LinearID != in.LinearID:
			return ErrSettleLinearIDChanged
		}
		expected, err := in.Paid.Plus(settled)
		if err != nil || out.Paid != expected {
			return ErrSettlePaidIncorrect
		}
	}

	if !command.Signers.SameSet(in.ParticipantKeys()) {
		return ErrSettleSigners
	}
	return nil
}

// resolve falls back to the party itself when it cannot be resolved
func resolve(resolver Resolver, p states.Party) states.Party {
	if resolver == nil {
		return p
	}
	wk, err := resolver.WellKnownPartyFromAnonymous(p)
	if err != nil {
		return p
	}
	return wk
}
