/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package builder

import (
	"context"
	"fmt"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils/errors"
	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/vault"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
)

var logger = logging.MustGetLogger("obligation.builder")

// PreconditionError is returned when an intent cannot be built at all.
// No party has been contacted when it is returned.
type PreconditionError struct {
	Reason string
	Cause  error
}

func (e *PreconditionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Reason, e.Cause)
	}
	return e.Reason
}

func (e *PreconditionError) Unwrap() error {
	return e.Cause
}

func precondition(cause error, format string, args ...any) error {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...), Cause: cause}
}

type Identities interface {
	Me() states.Party
	WellKnownPartyFromAnonymous(p states.Party) (states.Party, error)
}

type Vault interface {
	FindCurrentObligation(ctx context.Context, linearID string) (*ledger.StateAndRef, error)
}

type Wallet interface {
	Balance(ctx context.Context, token string) (states.Amount, error)
	GenerateSpend(ctx context.Context, tb *ledger.TransactionBuilder, amount states.Amount, payee states.Party, anonymousChange bool) (view.Identities, error)
}

// Builder assembles the transaction of each intent.
// Every transaction it returns passed the verifier.
type Builder struct {
	identities Identities
	vault      Vault
	wallet     Wallet
	verifier   ledger.Verifier
}

func New(identities Identities, vault Vault, wallet Wallet, verifier ledger.Verifier) *Builder {
	return &Builder{identities: identities, vault: vault, wallet: wallet, verifier: verifier}
}

// Current returns the unconsumed version of the obligation with the passed linear id
func (b *Builder) Current(ctx context.Context, linearID string) (*ledger.StateAndRef, error) {
	in, err := b.vault.FindCurrentObligation(ctx, linearID)
	if err != nil {
		if errors.HasCause(err, vault.ErrNotFound) {
			return nil, precondition(err, "Obligation with id %s not found.", linearID)
		}
		return nil, err
	}
	return in, nil
}

// Issue builds a new obligation of amount from borrower to lender
func (b *Builder) Issue(notary states.Party, amount states.Amount, lender, borrower states.Party) (*ledger.Transaction, error) {
	o := states.NewObligation(amount, lender, borrower)
	tb := ledger.NewTransactionBuilder(notary)
	tb.AddOutput(ledger.NewObligationState(o))
	tb.AddCommand(ledger.Command{Contract: ledger.ObligationContract, Type: ledger.Issue, Signers: o.ParticipantKeys()})
	logger.Debugf("issue [%s]", o)
	return tb.Verify(b.verifier)
}

// CheckLender fails unless this node is the lender of o
func (b *Builder) CheckLender(o states.Obligation) error {
	lender, err := b.identities.WellKnownPartyFromAnonymous(o.Lender)
	if err != nil || !lender.Equal(b.identities.Me()) {
		return precondition(err, "Obligation transfer can only be initiated by the lender.")
	}
	return nil
}

// CheckBorrower fails unless this node is the borrower of o
func (b *Builder) CheckBorrower(o states.Obligation) error {
	borrower, err := b.identities.WellKnownPartyFromAnonymous(o.Borrower)
	if err != nil || !borrower.Equal(b.identities.Me()) {
		return precondition(err, "Obligation settlement flow must be initiated by the borrower.")
	}
	return nil
}

// Transfer moves the obligation in input to newLender
func (b *Builder) Transfer(notary states.Party, in *ledger.StateAndRef, newLender states.Party) (*ledger.Transaction, error) {
	o := in.State.Obligation
	if o == nil {
		return nil, precondition(nil, "[%s] is not an obligation", in.Ref)
	}
	if err := b.CheckLender(*o); err != nil {
		return nil, err
	}
	out := o.WithNewLender(newLender)

	tb := ledger.NewTransactionBuilder(notary)
	if err := tb.AddInput(*in); err != nil {
		return nil, err
	}
	tb.AddOutput(ledger.NewObligationState(out))
	signers := append(o.ParticipantKeys(), out.Lender.Identity)
	tb.AddCommand(ledger.Command{Contract: ledger.ObligationContract, Type: ledger.Transfer, Signers: signers.Distinct()})
	logger.Debugf("transfer [%s] to [%s]", o.LinearID, newLender)
	return tb.Verify(b.verifier)
}

// Settle pays amount of the obligation in input to payee, the lender or one of its anonymous identities.
// It returns the keys of this node that must sign, cash keys included.
func (b *Builder) Settle(ctx context.Context, notary states.Party, in *ledger.StateAndRef, amount states.Amount, payee states.Party, anonymousChange bool) (*ledger.Transaction, view.Identities, error) {
	o := in.State.Obligation
	if o == nil {
		return nil, nil, precondition(nil, "[%s] is not an obligation", in.Ref)
	}
	if err := b.CheckBorrower(*o); err != nil {
		return nil, nil, err
	}
	if err := b.CheckFunds(ctx, *o, amount); err != nil {
		return nil, nil, err
	}

	tb := ledger.NewTransactionBuilder(notary)
	if err := tb.AddInput(*in); err != nil {
		return nil, nil, err
	}
	cashKeys, err := b.wallet.GenerateSpend(ctx, tb, amount, payee, anonymousChange)
	if err != nil {
		return nil, nil, precondition(err, "failed spending %s", amount)
	}
	next, err := o.Pay(amount)
	if err != nil {
		return nil, nil, err
	}
	if next.Paid.Quantity < next.Amount.Quantity {
		tb.AddOutput(ledger.NewObligationState(next))
	}
	tb.AddCommand(ledger.Command{Contract: ledger.ObligationContract, Type: ledger.Settle, Signers: o.ParticipantKeys()})
	logger.Debugf("settle %s of [%s]", amount, o.LinearID)

	tx, err := tb.Verify(b.verifier)
	if err != nil {
		return nil, nil, err
	}
	return tx, append(cashKeys, o.Borrower.Identity).Distinct(), nil
}

// CheckFunds fails when this node cannot pay amount against o
func (b *Builder) CheckFunds(ctx context.Context, o states.Obligation, amount states.Amount) error {
	if amount.Token != o.Amount.Token {
		return precondition(nil, "Obligation is in %s, cannot settle in %s.", o.Amount.Token, amount.Token)
	}
	if !amount.IsPositive() {
		return precondition(nil, "Cannot settle %s.", amount)
	}
	balance, err := b.wallet.Balance(ctx, amount.Token)
	if err != nil {
		return err
	}
	outstanding, err := o.Outstanding()
	if err != nil {
		return err
	}
	switch {
	case !balance.IsPositive():
		return precondition(nil, "Borrower has no %s to settle.", amount.Token)
	case balance.Quantity < amount.Quantity:
		return precondition(nil, "Borrower has only %s but needs %s to settle.", balance, amount)
	case outstanding.Quantity < amount.Quantity:
		return precondition(nil, "There's only %s but you pledged %s.", outstanding, amount)
	}
	return nil
}
