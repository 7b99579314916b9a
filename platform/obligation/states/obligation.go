/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package states

import (
	"fmt"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

// Obligation records that the borrower owes amount to the lender, of which paid has been settled.
// Every version of the same obligation shares the LinearID.
// Versions are never modified: a transition consumes a version and produces its successor.
type Obligation struct {
	Amount   Amount `json:"amount"`
	Lender   Party  `json:"lender"`
	Borrower Party  `json:"borrower"`
	Paid     Amount `json:"paid"`
	LinearID string `json:"linear_id"`
}

// NewObligation returns a fresh obligation with nothing paid and a new linear id
func NewObligation(amount Amount, lender, borrower Party) Obligation {
	return Obligation{
		Amount:   amount,
		Lender:   lender,
		Borrower: borrower,
		Paid:     ZeroOf(amount.Token),
		LinearID: utils.GenerateUUID(),
	}
}

func (o Obligation) Participants() Parties {
	return Parties{o.Lender, o.Borrower}
}

// ParticipantKeys returns the owning keys of lender and borrower
func (o Obligation) ParticipantKeys() view.Identities {
	return o.Participants().Identities()
}

// Outstanding returns amount - paid
func (o Obligation) Outstanding() (Amount, error) {
	return o.Amount.Minus(o.Paid)
}

// Pay returns the next version with amount added to paid
func (o Obligation) Pay(amount Amount) (Obligation, error) {
	paid, err := o.Paid.Plus(amount)
	if err != nil {
		return Obligation{}, err
	}
	o.Paid = paid
	return o, nil
}

func (o Obligation) WithNewLender(lender Party) Obligation {
	o.Lender = lender
	return o
}

func (o Obligation) WithoutLender() Obligation {
	o.Lender = Party{}
	return o
}

// Equal compares every field, parties by owning key
func (o Obligation) Equal(other Obligation) bool {
	return o.Amount == other.Amount &&
		o.Paid == other.Paid &&
		o.LinearID == other.LinearID &&
		o.Lender.Equal(other.Lender) &&
		o.Borrower.Equal(other.Borrower)
}

// Validate checks the invariants every version must satisfy
func (o Obligation) Validate() error {
	switch {
	case len(o.LinearID) == 0:
		return errors.New("missing linear id")
	case o.Amount.IsNegative():
		return errors.Errorf("negative amount [%s]", o.Amount)
	case o.Paid.Token != o.Amount.Token:
		return errors.Wrapf(ErrTokenMismatch, "paid [%s] and amount [%s]", o.Paid, o.Amount)
	case o.Paid.IsNegative() || o.Paid.Quantity > o.Amount.Quantity:
		return errors.Errorf("paid [%s] out of range [0, %s]", o.Paid, o.Amount)
	case o.Lender.IsNone() || o.Borrower.IsNone():
		return errors.New("missing lender or borrower")
	case o.Lender.Equal(o.Borrower):
		return errors.New("lender and borrower are the same identity")
	}
	return nil
}

func (o Obligation) String() string {
	return fmt.Sprintf("Obligation(%s): %s owes %s %s and has paid %s so far.", o.LinearID, o.Borrower, o.Lender, o.Amount, o.Paid)
}
