/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"time"

	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

// Verifier decides whether a transaction is a legal transition
type Verifier interface {
	Verify(tx *Transaction) error
}

// TransactionBuilder assembles a transaction before it is sealed with its id
type TransactionBuilder struct {
	notary     states.Party
	inputs     []StateAndRef
	outputs    []TransactionState
	commands   []Command
	timeWindow *TimeWindow
}

func NewTransactionBuilder(notary states.Party) *TransactionBuilder {
	return &TransactionBuilder{notary: notary}
}

func (b *TransactionBuilder) SetNotary(notary states.Party) {
	b.notary = notary
}

func (b *TransactionBuilder) Notary() states.Party {
	return b.notary
}

// AddInput consumes the referenced state, each reference at most once
func (b *TransactionBuilder) AddInput(in StateAndRef) error {
	for _, cur := range b.inputs {
		if cur.Ref == in.Ref {
			return errors.Errorf("input [%s] already added", in.Ref)
		}
	}
	b.inputs = append(b.inputs, in)
	return nil
}

// AddOutput appends a state and returns its index
func (b *TransactionBuilder) AddOutput(out TransactionState) int {
	b.outputs = append(b.outputs, out)
	return len(b.outputs) - 1
}

// AddCommand adds a command; signers of a command of the same contract and type are merged
func (b *TransactionBuilder) AddCommand(c Command) {
	for i, cur := range b.commands {
		if cur.Contract == c.Contract && cur.Type == c.Type {
			b.commands[i].Signers = append(append(view.Identities{}, cur.Signers...), c.Signers...).Distinct()
			return
		}
	}
	c.Signers = c.Signers.Distinct()
	b.commands = append(b.commands, c)
}

func (b *TransactionBuilder) SetTimeWindow(from, until time.Time) {
	w := &TimeWindow{}
	if !from.IsZero() {
		f := from.UTC()
		w.From = &f
	}
	if !until.IsZero() {
		u := until.UTC()
		w.Until = &u
	}
	b.timeWindow = w
}

func (b *TransactionBuilder) Inputs() []StateAndRef {
	return b.inputs
}

func (b *TransactionBuilder) Outputs() []TransactionState {
	return b.outputs
}

func (b *TransactionBuilder) Commands() []Command {
	return b.commands
}

// ToTransaction seals the content into a transaction with its id
func (b *TransactionBuilder) ToTransaction() (*Transaction, error) {
	if b.notary.IsNone() {
		return nil, errors.New("no notary set")
	}
	if len(b.commands) == 0 {
		return nil, errors.New("no commands")
	}
	tx := &Transaction{
		Notary:     b.notary,
		Inputs:     append([]StateAndRef(nil), b.inputs...),
		Outputs:    append([]TransactionState(nil), b.outputs...),
		Commands:   append([]Command(nil), b.commands...),
		TimeWindow: b.timeWindow,
	}
	id, err := ComputeID(tx)
	if err != nil {
		return nil, err
	}
	tx.ID = id
	return tx, nil
}

// Verify seals the transaction and runs the verifier on it
func (b *TransactionBuilder) Verify(v Verifier) (*Transaction, error) {
	tx, err := b.ToTransaction()
	if err != nil {
		return nil, err
	}
	if err := v.Verify(tx); err != nil {
		return nil, err
	}
	return tx, nil
}
