/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

// ContractID names the rule set governing a state or a command
type ContractID string

const (
	ObligationContract ContractID = "obligation"
	CashContract       ContractID = "cash"
)

// CommandType is the declared intent of a command
type CommandType string

const (
	Issue    CommandType = "Issue"
	Transfer CommandType = "Transfer"
	Settle   CommandType = "Settle"
	// Move is only meaningful for cash
	Move CommandType = "Move"
)

// StateRef points to an output of a transaction
type StateRef struct {
	TxID  string `json:"tx_id"`
	Index int    `json:"index"`
}

func (r StateRef) String() string {
	return fmt.Sprintf("%s(%d)", r.TxID, r.Index)
}

// TransactionState is either an obligation or a cash state, tagged by contract
type TransactionState struct {
	Contract   ContractID
	Obligation *states.Obligation
	Cash       *states.Cash
}

func NewObligationState(o states.Obligation) TransactionState {
	return TransactionState{Contract: ObligationContract, Obligation: &o}
}

func NewCashState(c states.Cash) TransactionState {
	return TransactionState{Contract: CashContract, Cash: &c}
}

// Participants returns the parties with a stake in the state
func (s TransactionState) Participants() states.Parties {
	switch s.Contract {
	case ObligationContract:
		return s.Obligation.Participants()
	case CashContract:
		return s.Cash.Participants()
	}
	return nil
}

func (s TransactionState) String() string {
	switch s.Contract {
	case ObligationContract:
		return s.Obligation.String()
	case CashContract:
		return s.Cash.String()
	}
	return fmt.Sprintf("unknown state [%s]", s.Contract)
}

type stateEnvelope struct {
	Contract ContractID      `json:"contract"`
	Data     json.RawMessage `json:"data"`
}

func (s TransactionState) MarshalJSON() ([]byte, error) {
	var data interface{}
	switch s.Contract {
	case ObligationContract:
		if s.Obligation == nil {
			return nil, errors.Errorf("missing data for contract [%s]", s.Contract)
		}
		data = s.Obligation
	case CashContract:
		if s.Cash == nil {
			return nil, errors.Errorf("missing data for contract [%s]", s.Contract)
		}
		data = s.Cash
	default:
		return nil, errors.Errorf("unknown contract [%s]", s.Contract)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&stateEnvelope{Contract: s.Contract, Data: raw})
}

func (s *TransactionState) UnmarshalJSON(raw []byte) error {
	env := &stateEnvelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		return err
	}
	switch env.Contract {
	case ObligationContract:
		o := &states.Obligation{}
		if err := json.Unmarshal(env.Data, o); err != nil {
			return errors.Wrap(err, "failed unmarshalling obligation")
		}
		*s = TransactionState{Contract: ObligationContract, Obligation: o}
	case CashContract:
		c := &states.Cash{}
		if err := json.Unmarshal(env.Data, c); err != nil {
			return errors.Wrap(err, "failed unmarshalling cash")
		}
		*s = TransactionState{Contract: CashContract, Cash: c}
	default:
		return errors.Errorf("unknown contract [%s]", env.Contract)
	}
	return nil
}

// StateAndRef is a resolved input: the referenced state together with its reference
type StateAndRef struct {
	Ref   StateRef         `json:"ref"`
	State TransactionState `json:"state"`
}

// Command declares the intent of a transaction towards one contract and the keys that must sign it
type Command struct {
	Contract ContractID      `json:"contract"`
	Type     CommandType     `json:"type"`
	Signers  view.Identities `json:"signers"`
}

type TimeWindow struct {
	From  *time.Time `json:"from,omitempty"`
	Until *time.Time `json:"until,omitempty"`
}

func (w *TimeWindow) Contains(t time.Time) bool {
	if w == nil {
		return true
	}
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.Until != nil && !t.Before(*w.Until) {
		return false
	}
	return true
}

// Transaction is a proposed atomic state transition.
// ID is derived from the content and is empty until the transaction is sealed.
type Transaction struct {
	ID         string             `json:"id,omitempty"`
	Notary     states.Party       `json:"notary"`
	Inputs     []StateAndRef      `json:"inputs"`
	Outputs    []TransactionState `json:"outputs"`
	Commands   []Command          `json:"commands"`
	TimeWindow *TimeWindow        `json:"time_window,omitempty"`
}

// ComputeID hashes the canonical JSON form of the transaction, id excluded
func ComputeID(tx *Transaction) (string, error) {
	c := *tx
	c.ID = ""
	raw, err := json.Marshal(&c)
	if err != nil {
		return "", errors.Wrap(err, "failed marshalling transaction")
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", errors.Wrap(err, "failed canonicalizing transaction")
	}
	h := sha256.Sum256(canonical)
	return hex.EncodeToString(h[:]), nil
}

// CheckID fails when the id does not match the content
func (t *Transaction) CheckID() error {
	id, err := ComputeID(t)
	if err != nil {
		return err
	}
	if id != t.ID {
		return errors.Wrapf(ErrIDMismatch, "expected [%s], got [%s]", id, t.ID)
	}
	return nil
}

func (t *Transaction) OutRef(index int) StateRef {
	return StateRef{TxID: t.ID, Index: index}
}

// OutRefs returns every output with its reference
func (t *Transaction) OutRefs() []StateAndRef {
	res := make([]StateAndRef, len(t.Outputs))
	for i, o := range t.Outputs {
		res[i] = StateAndRef{Ref: t.OutRef(i), State: o}
	}
	return res
}

func (t *Transaction) InputRefs() []StateRef {
	res := make([]StateRef, len(t.Inputs))
	for i, in := range t.Inputs {
		res[i] = in.Ref
	}
	return res
}

func (t *Transaction) InputObligations() []states.Obligation {
	return obligations(inputStates(t.Inputs))
}

func (t *Transaction) OutputObligations() []states.Obligation {
	return obligations(t.Outputs)
}

func (t *Transaction) InputCash() []states.Cash {
	return cash(inputStates(t.Inputs))
}

func (t *Transaction) OutputCash() []states.Cash {
	return cash(t.Outputs)
}

// CommandsOf returns the commands addressed to the passed contract
func (t *Transaction) CommandsOf(contract ContractID) []Command {
	var res []Command
	for _, c := range t.Commands {
		if c.Contract == contract {
			res = append(res, c)
		}
	}
	return res
}

// HasContract tells whether any state or command belongs to contract
func (t *Transaction) HasContract(contract ContractID) bool {
	if len(t.CommandsOf(contract)) != 0 {
		return true
	}
	for _, in := range t.Inputs {
		if in.State.Contract == contract {
			return true
		}
	}
	for _, out := range t.Outputs {
		if out.Contract == contract {
			return true
		}
	}
	return false
}

// RequiredSigners is the union of the signers of all commands
func (t *Transaction) RequiredSigners() view.Identities {
	var res view.Identities
	for _, c := range t.Commands {
		res = append(res, c.Signers...)
	}
	return res.Distinct()
}

// Participants returns every party with a stake in an input or an output
func (t *Transaction) Participants() states.Parties {
	var res states.Parties
	add := func(s TransactionState) {
		for _, p := range s.Participants() {
			if !res.Contains(p) {
				res = append(res, p)
			}
		}
	}
	for _, in := range t.Inputs {
		add(in.State)
	}
	for _, out := range t.Outputs {
		add(out)
	}
	return res
}

func inputStates(inputs []StateAndRef) []TransactionState {
	res := make([]TransactionState, len(inputs))
	for i, in := range inputs {
		res[i] = in.State
	}
	return res
}

func obligations(ss []TransactionState) []states.Obligation {
	var res []states.Obligation
	for _, s := range ss {
		if s.Contract == ObligationContract && s.Obligation != nil {
			res = append(res, *s.Obligation)
		}
	}
	return res
}

func cash(ss []TransactionState) []states.Cash {
	var res []states.Cash
	for _, s := range ss {
		if s.Contract == CashContract && s.Cash != nil {
			res = append(res, *s.Cash)
		}
	}
	return res
}
