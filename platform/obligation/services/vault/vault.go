/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vault

import (
	"context"
	"reflect"
	"sort"
	"strconv"
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils/errors"
	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/events"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/kvs"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	perrors "github.com/pkg/errors"
)

var logger = logging.MustGetLogger("obligation.vault")

const (
	txPrefix       = "vault.tx"
	statePrefix    = "vault.state"
	consumedPrefix = "vault.consumed"
	linearPrefix   = "vault.linear"

	// CommitTopic prefixes the topic on which the commit of a transaction is announced
	CommitTopic = "vault.commit."
)

// ErrNotFound is returned when a transaction or a state is not in the vault
var ErrNotFound = perrors.New("not found")

// Ownership tells whether a party is this node or one of its pseudonyms
type Ownership interface {
	IsMine(p states.Party) bool
}

type KVS interface {
	Exists(id string) bool
	Get(id string, state interface{}) error
	GetByPartialCompositeID(prefix string, attrs []string) (kvs.Iterator, error)
	NewBatch() (*kvs.Batch, error)
}

// Vault records finalized transactions and tracks the unconsumed states they produced.
// It is append-only: recording the same transaction twice is a no-op.
type Vault struct {
	kvs       KVS
	ownership Ownership
	events    *events.Service

	recordMutex sync.Mutex
}

func New(kvs KVS, ownership Ownership, es *events.Service) *Vault {
	return &Vault{kvs: kvs, ownership: ownership, events: es}
}

func GetService(sp view.ServiceProvider) (*Vault, error) {
	s, err := sp.GetService(reflect.TypeOf((*Vault)(nil)))
	if err != nil {
		return nil, perrors.Wrap(err, "cannot get vault")
	}
	return s.(*Vault), nil
}

// Record stores a finalized transaction, consumes its inputs and adds its outputs
func (v *Vault) Record(ctx context.Context, stx *ledger.SignedTransaction) error {
	if stx == nil || stx.Tx == nil {
		return perrors.New("nil transaction")
	}
	tx := stx.Tx

	v.recordMutex.Lock()
	defer v.recordMutex.Unlock()

	if v.kvs.Exists(txKey(tx.ID)) {
		logger.Debugf("transaction [%s] already recorded", tx.ID)
		return nil
	}

	batch, err := v.kvs.NewBatch()
	if err != nil {
		return err
	}
	if err := v.write(batch, stx); err != nil {
		batch.Discard()
		return perrors.WithMessagef(err, "failed recording [%s]", tx.ID)
	}
	if err := batch.Commit(); err != nil {
		return perrors.WithMessagef(err, "failed recording [%s]", tx.ID)
	}
	logger.Debugf("recorded transaction [%s], consumed [%d], produced [%d]", tx.ID, len(tx.Inputs), len(tx.Outputs))

	v.events.Publish(&events.GenericEvent{EventTopic: CommitTopic + tx.ID, Payload: stx})
	return nil
}

func (v *Vault) write(batch *kvs.Batch, stx *ledger.SignedTransaction) error {
	tx := stx.Tx
	if err := batch.Put(txKey(tx.ID), stx); err != nil {
		return err
	}
	for _, in := range tx.Inputs {
		if err := batch.Delete(stateKey(in.State.Contract, in.Ref)); err != nil {
			return err
		}
		if err := batch.Put(consumedKey(in.Ref), tx.ID); err != nil {
			return err
		}
		if in.State.Contract != ledger.ObligationContract {
			continue
		}
		current := &ledger.StateRef{}
		err := v.kvs.Get(linearKey(in.State.Obligation.LinearID), current)
		switch {
		case err == nil && *current == in.Ref:
			if err := batch.Delete(linearKey(in.State.Obligation.LinearID)); err != nil {
				return err
			}
		case err != nil && !errors.HasCause(err, kvs.ErrNotFound):
			return err
		}
	}
	for _, out := range tx.OutRefs() {
		if err := batch.Put(stateKey(out.State.Contract, out.Ref), out); err != nil {
			return err
		}
		if out.State.Contract == ledger.ObligationContract {
			if err := batch.Put(linearKey(out.State.Obligation.LinearID), out.Ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// Transaction returns a recorded transaction
func (v *Vault) Transaction(ctx context.Context, txID string) (*ledger.SignedTransaction, error) {
	stx := &ledger.SignedTransaction{}
	if err := v.kvs.Get(txKey(txID), stx); err != nil {
		return nil, v.notFound(err, "transaction [%s]", txID)
	}
	return stx, nil
}

// FindCurrentObligation returns the unconsumed version of the obligation with the passed linear id
func (v *Vault) FindCurrentObligation(ctx context.Context, linearID string) (*ledger.StateAndRef, error) {
	ref := &ledger.StateRef{}
	if err := v.kvs.Get(linearKey(linearID), ref); err != nil {
		return nil, v.notFound(err, "obligation [%s]", linearID)
	}
	return v.Unconsumed(ctx, ledger.ObligationContract, *ref)
}

// Unconsumed returns the referenced state if it is known and not consumed
func (v *Vault) Unconsumed(ctx context.Context, contract ledger.ContractID, ref ledger.StateRef) (*ledger.StateAndRef, error) {
	sr := &ledger.StateAndRef{}
	if err := v.kvs.Get(stateKey(contract, ref), sr); err != nil {
		return nil, v.notFound(err, "state [%s]", ref)
	}
	return sr, nil
}

// IsConsumed tells whether a recorded transaction consumed ref
func (v *Vault) IsConsumed(ctx context.Context, ref ledger.StateRef) bool {
	return v.kvs.Exists(consumedKey(ref))
}

// Obligations returns the unconsumed obligations where this node is lender or borrower
func (v *Vault) Obligations(ctx context.Context) ([]ledger.StateAndRef, error) {
	return v.query(ledger.ObligationContract, func(s ledger.TransactionState) bool {
		return v.ownership.IsMine(s.Obligation.Lender) || v.ownership.IsMine(s.Obligation.Borrower)
	})
}

// UnconsumedCash returns the unconsumed cash owned by this node in token; all tokens if token is empty
func (v *Vault) UnconsumedCash(ctx context.Context, token string) ([]ledger.StateAndRef, error) {
	return v.query(ledger.CashContract, func(s ledger.TransactionState) bool {
		return (len(token) == 0 || s.Cash.Amount.Token == token) && v.ownership.IsMine(s.Cash.Owner)
	})
}

// WaitForCommit blocks until txID is recorded or ctx is done
func (v *Vault) WaitForCommit(ctx context.Context, txID string) (*ledger.SignedTransaction, error) {
	res, err := v.events.Wait(ctx, CommitTopic+txID, func() (interface{}, bool) {
		stx, err := v.Transaction(ctx, txID)
		return stx, err == nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*ledger.SignedTransaction), nil
}

func (v *Vault) query(contract ledger.ContractID, filter func(ledger.TransactionState) bool) ([]ledger.StateAndRef, error) {
	it, err := v.kvs.GetByPartialCompositeID(statePrefix, []string{string(contract)})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var res []ledger.StateAndRef
	for it.HasNext() {
		sr := ledger.StateAndRef{}
		if _, err := it.Next(&sr); err != nil {
			return nil, perrors.Wrap(err, "failed reading state")
		}
		if filter(sr.State) {
			res = append(res, sr)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Ref.TxID != res[j].Ref.TxID {
			return res[i].Ref.TxID < res[j].Ref.TxID
		}
		return res[i].Ref.Index < res[j].Ref.Index
	})
	return res, nil
}

func (v *Vault) notFound(err error, format string, args ...interface{}) error {
	if errors.HasCause(err, kvs.ErrNotFound) {
		return perrors.Wrapf(ErrNotFound, format, args...)
	}
	return perrors.WithMessagef(err, format, args...)
}

func txKey(txID string) string {
	return kvs.CreateCompositeKeyOrPanic(txPrefix, []string{txID})
}

func stateKey(contract ledger.ContractID, ref ledger.StateRef) string {
	return kvs.CreateCompositeKeyOrPanic(statePrefix, []string{string(contract), ref.TxID, strconv.Itoa(ref.Index)})
}

func consumedKey(ref ledger.StateRef) string {
	return kvs.CreateCompositeKeyOrPanic(consumedPrefix, []string{ref.TxID, strconv.Itoa(ref.Index)})
}

func linearKey(linearID string) string {
	return kvs.CreateCompositeKeyOrPanic(linearPrefix, []string{linearID})
}
