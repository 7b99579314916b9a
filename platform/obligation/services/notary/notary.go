/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package notary

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils/errors"
	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/kvs"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	perrors "github.com/pkg/errors"
)

var logger = logging.MustGetLogger("obligation.notary")

const (
	consumedPrefix  = "notary.consumed"
	notarisedPrefix = "notary.tx"
)

var (
	// ErrConflict is returned when an input was already consumed by another transaction
	ErrConflict = perrors.New("input state already consumed")

	// ErrMissingSignatures is returned when a required signer did not sign
	ErrMissingSignatures = perrors.New("transaction is missing signatures")

	// ErrWrongNotary is returned when the transaction names another notary
	ErrWrongNotary = perrors.New("transaction assigned to another notary")

	// ErrRefused is returned when the notary answered with an error of its own
	ErrRefused = perrors.New("notary refused the transaction")

	ErrOutsideTimeWindow      = perrors.New("transaction outside its time window")
	ErrNoNotary               = perrors.New("no notary available")
	ErrInvalidNotarySignature = perrors.New("invalid notary signature")
)

// ConflictError reports the input states already consumed and the transactions consuming them
type ConflictError struct {
	TxID      string     `json:"tx_id"`
	Conflicts []Conflict `json:"conflicts"`
}

type Conflict struct {
	Ref        ledger.StateRef `json:"ref"`
	ConsumedBy string          `json:"consumed_by"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transaction [%s] conflicts on %d inputs", e.TxID, len(e.Conflicts))
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

type SigService interface {
	ledger.SigningService
	ledger.VerifierProvider
}

type KVS interface {
	Get(id string, state interface{}) error
	NewBatch() (*kvs.Batch, error)
}

// Service is the uniqueness service run by a notary node.
// It accepts a transaction only if none of its inputs was consumed by another transaction.
type Service struct {
	me         states.Party
	kvs        KVS
	sigService SigService
	metrics    *Metrics
	now        func() time.Time

	mutex sync.Mutex
}

func NewService(me states.Party, kvs KVS, sigService SigService, metricsProvider metrics.Provider) *Service {
	return &Service{
		me:         me,
		kvs:        kvs,
		sigService: sigService,
		metrics:    newMetrics(metricsProvider),
		now:        time.Now,
	}
}

func GetService(sp view.ServiceProvider) (*Service, error) {
	s, err := sp.GetService(reflect.TypeOf((*Service)(nil)))
	if err != nil {
		return nil, perrors.Wrap(err, "cannot get notary service")
	}
	return s.(*Service), nil
}

// Notarise checks signatures and uniqueness of the inputs, then signs the transaction id.
// Notarising the same transaction again returns a fresh signature.
func (s *Service) Notarise(ctx context.Context, stx *ledger.SignedTransaction) (*ledger.Signature, error) {
	if stx == nil || stx.Tx == nil {
		return nil, perrors.New("nil transaction")
	}
	tx := stx.Tx
	if !tx.Notary.Identity.Equal(s.me.Identity) {
		return nil, perrors.Wrapf(ErrWrongNotary, "[%s] is assigned to [%s]", tx.ID, tx.Notary)
	}
	if err := stx.VerifyRequiredSignatures(s.sigService); err != nil {
		if errors.HasCause(err, ledger.ErrMissingSignatures) {
			return nil, perrors.Wrapf(ErrMissingSignatures, "%s", err)
		}
		return nil, err
	}
	if !tx.TimeWindow.Contains(s.now()) {
		return nil, perrors.Wrapf(ErrOutsideTimeWindow, "[%s]", tx.ID)
	}

	if err := s.commit(tx); err != nil {
		return nil, err
	}

	sigma, err := s.sigService.Sign(s.me.Identity, []byte(tx.ID))
	if err != nil {
		return nil, perrors.WithMessagef(err, "failed signing [%s]", tx.ID)
	}
	s.metrics.Notarised.Add(1)
	logger.Debugf("notarised [%s]", tx.ID)
	return &ledger.Signature{Signer: s.me.Identity, Value: sigma}, nil
}

// commit marks the inputs as consumed by tx, atomically
func (s *Service) commit(tx *ledger.Transaction) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var conflicts []Conflict
	for _, ref := range tx.InputRefs() {
		var consumer string
		err := s.kvs.Get(consumedKey(ref), &consumer)
		switch {
		case err == nil && consumer != tx.ID:
			conflicts = append(conflicts, Conflict{Ref: ref, ConsumedBy: consumer})
		case err != nil && !errors.HasCause(err, kvs.ErrNotFound):
			return perrors.WithMessagef(err, "failed checking [%s]", ref)
		}
	}
	if len(conflicts) != 0 {
		s.metrics.Conflicts.Add(1)
		logger.Warnf("rejecting [%s], conflicts on [%v]", tx.ID, conflicts)
		return &ConflictError{TxID: tx.ID, Conflicts: conflicts}
	}

	batch, err := s.kvs.NewBatch()
	if err != nil {
		return err
	}
	for _, ref := range tx.InputRefs() {
		if err := batch.Put(consumedKey(ref), tx.ID); err != nil {
			batch.Discard()
			return err
		}
	}
	if err := batch.Put(notarisedKey(tx.ID), s.now().UTC()); err != nil {
		batch.Discard()
		return err
	}
	return batch.Commit()
}

func consumedKey(ref ledger.StateRef) string {
	return kvs.CreateCompositeKeyOrPanic(consumedPrefix, []string{ref.TxID, strconv.Itoa(ref.Index)})
}

func notarisedKey(txID string) string {
	return kvs.CreateCompositeKeyOrPanic(notarisedPrefix, []string{txID})
}
