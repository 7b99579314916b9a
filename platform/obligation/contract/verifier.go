/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contract

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("obligation.contract")

// VerifyTransaction runs the rules of every contract tx touches
func VerifyTransaction(tx *ledger.Transaction, resolver Resolver) error {
	if tx == nil {
		return errors.New("nil transaction")
	}
	for _, c := range tx.Commands {
		if c.Contract != ledger.ObligationContract && c.Contract != ledger.CashContract {
			return ErrUnrecognisedCommand
		}
	}
	obligation, cash := tx.HasContract(ledger.ObligationContract), tx.HasContract(ledger.CashContract)
	if !obligation && !cash {
		return ErrUnrecognisedCommand
	}
	if obligation {
		if err := Verify(tx, resolver); err != nil {
			logger.Debugf("transaction [%s] rejected by obligation contract: %s", tx.ID, err)
			return err
		}
	}
	if cash {
		if err := VerifyCash(tx); err != nil {
			logger.Debugf("transaction [%s] rejected by cash contract: %s", tx.ID, err)
			return err
		}
	}
	return nil
}

// Verifier binds a resolver to VerifyTransaction
type Verifier struct {
	resolver Resolver
}

func NewVerifier(resolver Resolver) *Verifier {
	return &Verifier{resolver: resolver}
}

func (v *Verifier) Verify(tx *ledger.Transaction) error {
	return VerifyTransaction(tx, v.resolver)
}
