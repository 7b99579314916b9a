/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package views

import (
	"fmt"
	"reflect"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/builder"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/contract"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/cash"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/endorser"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/identity"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/vault"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("obligation.views")

// Intents
const (
	IssueIntent         = "issue"
	TransferIntent      = "transfer"
	SettleIntent        = "settle"
	SelfIssueCashIntent = "self-issue-cash"
)

// Options are the node defaults applied to the intents that do not set them
type Options struct {
	Anonymous bool
}

// GetOptions returns the registered options, the zero value if none is registered
func GetOptions(sp view.ServiceProvider) *Options {
	s, err := sp.GetService(reflect.TypeOf((*Options)(nil)))
	if err != nil {
		return &Options{}
	}
	return s.(*Options)
}

type services struct {
	options    *Options
	identities *identity.Service
	vault      *vault.Vault
	wallet     *cash.Wallet
	sig        *sig.Service
	builder    *builder.Builder
	verifier   ledger.Verifier
}

func getServices(sp view.ServiceProvider) (*services, error) {
	ids, err := identity.GetService(sp)
	if err != nil {
		return nil, err
	}
	v, err := vault.GetService(sp)
	if err != nil {
		return nil, err
	}
	w, err := cash.GetWallet(sp)
	if err != nil {
		return nil, err
	}
	s, err := sig.GetService(sp)
	if err != nil {
		return nil, err
	}
	verifier := contract.NewVerifier(ids)
	return &services{
		options:    GetOptions(sp),
		identities: ids,
		vault:      v,
		wallet:     w,
		sig:        s,
		builder:    builder.New(ids, v, w, verifier),
		verifier:   verifier,
	}, nil
}

// anonymous resolves the per-intent option against the node default
func (s *services) anonymous(requested *bool) bool {
	if requested != nil {
		return *requested
	}
	return s.options.Anonymous
}

// notary returns the first notary of the network map
func (s *services) notary() (states.Party, error) {
	notaries := s.identities.NetworkMap().Notaries()
	if len(notaries) == 0 {
		return states.Party{}, precondition(nil, "No available notaries.")
	}
	return notaries[0], nil
}

// party looks up a well-known party by name
func (s *services) party(role, name string) (states.Party, error) {
	p, err := s.identities.NetworkMap().PartyFromName(name)
	if err != nil {
		return states.Party{}, precondition(err, "Unknown %s %s.", role, name)
	}
	return p, nil
}

func parseAmount(s string) (states.Amount, error) {
	amount, err := states.ParseAmount(s)
	if err != nil {
		return states.Amount{}, precondition(err, "Invalid amount %s.", s)
	}
	return amount, nil
}

func precondition(cause error, format string, args ...any) error {
	return &builder.PreconditionError{Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// Result describes the committed transaction of an intent
type Result struct {
	TxID       string             `json:"tx_id"`
	LinearID   string             `json:"linear_id,omitempty"`
	Obligation *states.Obligation `json:"obligation,omitempty"`
}

func resultOf(stx *ledger.SignedTransaction, linearID string) *Result {
	res := &Result{TxID: stx.ID(), LinearID: linearID}
	if out := stx.Tx.OutputObligations(); len(out) == 1 {
		res.Obligation = &out[0]
	}
	return res
}

// agree signs tx with myKeys and runs the agreement with the other parties of tx:
// identity sync (when requested), signature collection and finality.
func agree(ctx view.Context, flow *endorser.Flow, s *services, intent string, tx *ledger.Transaction, myKeys view.Identities, sync bool) (*ledger.SignedTransaction, error) {
	stx := ledger.NewSignedTransaction(tx)
	var signers, observers []states.Party
	if err := flow.Do(endorser.Signing, func() (err error) {
		if err := stx.Sign(s.sig, myKeys...); err != nil {
			return errors.WithMessagef(err, "failed signing [%s]", tx.ID)
		}
		signers, observers, err = endorser.Parties(ctx, tx)
		return err
	}); err != nil {
		return nil, err
	}

	if sync && len(signers) != 0 {
		if err := flow.Do(endorser.Syncing, func() error {
			return endorser.SyncIdentities(ctx, tx, signers...)
		}); err != nil {
			return nil, err
		}
	}
	if len(signers) != 0 {
		if err := flow.Do(endorser.Collecting, func() (err error) {
			stx, err = endorser.CollectSignatures(ctx, intent, stx, signers...)
			return err
		}); err != nil {
			return nil, err
		}
	}
	if err := flow.Do(endorser.Finalizing, func() (err error) {
		stx, err = endorser.Finality(ctx, stx, signers, observers)
		return err
	}); err != nil {
		return nil, err
	}
	if err := flow.Commit(stx); err != nil {
		return nil, err
	}
	logger.Infof("[%s] committed [%s]", intent, stx.ID())
	return stx, nil
}
