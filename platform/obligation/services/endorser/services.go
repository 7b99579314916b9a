/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package endorser

import (
	"reflect"
	"time"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/identity"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/vault"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/session"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("obligation.endorser")

// Config holds the timeouts of the agreement protocol
type Config struct {
	SessionTimeout  time.Duration
	FinalityTimeout time.Duration
}

func NewConfig(sessionTimeout, finalityTimeout time.Duration) *Config {
	if sessionTimeout <= 0 {
		sessionTimeout = session.DefaultTimeout
	}
	if finalityTimeout <= 0 {
		finalityTimeout = session.DefaultTimeout
	}
	return &Config{SessionTimeout: sessionTimeout, FinalityTimeout: finalityTimeout}
}

// GetConfig returns the registered configuration, the defaults if none is registered
func GetConfig(sp view.ServiceProvider) *Config {
	s, err := sp.GetService(reflect.TypeOf((*Config)(nil)))
	if err != nil {
		return NewConfig(0, 0)
	}
	return s.(*Config)
}

type services struct {
	config     *Config
	identities *identity.Service
	vault      *vault.Vault
	sig        *sig.Service
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
	s, err := sig.GetService(sp)
	if err != nil {
		return nil, err
	}
	return &services{config: GetConfig(sp), identities: ids, vault: v, sig: s}, nil
}

// Parties splits the well-known parties of tx, other than this node, into
// the signers to collect signatures from and the observers that only receive the final transaction.
// Signers must resolve, observers that cannot be resolved are skipped.
func Parties(sp view.ServiceProvider, tx *ledger.Transaction) (signers []states.Party, observers []states.Party, err error) {
	ids, err := identity.GetService(sp)
	if err != nil {
		return nil, nil, err
	}
	return parties(ids, tx)
}

func parties(ids *identity.Service, tx *ledger.Transaction) ([]states.Party, []states.Party, error) {
	me := ids.Me()
	var signers states.Parties
	for _, key := range tx.RequiredSigners() {
		p, err := ids.WellKnownPartyFromAnonymous(states.Party{Identity: key})
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "cannot resolve signer [%s]", key)
		}
		if !p.Equal(me) && !signers.Contains(p) {
			signers = append(signers, p)
		}
	}
	var observers states.Parties
	for _, p := range tx.Participants() {
		wk, err := ids.WellKnownPartyFromAnonymous(p)
		if err != nil {
			logger.Debugf("skipping unresolvable participant [%s] of [%s]", p, tx.ID)
			continue
		}
		if wk.Equal(me) || signers.Contains(wk) || observers.Contains(wk) {
			continue
		}
		observers = append(observers, wk)
	}
	return signers, observers, nil
}

// keysOf returns the required signers of tx resolving to party
func keysOf(ids *identity.Service, tx *ledger.Transaction, party states.Party) view.Identities {
	var res view.Identities
	for _, key := range tx.RequiredSigners() {
		if p, err := ids.WellKnownPartyFromAnonymous(states.Party{Identity: key}); err == nil && p.Equal(party) {
			res = append(res, key)
		}
	}
	return res
}

// MyKeys returns the required signers of tx owned by this node
func MyKeys(ids *identity.Service, tx *ledger.Transaction) view.Identities {
	return keysOf(ids, tx, ids.Me())
}
