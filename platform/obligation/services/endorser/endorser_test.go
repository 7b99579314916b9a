/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package endorser

import (
	"testing"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils/errors"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/services/identity"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	mem "github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver/memory"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/id/ecdsa"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/kvs"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/session"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/tracker"
	perrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentities(t *testing.T, nm *identity.NetworkMap, name string) *identity.Service {
	store, err := kvs.New(mem.New(), name, 10)
	require.NoError(t, err)
	s := sig.NewService(sig.NewMultiplexDeserializer(&ecdsa.Deserializer{}), store)
	id, signer, verifier, err := ecdsa.NewSigner()
	require.NoError(t, err)
	require.NoError(t, s.RegisterSigner(id, signer, verifier))
	me := states.Party{Name: name, Identity: id}
	require.NoError(t, nm.AddParty(me))
	return identity.NewService(me, nm, s, store)
}

func gbp(q int64) states.Amount {
	return states.NewAmount(q, "GBP")
}

func TestParties(t *testing.T) {
	nm := identity.NewNetworkMap()
	alice := newIdentities(t, nm, "alice")
	bob := newIdentities(t, nm, "bob")
	charlie := newIdentities(t, nm, "charlie")

	// bob moves the obligation of alice to charlie
	o := states.NewObligation(gbp(100), bob.Me(), alice.Me())
	tx := &ledger.Transaction{
		Inputs:  []ledger.StateAndRef{{Ref: ledger.StateRef{TxID: "issue"}, State: ledger.NewObligationState(o)}},
		Outputs: []ledger.TransactionState{ledger.NewObligationState(o.WithNewLender(charlie.Me()))},
		Commands: []ledger.Command{{
			Contract: ledger.ObligationContract,
			Type:     ledger.Transfer,
			Signers:  states.Parties{alice.Me(), bob.Me(), charlie.Me()}.Identities(),
		}},
	}

	signers, observers, err := parties(bob, tx)
	require.NoError(t, err)
	assert.Equal(t, []states.Party{alice.Me(), charlie.Me()}, signers)
	assert.Empty(t, observers)

	// charlie does not sign: it only observes
	tx.Commands[0].Signers = states.Parties{alice.Me(), bob.Me()}.Identities()
	signers, observers, err = parties(bob, tx)
	require.NoError(t, err)
	assert.Equal(t, []states.Party{alice.Me()}, signers)
	assert.Equal(t, []states.Party{charlie.Me()}, observers)

	assert.Equal(t, tx.Commands[0].Signers[1:], MyKeys(bob, tx))
	assert.Equal(t, tx.Commands[0].Signers[:1], keysOf(bob, tx, alice.Me()))
	assert.Empty(t, MyKeys(charlie, tx))
}

func TestPartiesAnonymous(t *testing.T) {
	nm := identity.NewNetworkMap()
	alice := newIdentities(t, nm, "alice")
	bob := newIdentities(t, nm, "bob")

	anon, cert, err := alice.FreshAnonymousIdentity()
	require.NoError(t, err)
	o := states.NewObligation(gbp(100), bob.Me(), anon)
	tx := &ledger.Transaction{
		Outputs: []ledger.TransactionState{ledger.NewObligationState(o)},
		Commands: []ledger.Command{{
			Contract: ledger.ObligationContract,
			Type:     ledger.Issue,
			Signers:  states.Parties{anon, bob.Me()}.Identities(),
		}},
	}

	// bob cannot resolve the pseudonym before the certificate is synced
	_, _, err = parties(bob, tx)
	assert.True(t, errors.HasCause(err, identity.ErrUnresolvable))

	require.NoError(t, bob.RegisterCertificate(cert))
	signers, observers, err := parties(bob, tx)
	require.NoError(t, err)
	assert.Equal(t, []states.Party{alice.Me()}, signers)
	assert.Empty(t, observers)

	signers, _, err = parties(alice, tx)
	require.NoError(t, err)
	assert.Equal(t, []states.Party{bob.Me()}, signers)
	assert.Equal(t, states.Parties{anon}.Identities(), MyKeys(alice, tx))
}

func TestSameState(t *testing.T) {
	alice := states.Party{Name: "alice", Identity: []byte("alice")}
	bob := states.Party{Name: "bob", Identity: []byte("bob")}
	o := states.NewObligation(gbp(100), bob, alice)
	paid, err := o.Pay(gbp(10))
	require.NoError(t, err)
	c := states.Cash{Amount: gbp(10), Issuer: alice, Owner: alice}

	assert.True(t, sameState(ledger.NewObligationState(o), ledger.NewObligationState(o)))
	assert.False(t, sameState(ledger.NewObligationState(o), ledger.NewObligationState(paid)))
	assert.True(t, sameState(ledger.NewCashState(c), ledger.NewCashState(c)))
	assert.False(t, sameState(ledger.NewCashState(c), ledger.NewCashState(states.Cash{Amount: gbp(10), Issuer: alice, Owner: bob})))
	assert.False(t, sameState(ledger.NewCashState(c), ledger.NewObligationState(o)))
	assert.False(t, sameState(ledger.TransactionState{Contract: ledger.ObligationContract}, ledger.NewObligationState(o)))
}

func TestErrors(t *testing.T) {
	bob := states.Party{Name: "bob", Identity: []byte("bob")}
	rejected := rejection(bob, perrors.WithStack(&session.RemoteError{Reason: "no way"}), "failed receiving signatures")
	assert.True(t, errors.HasType(rejected, &CounterpartyRejection{}))
	assert.EqualError(t, rejected, "rejected by [bob]: no way")

	other := rejection(bob, perrors.New("timeout"), "no acknowledgement")
	assert.False(t, errors.HasType(other, &CounterpartyRejection{}))
	assert.EqualError(t, other, "no acknowledgement from [bob]: timeout")

	aborted := &AbortError{Step: tracker.Step("COLLECTING"), Cause: rejected}
	assert.EqualError(t, aborted, "aborted at [COLLECTING]: rejected by [bob]: no way")
	assert.True(t, errors.HasType(aborted, &CounterpartyRejection{}))
	assert.True(t, errors.HasCause(&AbortError{Step: Syncing, Cause: ErrNotASigner}, ErrNotASigner))
}

func TestNewConfig(t *testing.T) {
	c := NewConfig(0, -1)
	assert.Equal(t, session.DefaultTimeout, c.SessionTimeout)
	assert.Equal(t, session.DefaultTimeout, c.FinalityTimeout)
	c = NewConfig(session.DefaultTimeout*2, 1)
	assert.Equal(t, session.DefaultTimeout*2, c.SessionTimeout)
	assert.EqualValues(t, 1, c.FinalityTimeout)
}
