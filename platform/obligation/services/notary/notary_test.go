/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package notary

import (
	"context"
	"testing"
	"time"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils/errors"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/ledger"
	"github.com/hyperledger-labs/iou-smart-client/platform/obligation/states"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/comm/memory"
	mem "github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver/memory"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/id/ecdsa"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/kvs"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics/disabled"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/tracing"
	view2 "github.com/hyperledger-labs/iou-smart-client/platform/view/services/view"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	party states.Party
	sig   *sig.Service
	kvs   *kvs.KVS
}

func newNode(t *testing.T, name string) *node {
	store, err := kvs.New(mem.New(), name, 100)
	require.NoError(t, err)
	s := sig.NewService(sig.NewMultiplexDeserializer(&ecdsa.Deserializer{}), store)
	id, signer, verifier, err := ecdsa.NewSigner()
	require.NoError(t, err)
	require.NoError(t, s.RegisterSigner(id, signer, verifier))
	return &node{party: states.Party{Name: name, Identity: id}, sig: s, kvs: store}
}

// transfer builds a signed transaction consuming ref and moving the obligation to lender
func transfer(t *testing.T, notary states.Party, ref ledger.StateRef, signers []*node, lender states.Party) *ledger.SignedTransaction {
	o := states.NewObligation(states.NewAmount(100, "GBP"), signers[0].party, signers[1].party)
	tb := ledger.NewTransactionBuilder(notary)
	require.NoError(t, tb.AddInput(ledger.StateAndRef{Ref: ref, State: ledger.NewObligationState(o)}))
	tb.AddOutput(ledger.NewObligationState(o.WithNewLender(lender)))
	var ids view.Identities
	for _, n := range signers {
		ids = append(ids, n.party.Identity)
	}
	tb.AddCommand(ledger.Command{Contract: ledger.ObligationContract, Type: ledger.Transfer, Signers: ids})
	tx, err := tb.ToTransaction()
	require.NoError(t, err)
	stx := ledger.NewSignedTransaction(tx)
	for _, n := range signers {
		require.NoError(t, stx.Sign(n.sig, n.party.Identity))
	}
	return stx
}

func TestNotarise(t *testing.T) {
	ctx := context.Background()
	notary := newNode(t, "notary")
	alice, bob, charlie := newNode(t, "alice"), newNode(t, "bob"), newNode(t, "charlie")
	service := NewService(notary.party, notary.kvs, notary.sig, &disabled.Provider{})

	ref := ledger.StateRef{TxID: "issue", Index: 0}
	first := transfer(t, notary.party, ref, []*node{alice, bob}, charlie.party)
	sigma, err := service.Notarise(ctx, first)
	require.NoError(t, err)
	first.NotarySignature = sigma
	require.NoError(t, first.VerifyNotarySignature(notary.sig))

	// same transaction again is accepted
	_, err = service.Notarise(ctx, first)
	require.NoError(t, err)

	// a different transaction consuming the same input is not
	second := transfer(t, notary.party, ref, []*node{alice, bob}, alice.party)
	_, err = service.Notarise(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.HasCause(err, ErrConflict))
	var conflict *ConflictError
	require.True(t, errors.HasType(err, conflict))
	conflict = err.(*ConflictError)
	assert.Equal(t, []Conflict{{Ref: ref, ConsumedBy: first.ID()}}, conflict.Conflicts)

	// unsigned
	third := transfer(t, notary.party, ledger.StateRef{TxID: "other"}, []*node{alice, bob}, charlie.party)
	third.Signatures = third.Signatures[:1]
	_, err = service.Notarise(ctx, third)
	assert.True(t, errors.HasCause(err, ErrMissingSignatures))

	// assigned to somebody else
	fourth := transfer(t, charlie.party, ledger.StateRef{TxID: "other"}, []*node{alice, bob}, charlie.party)
	_, err = service.Notarise(ctx, fourth)
	assert.True(t, errors.HasCause(err, ErrWrongNotary))

	// too late
	service.now = func() time.Time { return time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC) }
	tb := ledger.NewTransactionBuilder(notary.party)
	tb.AddOutput(ledger.NewObligationState(states.NewObligation(states.NewAmount(1, "GBP"), alice.party, bob.party)))
	tb.AddCommand(ledger.Command{Contract: ledger.ObligationContract, Type: ledger.Issue})
	tb.SetTimeWindow(time.Time{}, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	tx, err := tb.ToTransaction()
	require.NoError(t, err)
	_, err = service.Notarise(ctx, ledger.NewSignedTransaction(tx))
	assert.True(t, errors.HasCause(err, ErrOutsideTimeWindow))
}

type viewFunc func(ctx view.Context) (interface{}, error)

func (f viewFunc) Call(ctx view.Context) (interface{}, error) { return f(ctx) }

func startManager(t *testing.T, network *memory.Network, n *node, services ...interface{}) *view2.Manager {
	comm, err := network.Join(n.party.Name, n.party.Identity)
	require.NoError(t, err)
	registry := view2.NewRegistry()
	require.NoError(t, registry.RegisterResponder(&RequestView{}, func() view.View { return &Responder{} }))
	sp := view2.NewServiceProvider()
	for _, s := range services {
		require.NoError(t, sp.RegisterService(s))
	}
	tp := tracing.NewTracerProvider(tracing.BackingProvider(tracing.NoneProvider), &disabled.Provider{})
	m := view2.NewManager(sp, comm, n.party.Identity, n.sig, registry, tp, &disabled.Provider{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Start(ctx)
	return m
}

func TestClient(t *testing.T) {
	network := memory.NewNetwork()
	notary := newNode(t, "notary")
	alice, bob := newNode(t, "alice"), newNode(t, "bob")
	startManager(t, network, notary, NewService(notary.party, notary.kvs, notary.sig, &disabled.Provider{}))
	client := NewClient(alice.sig, time.Second)
	m := startManager(t, network, alice, client)

	finalize := func(stx *ledger.SignedTransaction) (*ledger.SignedTransaction, error) {
		res, err := m.InitiateView(viewFunc(func(ctx view.Context) (interface{}, error) {
			return client.Finalize(ctx, stx)
		}), context.Background())
		if err != nil {
			return nil, err
		}
		return res.(*ledger.SignedTransaction), nil
	}

	ref := ledger.StateRef{TxID: "issue"}
	stx, err := finalize(transfer(t, notary.party, ref, []*node{alice, bob}, notary.party))
	require.NoError(t, err)
	require.NoError(t, stx.VerifyNotarySignature(alice.sig))

	_, err = finalize(transfer(t, notary.party, ref, []*node{alice, bob}, alice.party.Anonymise()))
	require.Error(t, err)
	assert.True(t, errors.HasCause(err, ErrConflict))

	unsigned := transfer(t, notary.party, ledger.StateRef{TxID: "other"}, []*node{alice, bob}, notary.party)
	unsigned.Signatures = nil
	_, err = finalize(unsigned)
	assert.True(t, errors.HasCause(err, ErrMissingSignatures))
}

func TestResponseErr(t *testing.T) {
	assert.NoError(t, (&Response{Signature: &ledger.Signature{}}).err())
	assert.True(t, errors.HasCause((&Response{Error: "ledger closed"}).err(), ErrRefused))
	assert.True(t, errors.HasCause((&Response{Missing: true}).err(), ErrMissingSignatures))
	assert.True(t, errors.HasCause((&Response{Conflict: &ConflictError{}}).err(), ErrConflict))
	assert.Error(t, (&Response{}).err())

	assert.True(t, answered((&Response{Error: "ledger closed"}).err()))
	assert.False(t, answered(context.DeadlineExceeded))
}
