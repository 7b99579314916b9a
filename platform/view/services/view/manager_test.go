/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"context"
	"testing"
	"time"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/comm/memory"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics/disabled"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/tracing"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingView struct {
	to view.Identity
}

func (p *pingView) Call(ctx view.Context) (interface{}, error) {
	s, err := ctx.GetSession(p, p.to)
	if err != nil {
		return nil, err
	}
	if err := s.Send([]byte("ping")); err != nil {
		return nil, err
	}
	select {
	case msg := <-s.Receive():
		if msg.Status == view.StatusError {
			return nil, errors.New(string(msg.Payload))
		}
		return string(msg.Payload), nil
	case <-time.After(time.Second):
		return nil, errors.New("timeout")
	}
}

type pongView struct{}

func (p *pongView) Call(ctx view.Context) (interface{}, error) {
	msg := <-ctx.Session().Receive()
	if string(msg.Payload) != "ping" {
		return nil, errors.Errorf("unexpected payload [%s]", msg.Payload)
	}
	return nil, ctx.Session().Send([]byte("pong from " + string(ctx.Me())))
}

type refuseView struct{}

func (r *refuseView) Call(ctx view.Context) (interface{}, error) {
	<-ctx.Session().Receive()
	return nil, errors.New("not today")
}

func newTestManager(t *testing.T, network *memory.Network, name string, bindings ...Binding) *Manager {
	node, err := network.Join(name, view.Identity(name))
	require.NoError(t, err)
	registry := NewRegistry()
	require.NoError(t, registry.RegisterResponders(bindings...))
	tp := tracing.NewTracerProvider(tracing.BackingProvider(tracing.NoneProvider), &disabled.Provider{})
	m := NewManager(NewServiceProvider(), node, view.Identity(name), nil, registry, tp, &disabled.Provider{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Start(ctx)
	return m
}

func TestInitiateAndRespond(t *testing.T) {
	network := memory.NewNetwork()
	alice := newTestManager(t, network, "alice")
	newTestManager(t, network, "bob", Binding{InitiatedBy: &pingView{}, Responder: func() view.View { return &pongView{} }})

	res, err := alice.InitiateView(&pingView{to: view.Identity("bob")}, context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pong from bob", res)
}

func TestResponderErrorReachesInitiator(t *testing.T) {
	network := memory.NewNetwork()
	alice := newTestManager(t, network, "alice")
	newTestManager(t, network, "bob", Binding{InitiatedBy: &pingView{}, Responder: func() view.View { return &refuseView{} }})

	_, err := alice.InitiateView(&pingView{to: view.Identity("bob")}, context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not today")
}

func TestMissingResponder(t *testing.T) {
	network := memory.NewNetwork()
	alice := newTestManager(t, network, "alice")
	newTestManager(t, network, "bob")

	_, err := alice.InitiateView(&pingView{to: view.Identity("bob")}, context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no responder registered")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory("ping", factoryFunc(func(in []byte) (view.View, error) {
		return &pingView{to: view.Identity(in)}, nil
	})))
	assert.Error(t, r.RegisterFactory("ping", nil))

	v, err := r.NewView("ping", []byte("bob"))
	require.NoError(t, err)
	assert.Equal(t, view.Identity("bob"), v.(*pingView).to)

	_, err = r.NewView("pong", nil)
	assert.Error(t, err)

	require.NoError(t, r.RegisterResponder(&pingView{}, func() view.View { return &pongView{} }))
	assert.Error(t, r.RegisterResponder(GetIdentifier(&pingView{}), func() view.View { return &pongView{} }))
	assert.Error(t, r.RegisterResponder(42, nil))

	responder, err := r.NewResponder(GetIdentifier(&pingView{}))
	require.NoError(t, err)
	assert.IsType(t, &pongView{}, responder)
	assert.Equal(t, "pingView", GetName(&pingView{}))
}

func TestServiceProvider(t *testing.T) {
	sp := NewServiceProvider()
	require.NoError(t, sp.RegisterService(&pongView{}))
	assert.Error(t, sp.RegisterService(nil))

	s, err := sp.GetService((*view.View)(nil))
	require.NoError(t, err)
	assert.IsType(t, &pongView{}, s)

	s, err = sp.GetService(&pongView{})
	require.NoError(t, err)
	assert.IsType(t, &pongView{}, s)

	_, err = sp.GetService(&pingView{})
	assert.ErrorIs(t, err, ServiceNotFound)
}

func TestRunViewCallbacks(t *testing.T) {
	tp := tracing.NewTracerProvider(tracing.BackingProvider(tracing.NoneProvider), &disabled.Provider{})
	c, err := newRootContext(context.Background(), NewServiceProvider(), "", nil, nil, view.Identity("alice"), nil, nil, tp.Tracer("test"))
	require.NoError(t, err)

	called := false
	_, err = c.RunView(nil, view.WithViewCall(func(ctx view.Context) (interface{}, error) {
		ctx.OnError(func() { called = true })
		return nil, errors.New("boom")
	}))
	assert.Error(t, err)
	assert.True(t, called)

	_, err = c.RunView(nil, view.WithViewCall(func(ctx view.Context) (interface{}, error) {
		panic("kaboom")
	}))
	assert.EqualError(t, err, "kaboom")
}

type factoryFunc func(in []byte) (view.View, error)

func (f factoryFunc) NewView(in []byte) (view.View, error) {
	return f(in)
}
