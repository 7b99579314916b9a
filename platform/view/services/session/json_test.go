/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package session

import (
	"context"
	"testing"
	"time"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils/errors"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/comm/memory"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeting struct {
	From string `json:"from"`
	N    int    `json:"n"`
}

func pair(t *testing.T) (view.Session, view.Session) {
	network := memory.NewNetwork()
	alice, err := network.Join("alice", view.Identity("alice"))
	require.NoError(t, err)
	bob, err := network.Join("bob", view.Identity("bob"))
	require.NoError(t, err)

	s, err := alice.NewSession("caller", "ctx", view.Identity("bob"))
	require.NoError(t, err)
	require.NoError(t, s.Send([]byte(`{"from":"alice","n":1}`)))

	first := <-bob.MasterSession().Receive()
	rs, err := bob.NewSessionWithID(first.SessionID, first.ContextID, first.FromPKID, first)
	require.NoError(t, err)
	return s, rs
}

func TestJSONSession(t *testing.T) {
	s, rs := pair(t)
	initiator := Wrap(context.Background(), s, time.Second)
	responder := Wrap(context.Background(), rs, time.Second)

	var g greeting
	require.NoError(t, responder.Receive(&g))
	assert.Equal(t, greeting{From: "alice", N: 1}, g)

	require.NoError(t, responder.Send(&greeting{From: "bob", N: 2}))
	require.NoError(t, initiator.Receive(&g))
	assert.Equal(t, greeting{From: "bob", N: 2}, g)

	require.NoError(t, responder.SendError("rejected"))
	err := initiator.Receive(&g)
	require.Error(t, err)
	assert.True(t, errors.HasType(err, &RemoteError{}))
	assert.Equal(t, "rejected", err.(*RemoteError).Reason)
}

func TestReadMessageTimeout(t *testing.T) {
	s, _ := pair(t)
	_, err := ReadMessage(context.Background(), s, 10*time.Millisecond)
	assert.True(t, errors.HasCause(err, ErrTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ReadMessage(ctx, s, time.Second)
	assert.Error(t, err)
}
