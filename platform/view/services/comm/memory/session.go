/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memory

import (
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

// ErrSessionClosed is returned when a message is sent when the session is closed.
var ErrSessionClosed = errors.New("session closed")

const incomingBuffer = 64

type session struct {
	node         *Node
	id           string
	contextID    string
	callerViewID string
	caller       view.Identity
	remote       string

	incoming  chan *view.Message
	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(node *Node, id, contextID, callerViewID string, caller view.Identity, remote string) *session {
	return &session{
		node:         node,
		id:           id,
		contextID:    contextID,
		callerViewID: callerViewID,
		caller:       caller,
		remote:       remote,
		incoming:     make(chan *view.Message, incomingBuffer),
		closed:       make(chan struct{}),
	}
}

func (s *session) Info() view.SessionInfo {
	return view.SessionInfo{
		ID:           s.id,
		Caller:       s.caller,
		CallerViewID: s.callerViewID,
		Remote:       s.remote,
		Closed:       s.isClosed(),
	}
}

func (s *session) Send(payload []byte) error {
	return s.sendWithStatus(view.StatusOK, payload)
}

func (s *session) SendError(payload []byte) error {
	return s.sendWithStatus(view.StatusError, payload)
}

func (s *session) Receive() <-chan *view.Message {
	return s.incoming
}

func (s *session) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *session) sendWithStatus(status view.Status, payload []byte) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if s.node == nil {
		return errors.New("cannot send on the master session")
	}
	return s.node.send(s, status, payload)
}

// enqueue blocks while the buffer is full. Messages for a closed session are dropped.
func (s *session) enqueue(msg *view.Message) bool {
	select {
	case <-s.closed:
		return false
	case s.incoming <- msg:
		return true
	}
}

func (s *session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
