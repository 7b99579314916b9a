/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memory

import (
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/pkg/utils"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
)

const masterSessionID = "master_of_puppets"

// Node is the endpoint of a Network owned by one party.
// It creates sessions towards other parties and dispatches inbound messages.
type Node struct {
	network  *Network
	endpoint string
	me       view.Identity

	master        *session
	sessionsMutex sync.Mutex
	sessions      map[string]*session
}

// Endpoint returns the name this node joined the network with
func (n *Node) Endpoint() string {
	return n.endpoint
}

// NewSession opens a session towards the passed party on behalf of the passed caller view
func (n *Node) NewSession(callerViewID, contextID string, party view.Identity) (view.Session, error) {
	remote, err := n.network.Resolve(party)
	if err != nil {
		return nil, err
	}
	s := n.getOrCreate(utils.GenerateUUID(), contextID, callerViewID, party, remote, nil)
	logger.Debugf("[%s] new session [%s] to [%s] for [%s]", n.endpoint, s.id, remote, callerViewID)
	return s, nil
}

// NewSessionWithID returns the session bound to the passed id, creating it if needed.
// It is used to answer a session opened by a remote party.
func (n *Node) NewSessionWithID(sessionID, contextID string, caller view.Identity, msg *view.Message) (view.Session, error) {
	return n.getOrCreate(sessionID, contextID, "", caller, msg.From, msg), nil
}

// MasterSession receives the first message of every session opened by a remote party
func (n *Node) MasterSession() view.Session {
	return n.master
}

// DeleteSession closes and forgets the session with the passed id
func (n *Node) DeleteSession(sessionID string) {
	n.sessionsMutex.Lock()
	s, ok := n.sessions[sessionID]
	delete(n.sessions, sessionID)
	n.sessionsMutex.Unlock()

	if ok {
		s.Close()
	}
}

func (n *Node) getOrCreate(sessionID, contextID, callerViewID string, remoteID view.Identity, remote string, first *view.Message) *session {
	n.sessionsMutex.Lock()
	defer n.sessionsMutex.Unlock()

	if s, ok := n.sessions[sessionID]; ok {
		return s
	}
	s := newSession(n, sessionID, contextID, callerViewID, remoteID, remote)
	if first != nil {
		s.enqueue(first)
	}
	n.sessions[sessionID] = s
	return s
}

// dispatch routes an inbound message.
// Messages opening a new session are also handed to the master session.
func (n *Node) dispatch(msg *view.Message) {
	n.sessionsMutex.Lock()
	s, ok := n.sessions[msg.SessionID]
	if !ok {
		if msg.Status != view.StatusOK || len(msg.Caller) == 0 {
			n.sessionsMutex.Unlock()
			logger.Debugf("[%s] dropping message for unknown session %s", n.endpoint, msg)
			return
		}
		s = newSession(n, msg.SessionID, msg.ContextID, "", msg.FromPKID, msg.From)
		n.sessions[msg.SessionID] = s
	}
	n.sessionsMutex.Unlock()

	s.enqueue(msg)
	if !ok {
		n.master.enqueue(msg)
	}
}

func (n *Node) send(s *session, status view.Status, payload []byte) error {
	return n.network.deliver(s.remote, &view.Message{
		SessionID: s.id,
		ContextID: s.contextID,
		Caller:    s.callerViewID,
		From:      n.endpoint,
		FromPKID:  n.me,
		Status:    status,
		Payload:   payload,
	})
}

func (n *Node) closeAll() {
	n.sessionsMutex.Lock()
	sessions := n.sessions
	n.sessions = map[string]*session{}
	n.sessionsMutex.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	n.master.Close()
}
