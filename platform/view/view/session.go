/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"fmt"
)

// Status tells a regular payload from an error raised by the remote view
type Status int32

const (
	StatusOK Status = iota
	StatusError
)

func (s Status) String() string {
	if s == StatusError {
		return "error"
	}
	return "ok"
}

// Message is the unit delivered on a session
type Message struct {
	SessionID string
	ContextID string
	// Caller is the identifier of the view that opened the session
	Caller string
	// From is the name of the sending node
	From     string
	FromPKID Identity
	Status   Status
	Payload  []byte
}

func (m *Message) String() string {
	return fmt.Sprintf("[session:%s,context:%s,caller:%s,from:%s,status:%s]", m.SessionID, m.ContextID, m.Caller, m.From, m.Status)
}

type SessionInfo struct {
	ID           string
	Caller       Identity
	CallerViewID string
	Remote       string
	Closed       bool
}

func (i *SessionInfo) String() string {
	return fmt.Sprintf("session [%s] with [%s@%s], closed [%v]", i.ID, i.Caller, i.Remote, i.Closed)
}

// Session is a bidirectional channel between two views running on different nodes
type Session interface {
	Info() SessionInfo

	Send(payload []byte) error

	// SendError delivers payload with StatusError, the remote side turns it into an error
	SendError(payload []byte) error

	// Receive returns the channel of inbound messages, closed with the session
	Receive() <-chan *Message

	Close()
}
