/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package session

import (
	"context"
	"time"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

// DefaultTimeout bounds every receive that does not set its own timeout
const DefaultTimeout = time.Minute

var (
	// ErrTimeout is returned when no message arrives in time
	ErrTimeout = errors.New("time out reached")
	// ErrClosed is returned when the session is closed while waiting
	ErrClosed = errors.New("session closed")
)

// RemoteError carries the payload of an error message sent by the other end
type RemoteError struct {
	Reason string
}

func (e *RemoteError) Error() string {
	return "received error from remote [" + e.Reason + "]"
}

// ReadMessage waits for the next message on the passed session.
// Error messages are returned as *RemoteError.
func ReadMessage(ctx context.Context, s view.Session, d time.Duration) ([]byte, error) {
	if d <= 0 {
		d = DefaultTimeout
	}
	timeout := time.NewTimer(d)
	defer timeout.Stop()

	select {
	case msg, ok := <-s.Receive():
		if !ok {
			return nil, ErrClosed
		}
		if msg.Status == view.StatusError {
			return nil, &RemoteError{Reason: string(msg.Payload)}
		}
		return msg.Payload, nil
	case <-timeout.C:
		return nil, errors.Wrapf(ErrTimeout, "waiting on session [%s] for [%s]", s.Info().ID, d)
	case <-ctx.Done():
		return nil, errors.Errorf("context done [%s]", ctx.Err())
	}
}

// ReadFirstMessage reads the message that opened the default session of a responder context
func ReadFirstMessage(context view.Context, d time.Duration) (view.Session, []byte, error) {
	s := context.Session()
	if s == nil {
		return nil, nil, errors.New("no session bound to the context")
	}
	payload, err := ReadMessage(context.Context(), s, d)
	if err != nil {
		return nil, nil, err
	}
	return s, payload, nil
}
