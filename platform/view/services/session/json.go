/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("view.session.json")

// JSONSession exchanges JSON encoded values over a view.Session
type JSONSession struct {
	s       view.Session
	context context.Context
	timeout time.Duration
}

// NewJSON opens (or reuses) a session to party on behalf of caller
func NewJSON(context view.Context, caller view.View, party view.Identity, timeout time.Duration) (*JSONSession, error) {
	s, err := context.GetSession(caller, party)
	if err != nil {
		return nil, err
	}
	return &JSONSession{s: s, context: context.Context(), timeout: timeout}, nil
}

// JSON wraps the default session of a responder context
func JSON(context view.Context, timeout time.Duration) *JSONSession {
	return &JSONSession{s: context.Session(), context: context.Context(), timeout: timeout}
}

// Wrap wraps an already open session
func Wrap(ctx context.Context, s view.Session, timeout time.Duration) *JSONSession {
	return &JSONSession{s: s, context: ctx, timeout: timeout}
}

func (j *JSONSession) Receive(state interface{}) error {
	return j.ReceiveWithTimeout(state, j.timeout)
}

func (j *JSONSession) ReceiveWithTimeout(state interface{}, d time.Duration) error {
	raw, err := ReadMessage(j.context, j.s, d)
	if err != nil {
		return err
	}
	if logger.IsEnabledFor(logging.DebugLevel) {
		logger.Debugf("json session [%s], received message [%s]", j.s.Info().ID, logging.SHA256Base64(raw))
	}
	if err := json.Unmarshal(raw, state); err != nil {
		return errors.Wrapf(err, "failed unmarshalling message on session [%s]", j.s.Info().ID)
	}
	return nil
}

func (j *JSONSession) Send(state interface{}) error {
	v, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed marshalling message")
	}
	if logger.IsEnabledFor(logging.DebugLevel) {
		logger.Debugf("json session [%s], send message [%s]", j.s.Info().ID, logging.SHA256Base64(v))
	}
	return j.s.Send(v)
}

func (j *JSONSession) SendError(err string) error {
	logger.Debugf("json session [%s], send error [%s]", j.s.Info().ID, err)
	return j.s.SendError([]byte(err))
}

func (j *JSONSession) Session() view.Session {
	return j.s
}
