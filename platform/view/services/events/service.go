/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	"context"
	"reflect"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("view.events")

// Service is the event system of a node
type Service struct {
	EventSystem
}

func NewService(system EventSystem) *Service {
	return &Service{EventSystem: system}
}

func GetService(sp view.ServiceProvider) (*Service, error) {
	s, err := sp.GetService(reflect.TypeOf((*Service)(nil)))
	if err != nil {
		return nil, errors.Wrap(err, "cannot get event service")
	}
	return s.(*Service), nil
}

// Wait returns the result of lookup if it already holds, otherwise the message of the
// next event on topic. The subscription is taken before lookup runs, no event is lost.
func (s *Service) Wait(ctx context.Context, topic string, lookup func() (interface{}, bool)) (interface{}, error) {
	listener := NewChannelListener(1)
	s.Subscribe(topic, listener)
	defer s.Unsubscribe(topic, listener)

	if res, ok := lookup(); ok {
		return res, nil
	}
	select {
	case e := <-listener.Events():
		return e.Message(), nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "waiting on [%s]", topic)
	}
}
