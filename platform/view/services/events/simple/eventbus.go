/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package simple

import (
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/events"
)

// EventBus is an in-process events.EventSystem.
// Listeners are invoked in the publisher's goroutine.
type EventBus struct {
	handlers map[string][]events.Listener
	lock     sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[string][]events.Listener)}
}

func (e *EventBus) Publish(event events.Event) {
	if event == nil {
		return
	}

	e.lock.RLock()
	subs := make([]events.Listener, len(e.handlers[event.Topic()]))
	copy(subs, e.handlers[event.Topic()])
	e.lock.RUnlock()

	// listeners may unsubscribe while being notified
	for _, sub := range subs {
		sub.OnReceive(event)
	}
}

func (e *EventBus) Subscribe(topic string, receiver events.Listener) {
	if receiver == nil {
		return
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	e.handlers[topic] = append(e.handlers[topic], receiver)
}

func (e *EventBus) Unsubscribe(topic string, receiver events.Listener) {
	if receiver == nil {
		return
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	handlers, ok := e.handlers[topic]
	if !ok {
		return
	}
	idx := findIndex(handlers, receiver)
	if idx == -1 {
		return
	}

	last := len(handlers) - 1
	handlers[idx] = handlers[last]
	handlers[last] = nil
	handlers = handlers[:last]

	if len(handlers) > 0 {
		e.handlers[topic] = handlers
	} else {
		delete(e.handlers, topic)
	}
}

// Topics returns the number of topics with at least one listener
func (e *EventBus) Topics() int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return len(e.handlers)
}

// findIndex returns the position of receiver in handlers, -1 if not found
func findIndex(handlers []events.Listener, receiver events.Listener) int {
	for i, h := range handlers {
		if h == receiver {
			return i
		}
	}
	return -1
}
