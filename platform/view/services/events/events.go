/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package events

// Event is published on a topic
type Event interface {
	Topic() string
	Message() interface{}
}

// Listener is notified of the events published on the topics it subscribed to.
// OnReceive is invoked synchronously by the publisher and must not block.
type Listener interface {
	OnReceive(event Event)
}

type Publisher interface {
	Publish(event Event)
}

type Subscriber interface {
	Subscribe(topic string, receiver Listener)
	Unsubscribe(topic string, receiver Listener)
}

type EventSystem interface {
	Publisher
	Subscriber
}

// ChannelListener forwards the received events to a buffered channel.
// Events are dropped when the channel is full.
type ChannelListener struct {
	ch chan Event
}

func NewChannelListener(capacity int) *ChannelListener {
	return &ChannelListener{ch: make(chan Event, capacity)}
}

func (l *ChannelListener) OnReceive(event Event) {
	select {
	case l.ch <- event:
	default:
		logger.Warnf("dropping event on topic [%s], listener buffer full", event.Topic())
	}
}

func (l *ChannelListener) Events() <-chan Event {
	return l.ch
}

// GenericEvent carries an arbitrary message on a topic
type GenericEvent struct {
	EventTopic string
	Payload    interface{}
}

func (e *GenericEvent) Topic() string {
	return e.EventTopic
}

func (e *GenericEvent) Message() interface{} {
	return e.Payload
}
