/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"reflect"
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
)

// ResponderConstructor returns a fresh responder for every inbound session
type ResponderConstructor func() view.View

// Binding pairs an initiator with the responder constructor answering it
type Binding struct {
	InitiatedBy view.View
	Responder   ResponderConstructor
}

// Registry keeps track of the view factories and of the responder table of a node
type Registry struct {
	mutex      sync.RWMutex
	factories  map[string]view.Factory
	responders map[string]ResponderConstructor
}

func NewRegistry() *Registry {
	return &Registry{
		factories:  map[string]view.Factory{},
		responders: map[string]ResponderConstructor{},
	}
}

// RegisterFactory binds an id to a View Factory
func (r *Registry) RegisterFactory(id string, factory view.Factory) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.factories[id]; ok {
		return errors.Errorf("factory [%s] already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// NewView returns a new instance of the view registered under id, built from the passed input
func (r *Registry) NewView(id string, in []byte) (view.View, error) {
	r.mutex.RLock()
	factory, ok := r.factories[id]
	r.mutex.RUnlock()

	if !ok {
		return nil, errors.Errorf("no factory found for id [%s]", id)
	}
	v, err := factory.NewView(in)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed creating view [%s]", id)
	}
	return v, nil
}

// RegisterResponder binds a responder constructor to an initiator.
// The argument initiatedBy can be a view or a view identifier.
func (r *Registry) RegisterResponder(initiatedBy interface{}, responder ResponderConstructor) error {
	var id string
	switch t := initiatedBy.(type) {
	case view.View:
		id = GetIdentifier(t)
	case string:
		id = t
	default:
		return errors.Errorf("initiatedBy must be a view or a string, got [%T]", initiatedBy)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.responders[id]; ok {
		return errors.Errorf("responder for [%s] already registered", id)
	}
	r.responders[id] = responder
	return nil
}

// RegisterResponders installs a full responder table
func (r *Registry) RegisterResponders(bindings ...Binding) error {
	for _, b := range bindings {
		if err := r.RegisterResponder(b.InitiatedBy, b.Responder); err != nil {
			return err
		}
	}
	return nil
}

// NewResponder returns a new responder for the initiator view with the passed identifier
func (r *Registry) NewResponder(initiatorID string) (view.View, error) {
	r.mutex.RLock()
	c, ok := r.responders[initiatorID]
	r.mutex.RUnlock()

	if !ok {
		return nil, errors.Errorf("no responder registered for [%s]", initiatorID)
	}
	return c(), nil
}

// GetIdentifier returns the identifier of the passed view: its package path and type name
func GetIdentifier(f view.View) string {
	if f == nil {
		return "<nil view>"
	}
	t := reflect.TypeOf(f)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.PkgPath() + "/" + t.Name()
}

// GetName returns the type name of the passed view
func GetName(f view.View) string {
	if f == nil {
		return "<nil view>"
	}
	t := reflect.TypeOf(f)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
