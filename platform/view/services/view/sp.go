/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var ServiceNotFound = errors.New("service not found")

// ServiceProvider looks services up by type.
// A lookup by interface returns the first registered service implementing it.
type ServiceProvider struct {
	lock       sync.Mutex
	services   []interface{}
	serviceMap map[reflect.Type]interface{}
}

func NewServiceProvider() *ServiceProvider {
	return &ServiceProvider{serviceMap: map[reflect.Type]interface{}{}}
}

// GetService accepts a reflect.Type, a pointer to an interface or a value of the wanted type
func (sp *ServiceProvider) GetService(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, errors.New("nil service type")
	}
	typ, ok := v.(reflect.Type)
	if !ok {
		typ = reflect.TypeOf(v)
	}
	if typ.Kind() == reflect.Ptr && typ.Elem().Kind() == reflect.Interface {
		typ = typ.Elem()
	}

	sp.lock.Lock()
	defer sp.lock.Unlock()

	if s, ok := sp.serviceMap[typ]; ok {
		return s, nil
	}
	for _, s := range sp.services {
		st := reflect.TypeOf(s)
		if st == typ || (typ.Kind() == reflect.Interface && st.Implements(typ)) {
			sp.serviceMap[typ] = s
			return s, nil
		}
	}
	return nil, errors.Wrapf(ServiceNotFound, "type [%s]", typ)
}

func (sp *ServiceProvider) RegisterService(service interface{}) error {
	if service == nil {
		return errors.New("cannot register a nil service")
	}
	sp.lock.Lock()
	defer sp.lock.Unlock()

	logger.Debugf("register service [%T]", service)
	sp.services = append(sp.services, service)
	return nil
}

func (sp *ServiceProvider) String() string {
	sp.lock.Lock()
	defer sp.lock.Unlock()

	names := make([]string, 0, len(sp.services))
	for _, s := range sp.services {
		names = append(names, fmt.Sprintf("%T", s))
	}
	return "services [" + strings.Join(names, ", ") + "]"
}
