/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package utils

import (
	"reflect"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/pkg/errors"
	"go.uber.org/dig"
)

var logger = logging.MustGetLogger("dig-utils")

// Registry is the service provider views look their services up in
type Registry interface {
	GetService(v interface{}) (interface{}, error)
	RegisterService(service interface{}) error
}

type invoker interface {
	Invoke(function interface{}, opts ...dig.InvokeOption) error
}

// Register builds the service of type T and hands it to the Registry of the same container
func Register[T any](c invoker) error {
	return errors.Wrapf(c.Invoke(func(r Registry, service T) error {
		return r.RegisterService(service)
	}), "failed registering [%s]", typeName[T]())
}

// RegisterOptional is Register for services the container may not provide, those are skipped
func RegisterOptional[T any](c invoker) error {
	return errors.Wrapf(c.Invoke(func(in struct {
		dig.In
		Registry Registry
		Service  T `optional:"true"`
	}) error {
		if v := reflect.ValueOf(in.Service); !v.IsValid() || v.IsZero() {
			logger.Debugf("[%s] not provided, skipping registration", typeName[T]())
			return nil
		}
		return in.Registry.RegisterService(in.Service)
	}), "failed registering [%s]", typeName[T]())
}

// Identity provides a value already in the container under another type, see dig.As
func Identity[T any]() func(T) T {
	return func(t T) T {
		return t
	}
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
