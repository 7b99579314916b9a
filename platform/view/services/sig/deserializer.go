/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sig

import (
	"sync"

	"github.com/pkg/errors"
)

type Deserializer interface {
	DeserializeVerifier(raw []byte) (Verifier, error)
	DeserializeSigner(raw []byte) (Signer, error)
}

// MultiplexDeserializer tries its deserializers in order
type MultiplexDeserializer struct {
	deserializersMutex sync.RWMutex
	deserializers      []Deserializer
}

func NewMultiplexDeserializer(deserializers ...Deserializer) *MultiplexDeserializer {
	return &MultiplexDeserializer{deserializers: deserializers}
}

func (d *MultiplexDeserializer) AddDeserializer(newD Deserializer) {
	d.deserializersMutex.Lock()
	d.deserializers = append(d.deserializers, newD)
	d.deserializersMutex.Unlock()
}

func (d *MultiplexDeserializer) DeserializeVerifier(raw []byte) (Verifier, error) {
	var errs []error
	for _, des := range d.threadSafeCopyDeserializers() {
		logger.Debugf("trying deserialization with [%v]", des)
		v, err := des.DeserializeVerifier(raw)
		if err == nil {
			return v, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Errorf("failed deserialization [%v]", errs)
}

func (d *MultiplexDeserializer) DeserializeSigner(raw []byte) (Signer, error) {
	var errs []error
	for _, des := range d.threadSafeCopyDeserializers() {
		logger.Debugf("trying signer deserialization with [%v]", des)
		v, err := des.DeserializeSigner(raw)
		if err == nil {
			return v, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Errorf("failed signer deserialization [%v]", errs)
}

func (d *MultiplexDeserializer) threadSafeCopyDeserializers() []Deserializer {
	d.deserializersMutex.RLock()
	res := make([]Deserializer, len(d.deserializers))
	copy(res, d.deserializers)
	d.deserializersMutex.RUnlock()
	return res
}
