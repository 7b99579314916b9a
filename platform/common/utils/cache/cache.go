/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cache

import (
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
)

var logger = logging.MustGetLogger("common.utils.cache")

// Map is a concurrency-safe key-value cache
type Map[K comparable, V any] interface {
	Get(K) (V, bool)
	Put(K, V)
	// Update applies f to the current value, if any. f returns whether to keep the entry and its new value.
	Update(K, func(bool, V) (bool, V)) bool
	Delete(...K)
	Len() int
}

// NewMapCache returns an unbounded cache
func NewMapCache[K comparable, V any]() Map[K, V] {
	return &mapCache[K, V]{m: map[K]V{}}
}

type mapCache[K comparable, V any] struct {
	mutex sync.RWMutex
	m     map[K]V
}

func (c *mapCache[K, V]) Get(key K) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache[K, V]) Put(key K, value V) {
	c.mutex.Lock()
	c.m[key] = value
	c.mutex.Unlock()
}

func (c *mapCache[K, V]) Update(key K, f func(bool, V) (bool, V)) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	v, ok := c.m[key]
	if keep, next := f(ok, v); keep {
		c.m[key] = next
	} else {
		delete(c.m, key)
	}
	return ok
}

func (c *mapCache[K, V]) Delete(keys ...K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, key := range keys {
		delete(c.m, key)
	}
}

func (c *mapCache[K, V]) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.m)
}
