/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cache

import (
	"container/list"
	"fmt"
	"sync"
)

// NewLRUCache returns a cache holding at least size entries.
// Once size+buffer entries are reached, the oldest insertions are evicted in one batch
// until size entries are left, and onEvict is called with them.
// Overwriting an entry does not refresh its position.
func NewLRUCache[K comparable, V any](size, buffer int, onEvict func(map[K]V)) *lruCache[K, V] {
	if onEvict == nil {
		onEvict = func(map[K]V) {}
	}
	return &lruCache[K, V]{
		m:       map[K]V{},
		order:   list.New(),
		entries: map[K]*list.Element{},
		size:    size,
		buffer:  buffer,
		onEvict: onEvict,
	}
}

type lruCache[K comparable, V any] struct {
	l       sync.RWMutex
	m       map[K]V
	order   *list.List
	entries map[K]*list.Element
	size    int
	buffer  int
	onEvict func(map[K]V)
}

func (c *lruCache[K, V]) String() string {
	return fmt.Sprintf("Content: [%v], size: [%d], buffer: [%d]", c.m, c.size, c.buffer)
}

func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.l.RLock()
	defer c.l.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *lruCache[K, V]) Put(key K, value V) {
	c.l.Lock()
	defer c.l.Unlock()
	c.put(key, value)
}

func (c *lruCache[K, V]) Update(key K, f func(bool, V) (bool, V)) bool {
	c.l.Lock()
	defer c.l.Unlock()
	v, ok := c.m[key]
	keep, newValue := f(ok, v)
	if !keep {
		c.delete(key)
	} else {
		c.put(key, newValue)
	}
	return ok
}

func (c *lruCache[K, V]) Delete(keys ...K) {
	c.l.Lock()
	defer c.l.Unlock()
	for _, key := range keys {
		c.delete(key)
	}
}

func (c *lruCache[K, V]) Len() int {
	c.l.RLock()
	defer c.l.RUnlock()
	return len(c.m)
}

func (c *lruCache[K, V]) put(key K, value V) {
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = c.order.PushBack(key)
	}
	c.m[key] = value
	if len(c.m) <= c.size+c.buffer {
		return
	}
	evicted := make(map[K]V, len(c.m)-c.size)
	for len(c.m) > c.size {
		k := c.order.Front().Value.(K)
		evicted[k] = c.m[k]
		c.delete(k)
	}
	logger.Debugf("evicted [%d] entries", len(evicted))
	c.onEvict(evicted)
}

func (c *lruCache[K, V]) delete(key K) {
	if e, ok := c.entries[key]; ok {
		c.order.Remove(e)
		delete(c.entries, key)
	}
	delete(c.m, key)
}
