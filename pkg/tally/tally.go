package tally

import (
	"container/list"
)

type entry[K comparable] struct {
	key   K
	count int
}

// Counter is a multiset keyed by K. Missing keys read as zero and keys
// iterate in first-insertion order, so callers walking a Counter see the
// same sequence on every run. Not safe for concurrent use.
type Counter[K comparable] struct {
	data map[K]*list.Element
	ll   *list.List
	sum  int
}

func New[K comparable]() *Counter[K] {
	return &Counter[K]{
		data: make(map[K]*list.Element),
		ll:   list.New(),
	}
}

// Add increments key by n. A key whose count drops to zero or below is removed.
func (c *Counter[K]) Add(key K, n int) int {
	if el, ok := c.data[key]; ok {
		e := el.Value.(*entry[K])
		e.count += n
		c.sum += n
		if e.count <= 0 {
			c.removeElement(el)
			return 0
		}
		return e.count
	}
	if n <= 0 {
		return 0
	}
	e := &entry[K]{key: key, count: n}
	c.data[key] = c.ll.PushBack(e)
	c.sum += n
	return n
}

// Inc is Add(key, 1).
func (c *Counter[K]) Inc(key K) int {
	return c.Add(key, 1)
}

// Get returns the count for key, zero when absent.
func (c *Counter[K]) Get(key K) int {
	if el, ok := c.data[key]; ok {
		return el.Value.(*entry[K]).count
	}
	return 0
}

func (c *Counter[K]) Has(key K) bool {
	return c.Get(key) > 0
}

func (c *Counter[K]) Delete(key K) bool {
	if el, ok := c.data[key]; ok {
		c.removeElement(el)
		return true
	}
	return false
}

// Len is the number of distinct keys.
func (c *Counter[K]) Len() int {
	return len(c.data)
}

// Total is the sum of all counts.
func (c *Counter[K]) Total() int {
	return c.sum
}

// Keys returns a copy of the keys in insertion order.
func (c *Counter[K]) Keys() []K {
	out := make([]K, 0, len(c.data))
	for el := c.ll.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry[K]).key)
	}
	return out
}

// Each calls fn for every key in insertion order. fn must not mutate c.
func (c *Counter[K]) Each(fn func(key K, count int)) {
	for el := c.ll.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[K])
		fn(e.key, e.count)
	}
}

// MergeInto adds every count of c into dst and leaves c empty.
func (c *Counter[K]) MergeInto(dst *Counter[K]) {
	for el := c.ll.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[K])
		dst.Add(e.key, e.count)
	}
	c.Clear()
}

func (c *Counter[K]) Clear() {
	clear(c.data)
	c.ll.Init()
	c.sum = 0
}

func (c *Counter[K]) removeElement(el *list.Element) {
	e := el.Value.(*entry[K])
	delete(c.data, e.key)
	c.sum -= e.count
	c.ll.Remove(el)
}
