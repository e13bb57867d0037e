// Package lru provides the eviction-selection logic shared by the tiered
// cache and the model lifecycle manager. Both components evict by picking
// the oldest entry; the cache tracks access order explicitly, the lifecycle
// manager tracks last-used timestamps.
package lru

import (
	"container/list"
	"time"
)

// Tracker maintains a set of string keys in access order, oldest first.
// It is not safe for concurrent use; callers hold their own locks.
type Tracker struct {
	order *list.List
	items map[string]*list.Element
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

// Touch records an access to key, inserting it if absent and moving it to
// the most-recent position otherwise.
func (t *Tracker) Touch(key string) {
	if el, ok := t.items[key]; ok {
		t.order.MoveToBack(el)
		return
	}
	t.items[key] = t.order.PushBack(key)
}

// Contains reports whether key is tracked.
func (t *Tracker) Contains(key string) bool {
	_, ok := t.items[key]
	return ok
}

// Oldest returns the least recently touched key, if any.
func (t *Tracker) Oldest() (string, bool) {
	front := t.order.Front()
	if front == nil {
		return "", false
	}
	return front.Value.(string), true
}

// Remove drops key from the tracker. Unknown keys are ignored.
func (t *Tracker) Remove(key string) {
	el, ok := t.items[key]
	if !ok {
		return
	}
	t.order.Remove(el)
	delete(t.items, key)
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int {
	return t.order.Len()
}

// Keys returns all tracked keys, oldest first.
func (t *Tracker) Keys() []string {
	keys := make([]string, 0, t.order.Len())
	for el := t.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(string))
	}
	return keys
}

// Clear removes all tracked keys.
func (t *Tracker) Clear() {
	t.order.Init()
	t.items = make(map[string]*list.Element)
}

// OldestByTime returns the key with the earliest timestamp. Equal timestamps
// are broken by the lexicographically smaller key so repeated calls over the
// same map always agree.
func OldestByTime(lastUsed map[string]time.Time) (string, bool) {
	var (
		oldest string
		when   time.Time
		found  bool
	)
	for key, ts := range lastUsed {
		if !found || ts.Before(when) || (ts.Equal(when) && key < oldest) {
			oldest = key
			when = ts
			found = true
		}
	}
	return oldest, found
}
