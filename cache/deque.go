// Package cache implements the bounded, mutex-guarded deques shared by the
// producer (file cache, maxlen 61000) and the consumer (dedupe cache,
// maxlen 11000).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cache

import (
	"strings"
	"sync"
)

// Deque is a newest-first bounded ring of strings with O(1) membership
// testing via a companion set. Pushing past Maxlen evicts the oldest
// entry, which is then treated as "first seen" again on next arrival.
type Deque struct {
	mu     sync.Mutex
	maxlen int
	order  []string // index 0 is newest
	set    map[string]struct{}
}

func New(maxlen int) *Deque {
	return &Deque{
		maxlen: maxlen,
		set:    make(map[string]struct{}, maxlen),
	}
}

// Push adds entry at the front, evicting the oldest if over capacity.
// No-op if entry is already present (left at its current position,
// matching the original deque's de-facto behavior of not reordering on a
// duplicate push).
func (d *Deque) Push(entry string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.set[entry]; ok {
		return
	}
	d.order = append([]string{entry}, d.order...)
	d.set[entry] = struct{}{}
	if len(d.order) > d.maxlen {
		evicted := d.order[len(d.order)-1]
		d.order = d.order[:len(d.order)-1]
		delete(d.set, evicted)
	}
}

func (d *Deque) Contains(entry string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.set[entry]
	return ok
}

// Prefix returns up to maxCount entries whose value starts with prefix,
// newest first — used by C7's info handler.
func (d *Deque) Prefix(prefix string, maxCount int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, e := range d.order {
		if !strings.HasPrefix(e, prefix) {
			continue
		}
		out = append(out, e)
		if len(out) >= maxCount {
			break
		}
	}
	return out
}

func (d *Deque) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}
