// Package deferred implements the deferred-delete queue (C4): a single
// worker that removes a path once its deadline elapses, tolerating a
// missing file as a non-error.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package deferred

import (
	"container/heap"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/aistore/movefabric/cmn/debug"
	"github.com/aistore/movefabric/cmn/nlog"
)

const DefaultRemoveDelay = 30 * time.Second

// StatField selects which inode timestamp a consumer of this package might
// want to compare deletions against; unifies the original's unused
// st_time_method (remove_it) with FilesCleaner's stat_time_checker into
// the single field every Entry carries.
type StatField int

const (
	StatMTime StatField = iota
	StatCTime
)

// Publisher is the minimal hook deferred needs to announce a deletion; the
// producer/mirror supply an adapter over their transport publisher.
type Publisher interface {
	PublishDel(topic, uri string)
}

type Entry struct {
	Path      string
	Deadline  time.Time
	Topic     string // "/deletion" by convention; empty disables publish
	URI       string // announced uri, usually the original destination
	StatField StatField
}

type item struct {
	entry Entry
	index int
}

type pq []*item

func (q pq) Len() int            { return len(q) }
func (q pq) Less(i, j int) bool  { return q[i].entry.Deadline.Before(q[j].entry.Deadline) }
func (q pq) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index, q[j].index = i, j }
func (q *pq) Push(x any)         { it := x.(*item); it.index = len(*q); *q = append(*q, it) }
func (q *pq) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// Queue is the worker loop backing C4: Add enqueues a path for removal
// after a delay; the worker sleeps until the head deadline, removes the
// file (or rmdir's an empty directory), and repeats. The worker never dies
// on a single failure — any OSError other than ENOENT is logged and
// swallowed.
type Queue struct {
	mu     sync.Mutex
	pq     pq
	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	pub    Publisher
	remove func(string) error // seam for tests
}

func New(pub Publisher) *Queue {
	q := &Queue{
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		pub:    pub,
		remove: os.Remove,
	}
	heap.Init(&q.pq)
	return q
}

// Add schedules path for removal after delay (default DefaultRemoveDelay).
func (q *Queue) Add(path string, delay time.Duration, topic, uri string, sf StatField) {
	if delay <= 0 {
		delay = DefaultRemoveDelay
	}
	q.mu.Lock()
	heap.Push(&q.pq, &item{entry: Entry{
		Path: path, Deadline: time.Now().Add(delay), Topic: topic, URI: uri, StatField: sf,
	}})
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Run blocks, processing deadlines until Stop is called.
func (q *Queue) Run() {
	defer close(q.done)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		q.mu.Lock()
		var wait time.Duration
		if q.pq.Len() == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(q.pq[0].entry.Deadline)
			if wait < 0 {
				wait = 0
			}
		}
		q.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-q.stop:
			return
		case <-q.wake:
			continue
		case <-timer.C:
			q.popAndDelete()
		}
	}
}

func (q *Queue) popAndDelete() {
	q.mu.Lock()
	if q.pq.Len() == 0 {
		q.mu.Unlock()
		return
	}
	if time.Now().Before(q.pq[0].entry.Deadline) {
		q.mu.Unlock()
		return
	}
	it := heap.Pop(&q.pq).(*item)
	q.mu.Unlock()

	q.delete(it.entry)
}

func (q *Queue) delete(e Entry) {
	fi, statErr := os.Stat(e.Path)
	var err error
	if statErr == nil && fi.IsDir() {
		err = os.Remove(e.Path) // rmdir; no publish for directory deletes
		if err == nil {
			return
		}
	} else {
		err = q.remove(e.Path)
	}

	if err == nil {
		if q.pub != nil && e.Topic != "" {
			q.pub.PublishDel(e.Topic, e.URI)
		}
		return
	}
	if errors.Is(err, os.ErrNotExist) {
		debug.Infof("deferred: %s already gone: %v", e.Path, err)
		return
	}
	nlog.Warningf("deferred: remove %s: %v", e.Path, err)
}

// Stop signals the worker to exit and waits for it to do so.
func (q *Queue) Stop() {
	close(q.stop)
	<-q.done
}

// Len reports the number of pending deletions, for tests and metrics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.Len()
}
