package movers

import (
	"sync"
	"time"
)

// peerKey identifies a pooled connection's (host, port, user) coordinate:
// at most one pooled connection exists for any given key at a time.
type peerKey struct {
	Host, Port, User string
}

// Pool owns idle-timed connections for one mover class. Get cancels the
// peer's idle timer; Put arms a new one of idleTimeout (default 30s,
// "connection_uptime" in the original) after which the provided close
// function runs and the slot is evicted.
type Pool[T any] struct {
	mu          sync.Mutex
	conns       map[peerKey]*entry[T]
	idleTimeout time.Duration
	closeFn     func(T)
}

type entry[T any] struct {
	conn  T
	timer *time.Timer
}

func NewPool[T any](idleTimeout time.Duration, closeFn func(T)) *Pool[T] {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Second
	}
	return &Pool[T]{
		conns:       make(map[peerKey]*entry[T]),
		idleTimeout: idleTimeout,
		closeFn:     closeFn,
	}
}

// Get acquires the pooled connection for key, if any, removing it from the
// pool and cancelling its idle timer — exclusive acquisition, so that at
// most one pooled connection for a given key is ever in use at a time. The
// caller must Put it back (or close it itself) when done.
func (p *Pool[T]) Get(host, port, user string) (conn T, ok bool) {
	k := peerKey{host, port, user}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.conns[k]
	if !ok {
		var zero T
		return zero, false
	}
	e.timer.Stop()
	delete(p.conns, k)
	return e.conn, true
}

// Put installs conn for key and arms its idle-close timer, replacing any
// prior entry (the caller is responsible for having closed it first).
func (p *Pool[T]) Put(host, port, user string, conn T) {
	k := peerKey{host, port, user}
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.conns[k]; ok {
		old.timer.Stop()
	}
	timer := time.AfterFunc(p.idleTimeout, func() {
		p.mu.Lock()
		e, ok := p.conns[k]
		if ok {
			delete(p.conns, k)
		}
		p.mu.Unlock()
		if ok && p.closeFn != nil {
			p.closeFn(e.conn)
		}
	})
	p.conns[k] = &entry[T]{conn: conn, timer: timer}
}

// Evict removes and returns the entry for key without invoking closeFn,
// for callers that intend to close the connection themselves (e.g. on a
// connect error discovered after Get).
func (p *Pool[T]) Evict(host, port, user string) (conn T, ok bool) {
	k := peerKey{host, port, user}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.conns[k]
	if !ok {
		var zero T
		return zero, false
	}
	e.timer.Stop()
	delete(p.conns, k)
	return e.conn, true
}

// Drain closes every pooled connection, for deterministic shutdown.
func (p *Pool[T]) Drain() {
	p.mu.Lock()
	entries := p.conns
	p.conns = make(map[peerKey]*entry[T])
	p.mu.Unlock()
	for _, e := range entries {
		e.timer.Stop()
		if p.closeFn != nil {
			p.closeFn(e.conn)
		}
	}
}
