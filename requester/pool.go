// Package requester implements the per-peer requester pool (C10): one
// instance per (host, port), serializing requests to that peer and
// applying a retry/jammed-detection state machine around each
// send-and-receive call.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package requester

import (
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/aistore/movefabric/msg"
	"github.com/aistore/movefabric/stats"
	"github.com/aistore/movefabric/transport"
)

// ErrTimeout marks a request that exhausted all retries without a reply.
type ErrTimeout struct{ Peer string }

func (e *ErrTimeout) Error() string { return fmt.Sprintf("requester: %s: timed out after retries", e.Peer) }

const (
	maxRetries = 3
	jammedAt   = 5
)

// Requester serializes send_and_recv calls to a single peer via a
// per-instance mutex, so concurrent callers cannot race the retry state.
type Requester struct {
	peer   string // host:port
	client *fasthttp.Client

	mu       sync.Mutex
	failures int
	jammed   bool
}

func New(peer string) *Requester {
	return &Requester{
		peer:   peer,
		client: &fasthttp.Client{MaxConnsPerHost: 8},
	}
}

// Jammed reports whether this peer has hit 5 consecutive failure blocks —
// observable by supervisors, non-fatal.
func (r *Requester) Jammed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jammed
}

// SendAndRecv sends m and waits up to timeout for a reply, making at most
// maxRetries attempts in all, one straight after another.
func (r *Requester) SendAndRecv(m *msg.Message, timeout time.Duration) (*msg.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	body, err := transport.EncodeOne(m)
	if err != nil {
		return nil, err
	}

	retries := maxRetries
	for {
		start := time.Now()
		reply, err := r.roundTrip(body, timeout)
		stats.RequestDuration.WithLabelValues(r.peer, string(m.Type)).Observe(time.Since(start).Seconds())
		if err == nil {
			r.failures = 0
			r.jammed = false
			stats.ObserveJammed(r.peer, false)
			return reply, nil
		}
		retries--
		if retries <= 0 {
			r.failures++
			if r.failures >= jammedAt {
				r.jammed = true
			}
			stats.ObserveJammed(r.peer, r.jammed)
			return nil, &ErrTimeout{Peer: r.peer}
		}
	}
}

func (r *Requester) roundTrip(body []byte, timeout time.Duration) (*msg.Message, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("http://%s/request", r.peer))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetBody(body)

	if err := r.client.DoTimeout(req, resp, timeout); err != nil {
		return nil, err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("requester: %s: status %d", r.peer, resp.StatusCode())
	}
	respBody := append([]byte(nil), resp.Body()...)
	return transport.DecodeOne(respBody)
}

// Pool owns one Requester per peer.
type Pool struct {
	mu         sync.Mutex
	requesters map[string]*Requester
}

func NewPool() *Pool {
	return &Pool{requesters: map[string]*Requester{}}
}

func (p *Pool) Get(peer string) *Requester {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.requesters[peer]
	if !ok {
		r = New(peer)
		p.requesters[peer] = r
	}
	return r
}
