// Package mirror implements the mirror role (C11): it re-advertises
// producer announcements under its own request_address and, on a
// downstream push, fetches the file from the first reachable upstream
// source before serving it onward exactly like a producer would.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/aistore/movefabric/cmn/nlog"
	"github.com/aistore/movefabric/config"
	"github.com/aistore/movefabric/deferred"
	"github.com/aistore/movefabric/movers"
	"github.com/aistore/movefabric/msg"
	"github.com/aistore/movefabric/requester"
	"github.com/aistore/movefabric/transport"
	"github.com/aistore/movefabric/urlutil"
)

// Mirror owns one chain's upstream subscriptions plus its own
// request-serving endpoint.
type Mirror struct {
	cfg      *config.Chain
	pub      *transport.Publisher
	host     string
	localDir string
	delay    time.Duration

	pool    *requester.Pool
	deleter *deferred.Queue

	mu       sync.Mutex
	registry map[string][]*msg.Message // uid -> every announcement seen for it

	subs []*transport.Subscriber
	srv  *fasthttp.Server
}

func New(cfg *config.Chain, pub *transport.Publisher, host, cacheDir string, delay time.Duration) *Mirror {
	return &Mirror{
		cfg:      cfg,
		pub:      pub,
		host:     host,
		localDir: cacheDir,
		delay:    delay,
		pool:     requester.NewPool(),
		deleter:  deferred.New(pubDelAdapter{pub}),
		registry: map[string][]*msg.Message{},
	}
}

type pubDelAdapter struct{ pub *transport.Publisher }

func (a pubDelAdapter) PublishDel(topic, uri string) { a.pub.PublishDel(topic, uri) }

// Run subscribes to every upstream provider and serves the request
// endpoint until Stop shuts it down. With no request port configured it
// blocks forever; Stop then does not make it return.
func (m *Mirror) Run() error {
	go m.deleter.Run()
	for _, provider := range m.cfg.Providers {
		sub := transport.NewSubscriber(provider, m.cfg.Topic)
		m.subs = append(m.subs, sub)
		go sub.Run(m.onAnnounce)
	}
	if m.cfg.RequestPort > 0 {
		m.srv = &fasthttp.Server{Handler: m.handle}
		return m.srv.ListenAndServe(fmt.Sprintf(":%d", m.cfg.RequestPort))
	}
	select {}
}

func (m *Mirror) Stop() {
	for _, s := range m.subs {
		s.Close()
	}
	m.deleter.Stop()
	if m.srv != nil {
		m.srv.Shutdown()
	}
}

// onAnnounce registers uid's source and, the first time it is seen,
// re-publishes a clone carrying the mirror's own request_address.
func (m *Mirror) onAnnounce(src *msg.Message) {
	uid, ok := firstUID(src)
	if !ok {
		return
	}

	m.mu.Lock()
	_, exists := m.registry[uid]
	m.registry[uid] = append(m.registry[uid], src)
	m.mu.Unlock()
	if exists {
		return
	}

	clone := cloneMessage(src)
	clone.Data["request_address"] = fmt.Sprintf("%s:%d", m.host, m.cfg.RequestPort)
	clone.Sender = m.cfg.Name

	if m.delay <= 0 {
		m.pub.Publish(clone)
		return
	}
	time.AfterFunc(m.delay, func() { m.pub.Publish(clone) })
}

func firstUID(m *msg.Message) (string, bool) {
	uids := m.UIDs()
	if len(uids) == 0 {
		return "", false
	}
	return uids[0], true
}

func cloneMessage(src *msg.Message) *msg.Message {
	data := make(map[string]any, len(src.Data))
	for k, v := range src.Data {
		data[k] = v
	}
	return msg.New(src.Subject, src.Type, src.Sender, data)
}

func (m *Mirror) handle(ctx *fasthttp.RequestCtx) {
	req, err := transport.DecodeOne(ctx.PostBody())
	if err != nil {
		nlog.Warningf("mirror[%s]: malformed request: %v", m.cfg.Name, err)
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	reply := m.dispatch(req)
	body, err := transport.EncodeOne(reply)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/octet-stream")
	ctx.SetBody(body)
}

func (m *Mirror) dispatch(req *msg.Message) *msg.Message {
	switch req.Type {
	case msg.TypePing:
		return msg.New(req.Subject, msg.TypePong, m.cfg.Name, map[string]any{"station": m.cfg.Station})
	case msg.TypePush:
		return m.handlePush(req)
	case msg.TypeAck:
		for _, f := range req.Files() {
			m.scheduleDelete(f.UID)
		}
		return msg.New(req.Subject, msg.TypeAck, m.cfg.Name, nil)
	default:
		return msg.New(req.Subject, msg.TypeUnknown, m.cfg.Name, nil)
	}
}

// handlePush ensures every requested uid is present in the local cache
// (fetching it from the first reachable upstream source if not), then
// delegates to the ordinary mover-copy path to deliver it downstream.
func (m *Mirror) handlePush(req *msg.Message) *msg.Message {
	files := req.Files()
	if len(files) == 0 {
		return msg.New(req.Subject, msg.TypeErr, m.cfg.Name, map[string]any{"error": "no files in push"})
	}
	destination, _ := req.Data["destination"].(string)

	out := make([]map[string]any, 0, len(files))
	for _, f := range files {
		if err := m.ensureLocal(f.UID); err != nil {
			return msg.New(req.Subject, msg.TypeErr, m.cfg.Name, map[string]any{"error": err.Error()})
		}
		cleanDest, err := movers.Copy(context.Background(), filepath.Join(m.localDir, f.UID), destination, movers.Params{})
		if err != nil {
			nlog.Warningf("mirror[%s]: deliver %s: %v", m.cfg.Name, f.UID, err)
			return msg.New(req.Subject, msg.TypeErr, m.cfg.Name, map[string]any{"error": err.Error()})
		}
		out = append(out, map[string]any{"uid": f.UID, "uri": "file://" + filepath.Join(m.localDir, f.UID), "destination": urlutil.Clean(cleanDest)})
	}

	if len(out) == 1 {
		return msg.New(req.Subject, msg.TypeFile, m.cfg.Name, out[0])
	}
	dataset := make([]any, len(out))
	for i, o := range out {
		dataset[i] = o
	}
	return msg.New(req.Subject, msg.TypeDataset, m.cfg.Name, map[string]any{"dataset": dataset})
}

// ensureLocal fetches uid into the local cache from the first upstream
// source that succeeds, a no-op if it is already present.
func (m *Mirror) ensureLocal(uid string) error {
	localPath := filepath.Join(m.localDir, uid)
	if _, err := os.Stat(localPath); err == nil {
		return nil
	}

	m.mu.Lock()
	sources := append([]*msg.Message(nil), m.registry[uid]...)
	m.mu.Unlock()

	if err := os.MkdirAll(m.localDir, 0o777); err != nil {
		return fmt.Errorf("mirror: mkdir %s: %w", m.localDir, err)
	}

	var lastErr error
	for _, src := range sources {
		addr, _ := src.Data["request_address"].(string)
		if addr == "" {
			continue
		}
		uri := "file://" + uid
		for _, f := range src.Files() {
			if f.UID == uid {
				uri = f.URI
				break
			}
		}
		push := msg.New(src.Subject, msg.TypePush, m.cfg.Name, map[string]any{
			"uid": uid, "uri": uri,
			"destination": "file://" + localPath,
		})
		reply, err := m.pool.Get(addr).SendAndRecv(push, m.cfg.TransferReqTimeout)
		if err != nil {
			lastErr = err
			continue
		}
		if reply.Type == msg.TypeErr {
			lastErr = fmt.Errorf("%v", reply.Data["error"])
			continue
		}
		if _, err := os.Stat(localPath); err == nil {
			return nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("mirror: no upstream source registered for %q", uid)
	}
	return fmt.Errorf("mirror: fetch %q: %w", uid, lastErr)
}

func (m *Mirror) scheduleDelete(uid string) {
	path := filepath.Join(m.localDir, uid)
	m.deleter.Add(path, m.cfg.DeleteAfter, "/deletion", "file://"+path, deferred.StatMTime)
	m.mu.Lock()
	delete(m.registry, uid)
	m.mu.Unlock()
}
