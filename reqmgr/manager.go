// Package reqmgr implements the request manager: the server-side
// dispatch table behind ping/push/ack/info, serving a ROUTER-socket
// substitute built on fasthttp (see transport/).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package reqmgr

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/aistore/movefabric/cmn/nlog"
	"github.com/aistore/movefabric/deferred"
	"github.com/aistore/movefabric/movers"
	"github.com/aistore/movefabric/msg"
	"github.com/aistore/movefabric/pattern"
	"github.com/aistore/movefabric/transport"
	"github.com/aistore/movefabric/urlutil"
)

// FileCache is the producer-side bounded deque used to answer info
// requests and authorize ack/delete.
type FileCache interface {
	Push(entry string)
	Contains(entry string) bool
	Prefix(prefix string, maxCount int) []string
}

// Manager owns one chain's request-serving endpoint.
type Manager struct {
	ChainName     string
	Station       string
	OriginPattern string
	MaxCount      int
	Params        movers.Params

	Cache   FileCache
	Deleter *deferred.Queue
	DeleteAfter time.Duration
	Compression string
	DeleteOnPush bool

	srv       *fasthttp.Server
	startedAt time.Time
}

func New(m Manager) *Manager {
	mgr := m
	if mgr.MaxCount <= 0 {
		mgr.MaxCount = 2256
	}
	mgr.startedAt = time.Now()
	return &mgr
}

// ListenAndServe serves the ROUTER-socket substitute on addr.
func (m *Manager) ListenAndServe(addr string) error {
	m.srv = &fasthttp.Server{Handler: m.handle}
	return m.srv.ListenAndServe(addr)
}

func (m *Manager) Close() error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown()
}

func (m *Manager) handle(ctx *fasthttp.RequestCtx) {
	req, err := transport.DecodeOne(ctx.PostBody())
	if err != nil {
		nlog.Warningf("reqmgr[%s]: malformed request: %v", m.ChainName, err)
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

func (m *Manager) dispatch(req *msg.Message) *msg.Message {
	switch req.Type {
	case msg.TypePing:
		return msg.New(req.Subject, msg.TypePong, m.ChainName, map[string]any{"station": m.stationOrDefault()})
	case msg.TypePush:
		return m.handlePush(req)
	case msg.TypeAck:
		return m.handleAck(req)
	case msg.TypeInfo:
		return m.handleInfo(req)
	default:
		return msg.New(req.Subject, msg.TypeUnknown, m.ChainName, nil)
	}
}

func (m *Manager) stationOrDefault() string {
	if m.Station == "" {
		return "unknown"
	}
	return m.Station
}

// validate checks basename(uri) against the chain's origin_pattern glob.
func (m *Manager) validate(uri string) bool {
	if m.OriginPattern == "" {
		return true
	}
	ok, err := filepath.Match(filepath.Base(pattern.Globify(m.OriginPattern)), filepath.Base(uri))
	return err == nil && ok
}

func (m *Manager) handlePush(req *msg.Message) *msg.Message {
	files := req.Files()
	if len(files) == 0 {
		return msg.New(req.Subject, msg.TypeErr, m.ChainName, map[string]any{"error": "no files in push"})
	}
	destination, _ := req.Data["destination"].(string)
	var backups []string
	if bt, ok := req.Data["backup_targets"].([]any); ok {
		for _, b := range bt {
			if s, ok := b.(string); ok {
				backups = append(backups, s)
			}
		}
	}
	params := m.Params
	params.BackupTargets = backups

	out := make([]map[string]any, 0, len(files))
	for _, f := range files {
		if !m.validate(f.URI) {
			return msg.New(req.Subject, msg.TypeErr, m.ChainName,
				map[string]any{"error": fmt.Sprintf("uri %q does not match origin pattern", f.URI)})
		}
		cleanDest, err := movers.Copy(context.Background(), localPath(f.URI), destination, params)
		if err != nil {
			nlog.Warningf("reqmgr[%s]: push %s: %v", m.ChainName, f.URI, err)
			return msg.New(req.Subject, msg.TypeErr, m.ChainName, map[string]any{"error": err.Error()})
		}
		entry := map[string]any{"uid": f.UID, "uri": f.URI, "destination": urlutil.Clean(cleanDest)}
		for k, v := range f.Rest {
			if k != "destination" {
				entry[k] = v
			}
		}
		out = append(out, entry)

		// schedule delete only on a genuine copy success — equality against
		// the Go error value, not an identity comparison against a type tag
		if m.Compression != "" || m.DeleteOnPush {
			m.scheduleDelete(localPath(f.URI))
		}
	}

	return m.replyLikeRequest(req, out)
}

func (m *Manager) handleAck(req *msg.Message) *msg.Message {
	files := req.Files()
	for _, f := range files {
		if !m.validate(f.URI) {
			return msg.New(req.Subject, msg.TypeErr, m.ChainName,
				map[string]any{"error": fmt.Sprintf("uri %q does not match origin pattern", f.URI)})
		}
		m.scheduleDelete(localPath(f.URI))
	}
	destination, _ := req.Data["destination"].(string)
	return msg.New(req.Subject, msg.TypeAck, m.ChainName, map[string]any{"destination": urlutil.Clean(destination)})
}

func (m *Manager) handleInfo(req *msg.Message) *msg.Message {
	maxCount := m.MaxCount
	if mc, ok := req.Data["max_count"].(float64); ok && int(mc) < maxCount {
		maxCount = int(mc)
	}
	entries := m.Cache.Prefix(req.Subject, maxCount)
	anyEntries := make([]any, len(entries))
	for i, e := range entries {
		anyEntries[i] = e
	}
	return msg.New(req.Subject, msg.TypeInfo, m.ChainName, map[string]any{
		"files":  anyEntries,
		"uptime": time.Since(m.startedAt).String(),
	})
}

func (m *Manager) scheduleDelete(path string) {
	if m.Deleter == nil {
		return
	}
	m.Deleter.Add(path, m.DeleteAfter, "/deletion", "file://"+path, deferred.StatMTime)
}

// replyLikeRequest mirrors the input shape: a single-file push gets a
// "file" reply; multi-file gets "dataset".
func (m *Manager) replyLikeRequest(req *msg.Message, out []map[string]any) *msg.Message {
	if len(out) == 1 {
		return msg.New(req.Subject, msg.TypeFile, m.ChainName, out[0])
	}
	dataset := make([]any, len(out))
	for i, o := range out {
		dataset[i] = o
	}
	return msg.New(req.Subject, msg.TypeDataset, m.ChainName, map[string]any{"dataset": dataset})
}

// localPath strips a file:// scheme; producer-local uris are always
// file-scheme by construction (C8 publishes them that way).
func localPath(uri string) string {
	const prefix = "file://"
	if len(uri) >= len(prefix) && uri[:len(prefix)] == prefix {
		return uri[len(prefix):]
	}
	return uri
}
