// Package consumer implements the consumer chain (C9): one subscriber per
// provider, deduplicating announcements, requesting transfer via C10,
// unpacking and republishing what arrives locally.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package consumer

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aistore/movefabric/cache"
	"github.com/aistore/movefabric/cmn/nlog"
	"github.com/aistore/movefabric/config"
	"github.com/aistore/movefabric/movers"
	"github.com/aistore/movefabric/msg"
	"github.com/aistore/movefabric/requester"
	"github.com/aistore/movefabric/transport"
	"github.com/aistore/movefabric/unpack"
	"github.com/aistore/movefabric/urlutil"
)

const dedupeCacheMaxlen = 11000

// Chain runs one consumer section: a subscriber per provider, feeding a
// shared dedupe cache and requester pool.
type Chain struct {
	cfg      *config.Chain
	pool     *requester.Pool
	localPub *transport.Publisher // nil when no local publish port configured

	cache *cache.Deque
	hb    *heartbeatMonitor

	subs []*transport.Subscriber
	mu   sync.Mutex
}

func New(cfg *config.Chain, localPub *transport.Publisher) *Chain {
	c := &Chain{
		cfg:      cfg,
		pool:     requester.NewPool(),
		localPub: localPub,
		cache:    cache.New(dedupeCacheMaxlen),
	}
	c.hb = newHeartbeatMonitor(cfg.HeartbeatAlarmScale, c.restart)
	return c
}

// restart tears down and recreates every provider subscriber, invoked when
// the heartbeat monitor's deadline lapses without a beat.
func (c *Chain) restart() {
	nlog.Warningf("consumer[%s]: heartbeat missed, restarting subscribers", c.cfg.Name)
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
	c.startSubscribers()
}

// Run subscribes to every configured provider plus the server heartbeat
// topic, then blocks forever; Stop closes the subscribers but does not make
// Run return.
func (c *Chain) Run() {
	c.startSubscribers()
	select {}
}

func (c *Chain) startSubscribers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, provider := range c.cfg.Providers {
		sub := transport.NewSubscriber(provider, c.cfg.Topic)
		c.subs = append(c.subs, sub)
		go sub.Run(func(m *msg.Message) { c.handle(m) })

		beat := transport.NewSubscriber(provider, msg.HeartbeatTopic)
		c.subs = append(c.subs, beat)
		go beat.Run(func(m *msg.Message) { c.handleBeat(m) })
	}
}

func (c *Chain) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.subs {
		s.Close()
	}
	c.hb.Stop()
}

func (c *Chain) handleBeat(m *msg.Message) {
	minInterval := defaultMinInterval
	if v, ok := m.Data["min_interval"].(float64); ok && v > 0 {
		minInterval = time.Duration(v * float64(time.Second))
	}
	c.hb.Feed(minInterval)
}

func (c *Chain) handle(m *msg.Message) {
	if m.Type == msg.TypeBeat {
		c.handleBeat(m)
		return
	}

	uids := m.UIDs()
	if len(uids) > 0 && c.allSeen(uids) {
		c.handleDuplicate(m)
		return
	}

	c.requestTransfer(m)
}

func (c *Chain) allSeen(uids []string) bool {
	for _, u := range uids {
		if !c.cache.Contains(u) {
			return false
		}
	}
	return true
}

// handleDuplicate answers a re-announcement of an already-fetched file: if
// every uri is local and a local publisher exists, resend the original so
// late-joining local peers still see it; always ack the origin.
func (c *Chain) handleDuplicate(m *msg.Message) {
	if c.localPub != nil && allURIsLocal(m) {
		c.localPub.Publish(m)
	}
	addr, _ := m.Data["request_address"].(string)
	if addr == "" {
		return
	}
	ack := msg.New(m.Subject, msg.TypeAck, c.cfg.Name, map[string]any{})
	if _, err := c.pool.Get(addr).SendAndRecv(ack, c.cfg.ReqTimeout); err != nil {
		nlog.Warningf("consumer[%s]: ack to %s: %v", c.cfg.Name, addr, err)
	}
}

func allURIsLocal(m *msg.Message) bool {
	for _, f := range m.Files() {
		u, err := url.Parse(f.URI)
		if err != nil || !urlutil.IsLocal(u.Host) {
			return false
		}
	}
	return len(m.Files()) > 0
}

// requestTransfer builds and sends a push request for m, then processes
// whatever reply comes back.
func (c *Chain) requestTransfer(m *msg.Message) {
	addr, _ := m.Data["request_address"].(string)
	if addr == "" {
		nlog.Warningf("consumer[%s]: %s carries no request_address, dropping", c.cfg.Name, m.Subject)
		return
	}

	destBase := "file:///tmp"
	if len(c.cfg.Destinations) > 0 {
		destBase = c.cfg.Destinations[0]
	}

	files := m.Files()
	realDest, localDir, err := c.resolveDestination(destBase, files)
	if err != nil {
		nlog.Warningf("consumer[%s]: resolve destination: %v", c.cfg.Name, err)
		return
	}
	if err := os.MkdirAll(localDir, 0o777); err != nil {
		nlog.Warningf("consumer[%s]: mkdir %s: %v", c.cfg.Name, localDir, err)
		return
	}

	data := map[string]any{"destination": realDest}
	if len(c.cfg.Destinations) > 1 {
		data["backup_targets"] = toAnySlice(c.cfg.Destinations[1:])
	}
	req := buildPushMessage(m, data)

	reply, err := c.pool.Get(addr).SendAndRecv(req, c.cfg.TransferReqTimeout)
	if err != nil {
		nlog.Warningf("consumer[%s]: push to %s: %v", c.cfg.Name, addr, err)
		return
	}

	switch reply.Type {
	case msg.TypeFile, msg.TypeDataset, msg.TypeCollection:
		c.onTransferred(m, reply, addr, localDir)
	case msg.TypeAck:
	case msg.TypeErr:
		nlog.Warningf("consumer[%s]: server rejected push: %v", c.cfg.Name, reply.Data["error"])
	default:
		nlog.Warningf("consumer[%s]: unexpected reply type %q, dropping", c.cfg.Name, reply.Type)
	}
}

// resolveDestination composes the credential-bearing destination URL (for
// the wire request only) and the matching on-disk directory rooted under
// ftp_root, for the first file in the batch (every file in one push shares
// the same base directory).
func (c *Chain) resolveDestination(base string, files []msg.File) (real, localDir string, err error) {
	if len(files) == 0 {
		return "", "", fmt.Errorf("no files to transfer")
	}
	dest := movers.DestPath(base, files[0].URI)
	u, perr := url.Parse(dest)
	if perr != nil {
		return "", "", perr
	}
	if c.cfg.Login != "" {
		parts := strings.SplitN(c.cfg.Login, ":", 2)
		if len(parts) == 2 {
			u.User = url.UserPassword(parts[0], parts[1])
		} else {
			u.User = url.User(parts[0])
		}
	}
	real = u.String()
	localDir = filepath.Join(c.cfg.FTPRoot, filepath.Dir(u.Path))
	return real, localDir, nil
}

func buildPushMessage(orig *msg.Message, data map[string]any) *msg.Message {
	out := map[string]any{}
	for k, v := range data {
		out[k] = v
	}
	if ds, ok := orig.Data["dataset"]; ok {
		out["dataset"] = ds
	}
	if coll, ok := orig.Data["collection"]; ok {
		out["collection"] = coll
	}
	if uid, ok := orig.Data["uid"]; ok {
		out["uid"] = uid
	}
	if uri, ok := orig.Data["uri"]; ok {
		out["uri"] = uri
	}
	return msg.New(orig.Subject, msg.TypePush, "", out)
}

// onTransferred runs after a successful file/dataset/collection reply:
// record dedupe entries, unpack, rewrite uris to the local filesystem, and
// republish with origin tracking and aliasing applied.
func (c *Chain) onTransferred(orig, reply *msg.Message, requestAddr, localDir string) {
	for _, uid := range reply.UIDs() {
		c.cache.Push(uid)
	}

	if unpackName, _ := orig.Data["unpack"].(string); unpackName != "" {
		for _, f := range reply.Files() {
			if _, err := unpack.Run(unpackName, localPathOf(localDir, f.UID), localDir, nil); err != nil {
				nlog.Warningf("consumer[%s]: unpack %s: %v", c.cfg.Name, f.UID, err)
			}
		}
	}

	out := rewriteLocal(reply, localDir)
	delete(out.Data, "request_address")
	out.Data["origin"] = requestAddr
	applyAliases(out.Data, c.cfg.Aliases, c.cfg.AliasName)
	out.Sender = c.cfg.Name

	topic := c.cfg.PublishTopic
	if topic == "" {
		topic = c.cfg.Topic
	}
	out.Subject = topic

	if c.localPub != nil {
		c.localPub.Publish(out)
	}
}

func localPathOf(dir, basename string) string { return filepath.Join(dir, basename) }

// rewriteLocal clones reply with every uri pointed at its local path under
// dir instead of the remote destination it arrived at.
func rewriteLocal(reply *msg.Message, dir string) *msg.Message {
	data := make(map[string]any, len(reply.Data))
	for k, v := range reply.Data {
		data[k] = v
	}
	if f, ok := reply.AsFile(); ok {
		data["uri"] = "file://" + localPathOf(dir, f.UID)
	}
	if dsRaw, ok := data["dataset"].([]any); ok {
		data["dataset"] = rewriteDatasetURIs(dsRaw, dir)
	}
	return &msg.Message{Subject: reply.Subject, Type: reply.Type, Sender: reply.Sender, Time: reply.Time, Version: reply.Version, Data: data}
}

func rewriteDatasetURIs(dataset []any, dir string) []any {
	out := make([]any, len(dataset))
	for i, e := range dataset {
		em, ok := e.(map[string]any)
		if !ok {
			out[i] = e
			continue
		}
		clone := make(map[string]any, len(em))
		for k, v := range em {
			clone[k] = v
		}
		if uid, ok := clone["uid"].(string); ok {
			clone["uri"] = "file://" + localPathOf(dir, uid)
		}
		out[i] = clone
	}
	return out
}

// applyAliases rewrites mda[key] (or mda[alias_name] when configured) to
// the "src -> dst" mapping for that key, leaving unmapped values untouched.
func applyAliases(data map[string]any, aliases map[string]map[string]string, aliasName map[string]string) {
	for key, mapping := range aliases {
		v, ok := data[key]
		if !ok {
			continue
		}
		src := fmt.Sprint(v)
		dst, mapped := mapping[src]
		if !mapped {
			continue
		}
		target := key
		if an, ok := aliasName[key]; ok && an != "" {
			target = an
		}
		data[target] = dst
	}
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
