// Package producer implements the per-chain producer pipeline: wiring
// a filesystem watch through metadata extraction into a published "file"
// announcement, optionally serving a request endpoint for the file it just
// announced.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package producer

import (
	"fmt"
	"net"
	"path/filepath"

	"github.com/aistore/movefabric/cache"
	"github.com/aistore/movefabric/cmn/nlog"
	"github.com/aistore/movefabric/config"
	"github.com/aistore/movefabric/deferred"
	"github.com/aistore/movefabric/msg"
	"github.com/aistore/movefabric/pattern"
	"github.com/aistore/movefabric/reqmgr"
	"github.com/aistore/movefabric/transport"
	"github.com/aistore/movefabric/watch"
)

const fileCacheMaxlen = 61000

// Chain runs one producer section: watch -> extract -> publish, plus an
// optional reqmgr.Manager endpoint serving the files it announces.
type Chain struct {
	cfg     *config.Chain
	pub     *transport.Publisher
	host    string
	deleter *deferred.Queue
	cache   *cache.Deque
	mgr     *reqmgr.Manager

	w    watch.Watcher
	stop chan struct{}
}

// New wires up a Chain from its parsed config. pub is shared across every
// chain on this process: one publish port per server.
func New(cfg *config.Chain, pub *transport.Publisher, host string) (*Chain, error) {
	dir := filepath.Dir(pattern.Globify(cfg.OriginPattern))
	matcher := watch.FnMatch(filepath.Base(pattern.Globify(cfg.OriginPattern)))

	var w watch.Watcher
	var err error
	if cfg.UsePolling {
		w = watch.NewPolling(dir, cfg.WatchdogTimeout, matcher)
	} else {
		w, err = watch.New(dir, matcher)
		if err != nil {
			return nil, fmt.Errorf("producer[%s]: %w", cfg.Name, err)
		}
	}

	c := &Chain{
		cfg:   cfg,
		pub:   pub,
		host:  host,
		cache: cache.New(fileCacheMaxlen),
		w:     w,
		stop:  make(chan struct{}),
	}

	if cfg.RequestPort > 0 {
		c.deleter = deferred.New(pubDelAdapter{pub})
		c.mgr = reqmgr.New(reqmgr.Manager{
			ChainName:     cfg.Name,
			Station:       cfg.Station,
			OriginPattern: cfg.OriginPattern,
			MaxCount:      cfg.MaxCount,
			Cache:         c.cache,
			Deleter:       c.deleter,
			DeleteAfter:   cfg.DeleteAfter,
			Compression:   cfg.Compression,
			DeleteOnPush:  cfg.Delete,
		})
	}
	return c, nil
}

type pubDelAdapter struct{ pub *transport.Publisher }

func (a pubDelAdapter) PublishDel(topic, uri string) { a.pub.PublishDel(topic, uri) }

// Run replays the backlog once (unless disabled), then serves events and
// the request endpoint until Stop is called.
func (c *Chain) Run(disableBacklog bool) error {
	if c.deleter != nil {
		go c.deleter.Run()
	}
	if c.mgr != nil {
		addr := fmt.Sprintf(":%d", c.cfg.RequestPort)
		go func() {
			if err := c.mgr.ListenAndServe(addr); err != nil {
				nlog.Warningf("producer[%s]: request endpoint: %v", c.cfg.Name, err)
			}
		}()
	}

	if !disableBacklog {
		entries, err := watch.Backlog(filepath.Dir(pattern.Globify(c.cfg.OriginPattern)),
			watch.FnMatch(filepath.Base(pattern.Globify(c.cfg.OriginPattern))))
		if err != nil {
			nlog.Warningf("producer[%s]: backlog scan: %v", c.cfg.Name, err)
		}
		for _, e := range entries {
			c.handle(e.Path)
		}
	}

	for {
		select {
		case ev, ok := <-c.w.Events():
			if !ok {
				return nil
			}
			c.handle(ev.Path)
		case err, ok := <-c.w.Errors():
			if ok {
				nlog.Warningf("producer[%s]: watch error: %v", c.cfg.Name, err)
			}
		case <-c.stop:
			return nil
		}
	}
}

func (c *Chain) Stop() {
	close(c.stop)
	c.w.Close()
	if c.deleter != nil {
		c.deleter.Stop()
	}
	if c.mgr != nil {
		c.mgr.Close()
	}
}

// handle parses one newly-seen path and publishes its announcement.
func (c *Chain) handle(path string) {
	fields, ok := pattern.Parse(c.cfg.OriginPattern, path)
	if !ok {
		nlog.Warningf("producer[%s]: %s does not match origin pattern, skipping", c.cfg.Name, path)
		return
	}
	uid := filepath.Base(path)
	topic := c.cfg.Topic
	if topic == "" {
		topic = "/" + c.cfg.Name
	}
	c.cache.Push(fmt.Sprintf("%s/%s", topic, uid))

	data := map[string]any{"uid": uid, "uri": "file://" + path}
	for k, v := range fields {
		data[k] = v
	}
	for k, v := range c.cfg.Info {
		data[k] = v
	}

	if c.cfg.RequestPort > 0 {
		data["request_address"] = fmt.Sprintf("%s:%d", c.host, c.cfg.RequestPort)
	} else {
		addDirectFetchMetadata(data, path)
	}

	c.pub.Publish(msg.New(topic, msg.TypeFile, c.cfg.Name, data))
}

// addDirectFetchMetadata embeds filesystem-access metadata so a consumer
// without a request endpoint to call can fetch the file directly off the
// announcing host — the zero-copy handoff path for chains with no
// request_port configured.
func addDirectFetchMetadata(data map[string]any, path string) {
	data["filesystem"] = map[string]any{
		"type": "local",
		"path": path,
	}
}

// LocalHost resolves the outbound-facing IP this process should advertise
// as request_address's host, falling back to the first address "localhost"
// resolves to, or the literal "localhost".
func LocalHost() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		h, herr := net.LookupHost("localhost")
		if herr == nil && len(h) > 0 {
			return h[0]
		}
		return "localhost"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
