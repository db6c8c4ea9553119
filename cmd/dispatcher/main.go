// Command dispatcher runs one client per YAML top-level key, routing
// incoming announcements to per-client destinations chosen by topic and
// metadata predicates.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/aistore/movefabric/cmd/internal"
	"github.com/aistore/movefabric/cmn/nlog"
	"github.com/aistore/movefabric/config"
	"github.com/aistore/movefabric/dispatch"
	"github.com/aistore/movefabric/supervisor"
	"github.com/aistore/movefabric/transport"
)

func main() {
	c := internal.ParseCommon("dispatcher", 0)
	if c.LogPath != "" {
		nlog.SetLogDirRole(filepath.Dir(c.LogPath), "dispatcher")
	}
	if len(c.PublishNameserver) == 0 {
		internal.Fatal("dispatcher", fmt.Errorf("at least one -n/--publish-nameserver is required"))
	}

	var pub *transport.Publisher
	if c.Port > 0 {
		pub = transport.NewPublisher(fmt.Sprintf(":%d", c.Port))
		go pub.ListenAndServe()
	}

	set := &chainSet{pub: pub, providers: c.PublishNameserver}
	sup := supervisor.New(set, config.YAMLLoader, c.ConfigFile)
	if _, err := config.NewWatcher(c.ConfigFile, config.YAMLLoader, func(map[string]*config.Chain) {
		sup.Trigger()
	}); err != nil {
		nlog.Warningf("dispatcher: config watch: %v", err)
	}

	if err := sup.Run(syscall.SIGUSR1); err != nil {
		internal.Fatal("dispatcher", err)
	}
}

type chainSet struct {
	pub       *transport.Publisher
	providers []string

	mu      sync.Mutex
	clients map[string]*dispatch.Client
}

func (s *chainSet) Reconcile(diff config.Diff) {
	s.mu.Lock()
	if s.clients == nil {
		s.clients = map[string]*dispatch.Client{}
	}
	for _, name := range diff.Stop {
		if cl, ok := s.clients[name]; ok {
			cl.Stop()
			delete(s.clients, name)
		}
	}
	started := append([]*config.Chain(nil), diff.Start...)
	s.mu.Unlock()

	for _, cfg := range started {
		cl := dispatch.New(cfg.Name, cfg, s.pub)
		s.mu.Lock()
		s.clients[cfg.Name] = cl
		s.mu.Unlock()
		go cl.Run(s.providers)
	}
}

func (s *chainSet) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cl := range s.clients {
		cl.Stop()
	}
}
