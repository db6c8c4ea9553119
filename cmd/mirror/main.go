// Command mirror runs one or more chains that re-advertise upstream
// announcements under their own request address and serve the files
// transparently out of a local cache directory.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/aistore/movefabric/cmd/internal"
	"github.com/aistore/movefabric/cmn/nlog"
	"github.com/aistore/movefabric/config"
	"github.com/aistore/movefabric/mirror"
	"github.com/aistore/movefabric/producer"
	"github.com/aistore/movefabric/supervisor"
	"github.com/aistore/movefabric/transport"
)

func main() {
	c := internal.ParseCommon("mirror", config.DefaultRequestPort)
	if c.LogPath != "" {
		nlog.SetLogDirRole(filepath.Dir(c.LogPath), "mirror")
	}

	host := producer.LocalHost()
	pub := transport.NewPublisher(fmt.Sprintf(":%d", c.Port))
	go pub.ListenAndServe()

	set := &chainSet{pub: pub, host: host}
	sup := supervisor.New(set, config.INILoader, c.ConfigFile)
	if _, err := config.NewWatcher(c.ConfigFile, config.INILoader, func(map[string]*config.Chain) {
		sup.Trigger()
	}); err != nil {
		nlog.Warningf("mirror: config watch: %v", err)
	}

	if err := sup.Run(); err != nil {
		internal.Fatal("mirror", err)
	}
}

type chainSet struct {
	pub  *transport.Publisher
	host string

	mu      sync.Mutex
	mirrors map[string]*mirror.Mirror
}

func (s *chainSet) Reconcile(diff config.Diff) {
	s.mu.Lock()
	if s.mirrors == nil {
		s.mirrors = map[string]*mirror.Mirror{}
	}
	for _, name := range diff.Stop {
		if m, ok := s.mirrors[name]; ok {
			m.Stop()
			delete(s.mirrors, name)
		}
	}
	started := append([]*config.Chain(nil), diff.Start...)
	s.mu.Unlock()

	for _, cfg := range started {
		m := mirror.New(cfg, s.pub, s.host, cfg.CacheDir, cfg.MirrorDelay)
		s.mu.Lock()
		s.mirrors[cfg.Name] = m
		s.mu.Unlock()
		go func(name string) {
			if err := m.Run(); err != nil {
				nlog.Warningf("mirror[%s]: %v", name, err)
			}
		}(cfg.Name)
	}
}

func (s *chainSet) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.mirrors {
		m.Stop()
	}
}
