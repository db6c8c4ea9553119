// Command producer runs one or more file-watching, announcement-publishing
// chains described by an INI config file, reloading them in place on
// SIGHUP or whenever the config file itself changes.
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
	"github.com/aistore/movefabric/producer"
	"github.com/aistore/movefabric/supervisor"
	"github.com/aistore/movefabric/transport"
)

func main() {
	c := internal.ParseCommon("producer", config.DefaultRequestPort)
	if c.LogPath != "" {
		nlog.SetLogDirRole(filepath.Dir(c.LogPath), "producer")
	}

	host := producer.LocalHost()
	pub := transport.NewPublisher(fmt.Sprintf(":%d", c.Port))
	go pub.ListenAndServe()

	set := &chainSet{pub: pub, host: host, disableBacklog: c.DisableBacklog}

	sup := supervisor.New(set, config.INILoader, c.ConfigFile)
	if _, err := config.NewWatcher(c.ConfigFile, config.INILoader, func(map[string]*config.Chain) {
		sup.Trigger()
	}); err != nil {
		nlog.Warningf("producer: config watch: %v", err)
	}

	if err := sup.Run(); err != nil {
		internal.Fatal("producer", err)
	}
}

// chainSet adapts a map of running producer chains to supervisor.ChainSet.
type chainSet struct {
	pub            *transport.Publisher
	host           string
	disableBacklog bool

	mu     sync.Mutex
	chains map[string]*producer.Chain
}

func (s *chainSet) Reconcile(diff config.Diff) {
	s.mu.Lock()
	if s.chains == nil {
		s.chains = map[string]*producer.Chain{}
	}
	for _, name := range diff.Stop {
		if ch, ok := s.chains[name]; ok {
			ch.Stop()
			delete(s.chains, name)
		}
	}
	started := append([]*config.Chain(nil), diff.Start...)
	s.mu.Unlock()

	for _, cfg := range started {
		ch, err := producer.New(cfg, s.pub, s.host)
		if err != nil {
			nlog.Errorf("producer[%s]: %v", cfg.Name, err)
			continue
		}
		s.mu.Lock()
		s.chains[cfg.Name] = ch
		s.mu.Unlock()
		go func(name string) {
			if err := ch.Run(s.disableBacklog); err != nil {
				nlog.Warningf("producer[%s]: %v", name, err)
			}
		}(cfg.Name)
	}
}

func (s *chainSet) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.chains {
		ch.Stop()
	}
}
