// Command consumer runs one or more subscriber chains described by an INI
// config file, each pulling announcements off its providers, requesting
// transfer, and republishing what lands locally.
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
	"github.com/aistore/movefabric/consumer"
	"github.com/aistore/movefabric/supervisor"
	"github.com/aistore/movefabric/transport"
)

func main() {
	c := internal.ParseCommon("consumer", 0)
	if c.LogPath != "" {
		nlog.SetLogDirRole(filepath.Dir(c.LogPath), "consumer")
	}

	var localPub *transport.Publisher
	if c.Port > 0 {
		localPub = transport.NewPublisher(fmt.Sprintf(":%d", c.Port))
		go localPub.ListenAndServe()
	}

	set := &chainSet{localPub: localPub}
	sup := supervisor.New(set, config.INILoader, c.ConfigFile)
	if _, err := config.NewWatcher(c.ConfigFile, config.INILoader, func(map[string]*config.Chain) {
		sup.Trigger()
	}); err != nil {
		nlog.Warningf("consumer: config watch: %v", err)
	}

	if err := sup.Run(); err != nil {
		internal.Fatal("consumer", err)
	}
}

type chainSet struct {
	localPub *transport.Publisher

	mu     sync.Mutex
	chains map[string]*consumer.Chain
}

func (s *chainSet) Reconcile(diff config.Diff) {
	s.mu.Lock()
	if s.chains == nil {
		s.chains = map[string]*consumer.Chain{}
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
		ch := consumer.New(cfg, s.localPub)
		s.mu.Lock()
		s.chains[cfg.Name] = ch
		s.mu.Unlock()
		go ch.Run()
	}
}

func (s *chainSet) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.chains {
		ch.Stop()
	}
}
