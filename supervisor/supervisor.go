// Package supervisor implements the per-process control loop: signal
// handling, chain-set reload, and a timeout-bounded shutdown.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package supervisor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aistore/movefabric/cmn/nlog"
	"github.com/aistore/movefabric/config"
)

// ChainSet is the contract a role (producer/consumer/mirror/dispatcher)
// implements so the supervisor can drive it through reload and shutdown
// without knowing its internals.
type ChainSet interface {
	// Reconcile applies a Diff computed against the currently running set:
	// start everything in Start, stop everything named in Stop.
	Reconcile(diff config.Diff)
	// StopAll stops every running chain; called once, on shutdown.
	StopAll()
}

// Supervisor centralizes signal handling: reloads are dispatched through
// an internal channel rather than run directly from the signal handler.
type Supervisor struct {
	chains ChainSet
	loader config.Loader
	path   string

	reloadCh chan struct{}
	stopCh   chan struct{}

	mu      sync.Mutex
	running bool
	current map[string]*config.Chain
}

func New(chains ChainSet, loader config.Loader, path string) *Supervisor {
	return &Supervisor{
		chains:   chains,
		loader:   loader,
		path:     path,
		reloadCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		current:  map[string]*config.Chain{},
	}
}

// Run loads the initial configuration, installs signal handlers, and
// blocks until a SIGTERM/SIGINT (or Stop) is observed.
func (s *Supervisor) Run(extraReloadSignals ...os.Signal) error {
	if err := s.reload(); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 4)
	stopSigs := []os.Signal{syscall.SIGTERM, syscall.SIGINT}
	reloadSigs := append([]os.Signal{syscall.SIGHUP}, extraReloadSignals...)
	signal.Notify(sigs, append(stopSigs, reloadSigs...)...)
	defer signal.Stop(sigs)

	for {
		select {
		case sig := <-sigs:
			if isStopSignal(sig, stopSigs) {
				s.shutdown()
				return nil
			}
			s.Trigger()
		case <-s.reloadCh:
			if err := s.reload(); err != nil {
				nlog.Warningf("supervisor: reload: %v", err)
			}
		case <-s.stopCh:
			s.shutdown()
			return nil
		}
	}
}

func isStopSignal(sig os.Signal, stopSigs []os.Signal) bool {
	for _, s := range stopSigs {
		if sig == s {
			return true
		}
	}
	return false
}

// Trigger requests an out-of-band reload, the SIGHUP/SIGUSR1 path.
func (s *Supervisor) Trigger() {
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

// Stop requests a graceful shutdown, equivalent to receiving SIGTERM.
func (s *Supervisor) Stop() {
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
}

func (s *Supervisor) reload() error {
	next, err := s.loader(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	diff := config.Reconcile(s.current, next)
	s.current = next
	s.mu.Unlock()
	s.chains.Reconcile(diff)
	return nil
}

// shutdown acquires a 1-second-timeout run-lock (best effort: it simply
// gives any in-flight reload a moment to finish before tearing chains
// down), flips running false, and calls StopAll.
func (s *Supervisor) shutdown() {
	locked := make(chan struct{})
	go func() {
		s.mu.Lock()
		close(locked)
	}()
	select {
	case <-locked:
		s.running = false
		s.mu.Unlock()
	case <-time.After(time.Second):
		nlog.Warningf("supervisor: shutdown proceeding without the run-lock after 1s")
	}
	s.chains.StopAll()
}
