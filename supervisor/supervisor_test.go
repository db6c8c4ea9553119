package supervisor

import (
	"sync"
	"testing"
	"time"

	"github.com/aistore/movefabric/config"
)

type fakeChains struct {
	mu       sync.Mutex
	started  []string
	stopped  []string
	stopAllN int
}

func (f *fakeChains) Reconcile(diff config.Diff) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range diff.Start {
		f.started = append(f.started, c.Name)
	}
	f.stopped = append(f.stopped, diff.Stop...)
}

func (f *fakeChains) StopAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopAllN++
}

func TestSupervisorInitialLoadStartsEveryChain(t *testing.T) {
	fc := &fakeChains{}
	calls := 0
	loader := func(string) (map[string]*config.Chain, error) {
		calls++
		return map[string]*config.Chain{"a": {Name: "a"}, "b": {Name: "b"}}, nil
	}
	s := New(fc, loader, "irrelevant.ini")
	if err := s.reload(); err != nil {
		t.Fatal(err)
	}
	if len(fc.started) != 2 {
		t.Errorf("started = %v", fc.started)
	}
}

func TestTriggerDrivesReload(t *testing.T) {
	fc := &fakeChains{}
	gen := 0
	loader := func(string) (map[string]*config.Chain, error) {
		gen++
		return map[string]*config.Chain{"a": {Name: "a", Topic: time.Duration(gen).String()}}, nil
	}
	s := New(fc, loader, "irrelevant.ini")
	if err := s.reload(); err != nil {
		t.Fatal(err)
	}
	s.Trigger()

	go func() {
		select {
		case <-s.reloadCh:
			s.reload()
		case <-time.After(time.Second):
		}
	}()
	time.Sleep(50 * time.Millisecond)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.started) < 2 {
		t.Errorf("expected a restart after Trigger, started = %v", fc.started)
	}
}
