package config

import (
	"github.com/aistore/movefabric/cmn/nlog"
	"github.com/aistore/movefabric/watch"
)

// Diff describes how one reload tick changes the chain set: chains to
// start, chains to stop, and chains left untouched because they parsed
// byte-identical to the previous config.
type Diff struct {
	Start   []*Chain
	Stop    []string
	Untouched []string
}

// Reconcile computes Diff between the currently-running chain set and a
// freshly-parsed one.
func Reconcile(current, next map[string]*Chain) Diff {
	var d Diff
	for name, nc := range next {
		oc, existed := current[name]
		switch {
		case !existed:
			d.Start = append(d.Start, nc)
		case !oc.Equal(nc):
			d.Stop = append(d.Stop, name)
			d.Start = append(d.Start, nc)
		default:
			d.Untouched = append(d.Untouched, name)
		}
	}
	for name := range current {
		if _, still := next[name]; !still {
			d.Stop = append(d.Stop, name)
		}
	}
	return d
}

// Loader reads and parses the on-disk config into the uniform Chain map;
// producer/consumer/mirror pass LoadINI, the dispatcher passes
// LoadYAML().ToChains.
type Loader func(path string) (map[string]*Chain, error)

// INILoader adapts LoadINI's (chains, errs) return to the Loader shape,
// logging per-section errors instead of treating them as fatal — a
// malformed section does not block the rest of the file from loading.
func INILoader(path string) (map[string]*Chain, error) {
	chains, errs := LoadINI(path)
	for _, e := range errs {
		nlog.Warningf("config: %v", e)
	}
	return chains, nil
}

func YAMLLoader(path string) (map[string]*Chain, error) {
	dc, err := LoadYAML(path)
	if err != nil {
		return nil, err
	}
	return dc.ToChains(), nil
}

// Watcher starts a filesystem watch on path's directory and invokes
// onReload with a freshly loaded chain map whenever a file named like path
// is created in, or renamed into, that directory. An in-place write to the
// existing file does not trigger a reload. It also exposes a Trigger method
// so SIGHUP can drive the identical path.
type Watcher struct {
	path    string
	load    Loader
	onReload func(map[string]*Chain)
	w       watch.Watcher
	trigger chan struct{}
	done    chan struct{}
}

func NewWatcher(path string, load Loader, onReload func(map[string]*Chain)) (*Watcher, error) {
	dir := dirOf(path)
	base := baseOf(path)
	fw, err := watch.New(dir, watch.FnMatch(base))
	if err != nil {
		return nil, err
	}
	rw := &Watcher{
		path: path, load: load, onReload: onReload,
		w: fw, trigger: make(chan struct{}, 1), done: make(chan struct{}),
	}
	go rw.loop()
	return rw, nil
}

func (rw *Watcher) loop() {
	for {
		select {
		case <-rw.done:
			return
		case _, ok := <-rw.w.Events():
			if !ok {
				return
			}
			rw.reload()
		case <-rw.trigger:
			rw.reload()
		}
	}
}

func (rw *Watcher) reload() {
	chains, err := rw.load(rw.path)
	if err != nil {
		nlog.Warningf("config: reload %s: %v", rw.path, err)
		return
	}
	rw.onReload(chains)
}

// Trigger forces an immediate reload, the SIGHUP path.
func (rw *Watcher) Trigger() {
	select {
	case rw.trigger <- struct{}{}:
	default:
	}
}

func (rw *Watcher) Close() error {
	close(rw.done)
	return rw.w.Close()
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func baseOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
