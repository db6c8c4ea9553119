package watch

import (
	"os"
	"path/filepath"
	"time"

	"github.com/aistore/movefabric/cmn/debug"
	"github.com/aistore/movefabric/cmn/nlog"
)

// pollWatcher is the polling fallback, selected via the chain's use_polling
// / watchdog config flag. Interval defaults to watchdog_timeout (1.0s).
type pollWatcher struct {
	dir      string
	interval time.Duration
	match    Matcher
	events   chan Event
	errors   chan error
	done     chan struct{}
	seen     map[string]int64 // name -> mtime unix nanos, to detect new/changed entries
}

const DefaultPollInterval = time.Second

func NewPolling(dir string, interval time.Duration, match Matcher) Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	pw := &pollWatcher{
		dir:      dir,
		interval: interval,
		match:    match,
		events:   make(chan Event, 64),
		errors:   make(chan error, 16),
		done:     make(chan struct{}),
		seen:     make(map[string]int64),
	}
	// prime seen with the current directory state so start-up itself never
	// emits events; callers use watch.Backlog separately for replay.
	pw.scan(false)
	go pw.loop()
	return pw
}

func (pw *pollWatcher) loop() {
	t := time.NewTicker(pw.interval)
	defer t.Stop()
	for {
		select {
		case <-pw.done:
			return
		case <-t.C:
			pw.scan(true)
		}
	}
}

func (pw *pollWatcher) scan(emit bool) {
	entries, err := os.ReadDir(pw.dir)
	if err != nil {
		if emit {
			select {
			case pw.errors <- err:
			default:
			}
		}
		return
	}
	current := make(map[string]int64, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		mtime := fi.ModTime().UnixNano()
		current[e.Name()] = mtime
		if !emit {
			continue
		}
		if prevMtime, ok := pw.seen[e.Name()]; ok && prevMtime == mtime {
			continue
		}
		if pw.match != nil && !pw.match(e.Name()) {
			continue
		}
		if fi.Size() == 0 {
			debug.Infof("watch: skipping zero-byte file %s", e.Name())
			continue
		}
		abs, err := filepath.Abs(filepath.Join(pw.dir, e.Name()))
		if err != nil {
			continue
		}
		select {
		case pw.events <- Event{Path: abs}:
		default:
			nlog.Warningf("watch: poll event channel full, dropping %s", abs)
		}
	}
	pw.seen = current
}

func (pw *pollWatcher) Events() <-chan Event { return pw.events }
func (pw *pollWatcher) Errors() <-chan error { return pw.errors }
func (pw *pollWatcher) Close() error {
	close(pw.done)
	return nil
}
