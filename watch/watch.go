// Package watch implements the filesystem watcher (C5): an event-driven
// backend over fsnotify and a polling fallback, both yielding absolute
// paths for files created, moved in, or hardlinked into the watched tree.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package watch

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/aistore/movefabric/cmn/debug"
	"github.com/aistore/movefabric/cmn/nlog"
)

// Event is a single detected path, filtered and ready for the producer to
// process.
type Event struct {
	Path string
}

// Matcher decides whether a basename satisfies the chain's origin_pattern.
type Matcher func(basename string) bool

// Watcher is the common contract both backends implement.
type Watcher interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// fsWatcher is the event-driven backend, backed by fsnotify (a direct
// teacher dependency).
type fsWatcher struct {
	w       *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	match   Matcher
}

// New starts watching dir for Create/Rename/Link-style changes (fsnotify
// exposes Create and Rename; a multiply-linked file surfaces as Create on
// the new name, matching the original watchdog contract's "created, moved
// in, or hardlinked" trio).
func New(dir string, match Matcher) (Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	fw := &fsWatcher{
		w:      w,
		events: make(chan Event, 64),
		errors: make(chan error, 16),
		done:   make(chan struct{}),
		match:  match,
	}
	go fw.loop()
	return fw, nil
}

func (fw *fsWatcher) loop() {
	defer close(fw.events)
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fw.emit(ev.Name)
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			default:
			}
		case <-fw.done:
			return
		}
	}
}

func (fw *fsWatcher) emit(path string) {
	base := filepath.Base(path)
	if fw.match != nil && !fw.match(base) {
		return
	}
	fi, err := os.Stat(path)
	if err != nil {
		return // gone already, or not yet visible
	}
	if fi.Size() == 0 {
		debug.Infof("watch: skipping zero-byte file %s", path)
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	select {
	case fw.events <- Event{Path: abs}:
	default:
		nlog.Warningf("watch: event channel full, dropping %s", abs)
	}
}

func (fw *fsWatcher) Events() <-chan Event { return fw.events }
func (fw *fsWatcher) Errors() <-chan error { return fw.errors }
func (fw *fsWatcher) Close() error {
	close(fw.done)
	return fw.w.Close()
}

// Backlog scans dir once and replays every currently-present, non-empty,
// matching file as an Event — the "--disable-backlog" toggle on the server
// entry point decides at the caller whether this is invoked.
func Backlog(dir string, match Matcher) ([]Event, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if match != nil && !match(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil || fi.Size() == 0 {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, Event{Path: abs})
	}
	return out, nil
}
