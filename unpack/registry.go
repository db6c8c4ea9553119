// Package unpack implements the named decompressor registry (C3): each
// unpacker takes a source path and a working directory and returns zero or
// more output paths, replacing the original's reflection-based name lookup
// with an explicit map populated at program start.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package unpack

import (
	"fmt"
	"strings"
	"sync"
)

// Func unpacks src into workDir, optionally reporting progress via prog,
// and returns every output path produced.
type Func func(src, workDir string, prog func(string)) ([]string, error)

var (
	mu       sync.RWMutex
	registry = map[string]Func{}
)

func Register(name string, f Func) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = f
}

func Lookup(name string) (Func, error) {
	mu.RLock()
	f, ok := registry[strings.ToLower(name)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unpack: no unpacker registered for %q", name)
	}
	return f, nil
}

// Run looks up name and invokes it; name == "" is a no-op that returns src
// unchanged, matching the original's "compression not set" short-circuit.
func Run(name, src, workDir string, prog func(string)) ([]string, error) {
	if name == "" {
		return []string{src}, nil
	}
	f, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return f(src, workDir, prog)
}
