// Package movers implements the pluggable, scheme-keyed transfer backends
// (C2): file, ftp, scp, sftp, s3, azure. Each backend exposes Copy/Move and,
// where the wire protocol is connection-oriented, a pooled connection
// lifecycle (see pool.go).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package movers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Params carries the chain's connection_parameters plus any backup hosts,
// forwarded verbatim to the backend factory.
type Params struct {
	Login          string
	FTPRoot        string
	SSHKeyFilename string
	BackupTargets  []string
	Extra          map[string]any // connection_parameters__* passthrough
}

// Mover is the contract every scheme backend implements.
type Mover interface {
	// Copy uploads origin to destination, creating parent directories as
	// needed. Idempotent. Must never leak credentials into the returned
	// destination URL.
	Copy(ctx context.Context, origin, destination string, p Params) (cleanDest string, err error)
	// Move equals Copy followed by removing origin.
	Move(ctx context.Context, origin, destination string, p Params) (cleanDest string, err error)
}

type factory func() Mover

var (
	mu       sync.RWMutex
	registry = map[string]factory{}
)

// Register installs a mover factory under a URL scheme. Called from each
// backend's init().
func Register(scheme string, f factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(scheme)] = f
}

// Scheme extracts the URL scheme a destination should be routed by; an
// empty scheme (bare path) means "file".
func Scheme(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

// Lookup returns the mover registered for scheme, or an error if none is.
func Lookup(scheme string) (Mover, error) {
	mu.RLock()
	f, ok := registry[strings.ToLower(scheme)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("movers: no mover registered for scheme %q", scheme)
	}
	return f(), nil
}

// Copy resolves destination's scheme and delegates.
func Copy(ctx context.Context, origin, destination string, p Params) (string, error) {
	m, err := Lookup(Scheme(destination))
	if err != nil {
		return "", err
	}
	return m.Copy(ctx, origin, destination, p)
}

// Move resolves destination's scheme and delegates.
func Move(ctx context.Context, origin, destination string, p Params) (string, error) {
	m, err := Lookup(Scheme(destination))
	if err != nil {
		return "", err
	}
	return m.Move(ctx, origin, destination, p)
}

// DestPath applies the shared "trailing slash means append source
// basename, otherwise use this exact path" convention to a parsed
// destination URL's path component.
func DestPath(path, origin string) string {
	if strings.HasSuffix(path, "/") {
		return path + baseName(origin)
	}
	return path
}

func baseName(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
