// Package internal holds the flag-parsing and signal-wiring logic shared
// by every role's command-line entry point.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package internal

import (
	"flag"
	"fmt"
	"os"

	"github.com/aistore/movefabric/cmn/nlog"
)

// Common carries the flags every role accepts, per the CLI surface shared
// across producer/consumer/mirror/dispatcher.
type Common struct {
	ConfigFile        string
	LogPath           string
	LogConfig         string
	Verbosity         int
	Port              int
	PublishNameserver stringSlice
	DisableBacklog    bool
	Watchdog          bool
}

type stringSlice []string

func (s *stringSlice) String() string { return fmt.Sprint([]string(*s)) }
func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// ParseCommon registers and parses the shared flag set for one role,
// taking the positional config-file argument and the default publish port
// (9010 for server-shaped roles, 0 meaning "none" for move-it).
func ParseCommon(role string, defaultPort int) *Common {
	fs := flag.NewFlagSet(role, flag.ExitOnError)
	c := &Common{}
	fs.StringVar(&c.LogPath, "l", "", "rotating daily file log path")
	fs.StringVar(&c.LogPath, "log", "", "rotating daily file log path")
	fs.StringVar(&c.LogConfig, "c", "", "full log config yaml")
	fs.StringVar(&c.LogConfig, "log-config", "", "full log config yaml")
	fs.IntVar(&c.Verbosity, "v", 0, "verbosity level, an integer (-v=2); a bare or repeated -v is not accepted")
	fs.IntVar(&c.Port, "p", defaultPort, "publish port")
	fs.IntVar(&c.Port, "port", defaultPort, "publish port")
	fs.Var(&c.PublishNameserver, "n", "nameserver for the publisher (repeatable)")
	fs.Var(&c.PublishNameserver, "publish-nameserver", "nameserver for the publisher (repeatable)")
	fs.BoolVar(&c.DisableBacklog, "disable-backlog", false, "skip touch-replay of existing files on reload")
	fs.BoolVar(&c.Watchdog, "w", false, "use polling watcher instead of kernel events")
	fs.BoolVar(&c.Watchdog, "watchdog", false, "use polling watcher instead of kernel events")
	nlog.InitFlags(fs)

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <config-file>\n", role)
		os.Exit(1)
	}
	c.ConfigFile = fs.Arg(0)
	return c
}

// Fatal logs err and exits with status 1, the contract for a fatal
// initialization error.
func Fatal(role string, err error) {
	nlog.Errorf("%s: %v", role, err)
	nlog.Flush(true)
	os.Exit(1)
}
