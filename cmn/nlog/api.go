// Package nlog - movefabric logger, provides buffering, timestamping, writing,
// and flushing/rotating of per-severity log files.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"flag"
	"time"
)

var MaxSize int64 = 4 * 1024 * 1024

func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 0, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 0, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 0, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 0, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 0, format, args...) }

func SetLogDirRole(dir, role string) { logDir, aisrole = dir, role }
func SetTitle(s string)              { title = s }

func InfoLogName() string { return sname() + ".INFO" }
func ErrLogName() string  { return sname() + ".ERROR" }

func Flush(exit ...bool) {
	ex := len(exit) > 0 && exit[0]
	for _, sev := range []severity{sevInfo, sevErr} {
		nl := nlogs[sev]
		if nl == nil {
			continue
		}
		nl.flush()
		if ex && nl.file != nil {
			nl.file.Sync()
			nl.file.Close()
		}
	}
}

func Since() time.Duration {
	now := time.Now().UnixNano()
	a, b := nlogs[sevInfo].since(now), nlogs[sevErr].since(now)
	if a > b {
		return a
	}
	return b
}

func OOB() bool { return false }
