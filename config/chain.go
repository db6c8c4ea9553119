// Package config implements the chain-config loaders: INI for
// producer/consumer/mirror, YAML for the dispatcher, plus hot reload driven
// by a filesystem watch on the config file or SIGHUP.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package config

import "time"

// Chain is the immutable-after-load per-section configuration for one
// producer/consumer/mirror/dispatcher chain. A chain without Providers must
// set OriginPattern or ListenTopic.
type Chain struct {
	Name                string
	OriginPattern       string
	ListenTopic         string
	Topic               string
	RequestPort         int
	PublishPort         int
	PublishTopic        string
	Info                map[string]string
	Destinations        []string
	Compression         string
	Delete              bool
	DeleteAfter         time.Duration
	ReqTimeout          time.Duration
	TransferReqTimeout  time.Duration
	HeartbeatAlarmScale float64
	Nameservers         []string
	Providers           []string
	Login               string
	FTPRoot             string
	SSHKeyFilename      string
	Aliases             map[string]map[string]string // key -> value -> alias
	AliasName           map[string]string             // key -> override name for the mda key
	DispatchConfigs     []DispatchConfig
	ConnectionParams    map[string]any // connection_parameters__* passthrough
	UsePolling          bool
	WatchdogTimeout     time.Duration
	DirectFetch         bool
	Station             string
	MaxCount            int
	MirrorDelay         time.Duration
	CacheDir            string
}

// DispatchConfig is one entry of a dispatcher client's dispatch_configs
// list.
type DispatchConfig struct {
	Topics      []string
	Conditions  []ConditionSet
	Host        string
	FilePattern string
	Directory   string
}

// ConditionSet is one OR-branch of AND'ed key/value conditions, with an
// optional nested negated sub-set.
type ConditionSet struct {
	Conditions map[string]any
	Except     map[string]any
}

const (
	DefaultReqTimeout         = 10 * time.Second
	DefaultTransferReqTimeout = 10 * DefaultReqTimeout
	DefaultDeleteAfter        = 30 * time.Second
	DefaultMaxCount           = 2256
	DefaultRequestPort        = 9010
)

// Equal reports whether two chain configs are semantically byte-identical,
// ignoring volatile runtime handles (notifier/publisher) that never exist
// on this value type to begin with — used by reload.go to decide whether a
// chain must be restarted.
func (c *Chain) Equal(other *Chain) bool {
	if c == nil || other == nil {
		return c == other
	}
	a, b := *c, *other
	return equalChainFields(a, b)
}
