package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// ConfigError marks a malformed INI/YAML file or a missing required key —
// the chain in question is skipped, not fatal to the whole process.
type ConfigError struct {
	Chain string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Chain == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: chain %s: %s", e.Chain, e.Msg)
}

// LoadINI parses one section-per-chain INI config (server, consumer,
// mirror). A section whose parse fails is reported via errs but does not
// abort loading the remaining sections.
func LoadINI(path string) (chains map[string]*Chain, errs []error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, []error{&ConfigError{Msg: fmt.Sprintf("load %s: %v", path, err)}}
	}
	chains = make(map[string]*Chain)
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		c, err := sectionToChain(sec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chains[c.Name] = c
	}
	return chains, errs
}

func sectionToChain(sec *ini.Section) (*Chain, error) {
	name := sec.Name()
	c := &Chain{
		Name:               name,
		OriginPattern:      sec.Key("origin").String(),
		ListenTopic:        sec.Key("listen").String(),
		Topic:              sec.Key("topic").String(),
		Station:            sec.Key("station").MustString("unknown"),
		Login:              sec.Key("login").String(),
		FTPRoot:            sec.Key("ftp_root").String(),
		SSHKeyFilename:     sec.Key("ssh_key_filename").String(),
		Compression:        sec.Key("compression").String(),
		Delete:             sec.Key("delete").MustBool(false),
		UsePolling:         sec.Key("use_polling").MustBool(sec.Key("watchdog").MustBool(false)),
		DirectFetch:        sec.Key("direct_fetch").MustBool(false),
		MaxCount:           sec.Key("max_count").MustInt(DefaultMaxCount),
		RequestPort:        sec.Key("request_port").MustInt(0),
		PublishPort:        sec.Key("publish_port").MustInt(0),
		PublishTopic:       sec.Key("publish_topic").String(),
		CacheDir:           sec.Key("cache_dir").MustString("."),
		Info:               map[string]string{},
		ConnectionParams:   map[string]any{},
		Aliases:            map[string]map[string]string{},
		AliasName:          map[string]string{},
	}

	if c.OriginPattern == "" && c.ListenTopic == "" && sec.Key("providers").String() == "" {
		return nil, &ConfigError{Chain: name, Msg: "either origin_pattern or listen_topic (or providers, for a consumer chain) must be set"}
	}

	c.ReqTimeout = durationSeconds(sec, "req_timeout", DefaultReqTimeout)
	c.TransferReqTimeout = durationSeconds(sec, "transfer_req_timeout", DefaultTransferReqTimeout)
	c.DeleteAfter = durationSeconds(sec, "delete_after", DefaultDeleteAfter)
	c.HeartbeatAlarmScale = sec.Key("heartbeat_alarm_scale").MustFloat64(0)
	c.WatchdogTimeout = time.Duration(sec.Key("watchdog_timeout").MustFloat64(1.0) * float64(time.Second))
	c.MirrorDelay = durationSeconds(sec, "delay", 0)

	if v := sec.Key("destinations").String(); v != "" {
		c.Destinations = splitCSV(v)
	}
	if v := sec.Key("providers").String(); v != "" {
		c.Providers = splitCSV(v)
	}
	if v := sec.Key("nameservers").String(); v != "" {
		c.Nameservers = splitCSV(v)
	}

	parseAliases(sec.Key("aliases").String(), c.Aliases)

	for _, key := range sec.Keys() {
		k := key.Name()
		switch {
		case strings.HasPrefix(k, "connection_parameters__"):
			rest := strings.TrimPrefix(k, "connection_parameters__")
			c.ConnectionParams[strings.ReplaceAll(rest, "__", ".")] = key.Value()
		case strings.HasPrefix(k, "info_"):
			c.Info[strings.TrimPrefix(k, "info_")] = key.Value()
		}
	}
	return c, nil
}

func durationSeconds(sec *ini.Section, key string, def time.Duration) time.Duration {
	v := sec.Key(key).MustFloat64(-1)
	if v < 0 {
		return def
	}
	return time.Duration(v * float64(time.Second))
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseAliases understands the original's "key1:val1|key2:val2" per-field
// syntax, nested one level deeper as "field=src1:dst1|src2:dst2,field2=...".
func parseAliases(v string, into map[string]map[string]string) {
	if v == "" {
		return
	}
	for _, field := range strings.Split(v, ",") {
		field = strings.TrimSpace(field)
		eq := strings.IndexByte(field, '=')
		if eq < 0 {
			continue
		}
		key, rest := field[:eq], field[eq+1:]
		m := map[string]string{}
		for _, pair := range strings.Split(rest, "|") {
			kv := strings.SplitN(pair, ":", 2)
			if len(kv) == 2 {
				m[kv[0]] = kv[1]
			}
		}
		into[key] = m
	}
}
