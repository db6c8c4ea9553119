package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DispatcherConfig is the dispatcher's YAML schema: one top-level key per
// client.
type DispatcherConfig map[string]ClientConfig

type ClientConfig struct {
	Host                string                    `yaml:"host"`
	FilePattern         string                    `yaml:"filepattern"`
	Directory           string                    `yaml:"directory"`
	PublishTopic        string                    `yaml:"publish_topic"`
	ConnectionParams    map[string]any            `yaml:"connection_parameters"`
	Aliases             map[string]aliasEntryYAML `yaml:"aliases"`
	DispatchConfigsYAML []dispatchConfigYAML      `yaml:"dispatch_configs"`
}

type aliasEntryYAML struct {
	AliasName string         `yaml:"_alias_name"`
	Values    map[string]any `yaml:",inline"`
}

type dispatchConfigYAML struct {
	Topics      []string         `yaml:"topics"`
	Conditions  []map[string]any `yaml:"conditions"`
	Host        string           `yaml:"host"`
	FilePattern string           `yaml:"filepattern"`
	Directory   string           `yaml:"directory"`
}

// LoadYAML parses the dispatcher's client/dispatch_configs schema.
func LoadYAML(path string) (DispatcherConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("read %s: %v", path, err)}
	}
	var dc DispatcherConfig
	if err := yaml.Unmarshal(raw, &dc); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("parse %s: %v", path, err)}
	}
	return dc, nil
}

// ToChains normalizes the YAML client map into the same Chain shape the INI
// loaders produce, so the dispatcher shares reload.go's diff/restart logic
// with producer/consumer/mirror.
func (dc DispatcherConfig) ToChains() map[string]*Chain {
	out := make(map[string]*Chain, len(dc))
	for name, cc := range dc {
		c := &Chain{
			Name:             name,
			Destinations:     []string{cc.Host},
			PublishTopic:     cc.PublishTopic,
			Aliases:          map[string]map[string]string{},
			AliasName:        map[string]string{},
			ConnectionParams: cc.ConnectionParams,
		}
		for key, entry := range cc.Aliases {
			m := make(map[string]string, len(entry.Values))
			for k, v := range entry.Values {
				m[k] = fmt.Sprint(v)
			}
			c.Aliases[key] = m
			if entry.AliasName != "" {
				c.AliasName[key] = entry.AliasName
			}
		}
		for _, dcfg := range cc.DispatchConfigsYAML {
			sets := make([]ConditionSet, 0, len(dcfg.Conditions))
			for _, cond := range dcfg.Conditions {
				cs := ConditionSet{Conditions: map[string]any{}}
				for k, v := range cond {
					if k == "except" {
						if em, ok := v.(map[string]any); ok {
							cs.Except = em
						}
						continue
					}
					cs.Conditions[k] = v
				}
				sets = append(sets, cs)
			}
			host := dcfg.Host
			if host == "" {
				host = cc.Host
			}
			fp := dcfg.FilePattern
			if fp == "" {
				fp = cc.FilePattern
			}
			dir := dcfg.Directory
			if dir == "" {
				dir = cc.Directory
			}
			c.DispatchConfigs = append(c.DispatchConfigs, DispatchConfig{
				Topics:      dcfg.Topics,
				Conditions:  sets,
				Host:        host,
				FilePattern: fp,
				Directory:   dir,
			})
		}
		out[name] = c
	}
	return out
}
