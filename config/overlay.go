/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config reads the optional YAML file overlay cmd/netprobe-server
// and cmd/netprobe-client load on top of their flags, the same "flags cover
// the common case, a file covers the rest" split as
// sptp/client/config.go's ReadConfig.
package config

import (
	"os"

	yaml "gopkg.in/yaml.v2"
)

// FileOverlay holds the settings a run's YAML config file may override.
// Every field mirrors a flag in one of the cmd/ mains; a zero value means
// "the flag (or its default) wins", since there is no way to distinguish
// "explicitly set to zero" from "absent" in a flat YAML overlay.
type FileOverlay struct {
	Workers          int     `yaml:"workers"`
	MaxPayload       int     `yaml:"max_payload"`
	MsgSize          int     `yaml:"msg_size"`
	BurstSize        int     `yaml:"burst_size"`
	Mps              float64 `yaml:"mps"`
	ReplyEveryN      uint64  `yaml:"reply_every"`
	NumServers       int     `yaml:"num_servers"`
	RTTFilterLength  int     `yaml:"rtt_filter_length"`
	WarmupUsec       int64   `yaml:"warmup_usec"`
	CooldownUsec     int64   `yaml:"cooldown_usec"`
	TestDurationUsec int64   `yaml:"test_duration_usec"`
	NumberOfPackets  uint64  `yaml:"number_of_packets"`
	DummyMps         float64 `yaml:"dummy_mps"`
}

// ReadFileOverlay reads and parses a YAML overlay file.
func ReadFileOverlay(path string) (*FileOverlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c FileOverlay
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
