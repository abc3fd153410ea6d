// Copyright 2023 The Kbridge Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kbridge/kbridge/pkg/log"
	yaml "gopkg.in/yaml.v3"
)

const (
	settingsFile = "config.yml"

	// DefaultRemoteImage is the image of the cluster-side proxy agent
	DefaultRemoteImage = "kbridge/remote:latest"

	// DefaultProxyImage is the image of the local proxy container
	DefaultProxyImage = "kbridge/proxy:latest"

	// DefaultPollInterval is how often the readiness artifact is checked
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultGraceDelay is how long to wait for the remote scheduler to
	// converge after a workload creation
	DefaultGraceDelay = 5 * time.Second
)

// Settings are the tunable defaults of a session. They come from
// ~/.kbridge/config.yml and can be overridden with environment variables.
type Settings struct {
	RemoteImage  string        `yaml:"remoteImage,omitempty"`
	ProxyImage   string        `yaml:"proxyImage,omitempty"`
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
	GraceDelay   time.Duration `yaml:"graceDelay,omitempty"`
}

// GetSettings loads the settings file and applies environment overrides
func GetSettings() (*Settings, error) {
	s := &Settings{
		RemoteImage:  DefaultRemoteImage,
		ProxyImage:   DefaultProxyImage,
		PollInterval: DefaultPollInterval,
		GraceDelay:   DefaultGraceDelay,
	}

	path := filepath.Join(GetHome(), settingsFile)
	b, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(b, s); err != nil {
			return nil, fmt.Errorf("invalid settings file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if v := os.Getenv("KBRIDGE_REMOTE_IMAGE"); v != "" {
		s.RemoteImage = v
	}
	if v := os.Getenv("KBRIDGE_PROXY_IMAGE"); v != "" {
		s.ProxyImage = v
	}
	if v := os.Getenv("KBRIDGE_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Yellow("'%s' is not a valid value for KBRIDGE_POLL_INTERVAL", v)
		} else {
			s.PollInterval = d
		}
	}
	if v := os.Getenv("KBRIDGE_GRACE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Yellow("'%s' is not a valid value for KBRIDGE_GRACE_DELAY", v)
		} else {
			s.GraceDelay = d
		}
	}

	return s, nil
}
