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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSettingsDefaults(t *testing.T) {
	t.Setenv("KBRIDGE_FOLDER", t.TempDir())

	s, err := GetSettings()
	require.NoError(t, err)

	assert.Equal(t, DefaultRemoteImage, s.RemoteImage)
	assert.Equal(t, DefaultProxyImage, s.ProxyImage)
	assert.Equal(t, DefaultPollInterval, s.PollInterval)
	assert.Equal(t, DefaultGraceDelay, s.GraceDelay)
}

func TestGetSettingsFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KBRIDGE_FOLDER", dir)

	content := "remoteImage: registry.local/remote:v2\npollInterval: 250ms\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, settingsFile), []byte(content), 0644))

	s, err := GetSettings()
	require.NoError(t, err)

	assert.Equal(t, "registry.local/remote:v2", s.RemoteImage)
	assert.Equal(t, 250*time.Millisecond, s.PollInterval)
	assert.Equal(t, DefaultProxyImage, s.ProxyImage, "unset keys keep their defaults")
}

func TestGetSettingsEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KBRIDGE_FOLDER", dir)

	content := "proxyImage: registry.local/proxy:v2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, settingsFile), []byte(content), 0644))

	t.Setenv("KBRIDGE_PROXY_IMAGE", "registry.local/proxy:v3")
	t.Setenv("KBRIDGE_GRACE_DELAY", "1s")

	s, err := GetSettings()
	require.NoError(t, err)

	assert.Equal(t, "registry.local/proxy:v3", s.ProxyImage)
	assert.Equal(t, time.Second, s.GraceDelay)
}

func TestGetSettingsIgnoresInvalidDuration(t *testing.T) {
	t.Setenv("KBRIDGE_FOLDER", t.TempDir())
	t.Setenv("KBRIDGE_POLL_INTERVAL", "not-a-duration")

	s, err := GetSettings()
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, s.PollInterval)
}

func TestGetSettingsRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KBRIDGE_FOLDER", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, settingsFile), []byte("\tnot yaml"), 0644))

	_, err := GetSettings()
	assert.Error(t, err)
}
