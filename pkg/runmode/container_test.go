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

package runmode

import (
	"context"
	"strings"
	"testing"

	"github.com/kbridge/kbridge/pkg/cleanup"
	"github.com/kbridge/kbridge/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   [][]string
	outputs map[string]string
	errs    map[string]error
}

func (f *fakeRunner) key(argv []string) string {
	if len(argv) < 2 {
		return strings.Join(argv, " ")
	}
	return strings.Join(argv[:2], " ")
}

func (f *fakeRunner) Run(ctx context.Context, argv ...string) error {
	f.calls = append(f.calls, argv)
	return f.errs[f.key(argv)]
}

func (f *fakeRunner) Output(ctx context.Context, argv ...string) (string, error) {
	f.calls = append(f.calls, argv)
	if err := f.errs[f.key(argv)]; err != nil {
		return "", err
	}
	return f.outputs[f.key(argv)], nil
}

func TestPayloadArgv(t *testing.T) {
	p := &model.ProxyContainer{
		Name:       "kbridge-proxy-s1",
		ScratchDir: "/tmp/scratch",
	}

	argv := PayloadArgv(p, []string{"-it", "alpine:3.5", "/bin/sh"})

	expected := []string{
		"docker", "run", "--rm",
		"--net=container:kbridge-proxy-s1",
		"--env-file=/tmp/scratch/docker.env",
		"--label", "kbridge.proxy=kbridge-proxy-s1",
		"-it", "alpine:3.5", "/bin/sh",
	}
	assert.Equal(t, expected, argv)
}

func TestStopLabeledStopsEverySurvivor(t *testing.T) {
	f := &fakeRunner{outputs: map[string]string{"docker ps": "abc123\ndef456"}}
	c := &Container{runner: f, registry: cleanup.NewRegistry()}

	err := c.stopLabeled("kbridge-proxy-s1")
	require.NoError(t, err)

	require.Len(t, f.calls, 3)
	assert.Equal(t, []string{"docker", "ps", "-q", "--filter", "label=kbridge.proxy=kbridge-proxy-s1"}, f.calls[0])
	assert.Equal(t, []string{"docker", "stop", "abc123"}, f.calls[1])
	assert.Equal(t, []string{"docker", "stop", "def456"}, f.calls[2])
}

func TestStopLabeledWithNoSurvivors(t *testing.T) {
	f := &fakeRunner{}
	c := &Container{runner: f, registry: cleanup.NewRegistry()}

	err := c.stopLabeled("kbridge-proxy-s1")
	require.NoError(t, err)
	assert.Len(t, f.calls, 1, "nothing to stop, nothing stopped")
}
