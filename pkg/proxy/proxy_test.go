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

package proxy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kbridge/kbridge/pkg/cleanup"
	"github.com/kbridge/kbridge/pkg/config"
	kErrors "github.com/kbridge/kbridge/pkg/errors"
	"github.com/kbridge/kbridge/pkg/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   [][]string
	outputs map[string]string
	errs    map[string]error
	onCall  func(argv []string)
}

func key(argv []string) string {
	if len(argv) < 2 {
		return strings.Join(argv, " ")
	}
	return strings.Join(argv[:2], " ")
}

func (f *fakeRunner) record(argv []string) {
	f.calls = append(f.calls, argv)
	if f.onCall != nil {
		f.onCall(argv)
	}
}

func (f *fakeRunner) Run(ctx context.Context, argv ...string) error {
	f.record(argv)
	return f.errs[key(argv)]
}

func (f *fakeRunner) Output(ctx context.Context, argv ...string) (string, error) {
	f.record(argv)
	if err := f.errs[key(argv)]; err != nil {
		return "", err
	}
	return f.outputs[key(argv)], nil
}

func testSettings() *config.Settings {
	return &config.Settings{
		ProxyImage:   "kbridge/proxy:latest",
		PollInterval: time.Millisecond,
		GraceDelay:   time.Millisecond,
	}
}

func TestLaunchInContainerMode(t *testing.T) {
	f := &fakeRunner{}
	reg := cleanup.NewRegistry()
	s := NewSupervisor(f, reg, testSettings(), afero.NewMemMapFs())

	stopRegisteredAtRun := false
	f.onCall = func(argv []string) {
		if argv[1] != "run" {
			return
		}
		for _, name := range reg.Names() {
			if strings.HasPrefix(name, "stop proxy container") {
				stopRegisteredAtRun = true
			}
		}
	}

	session := model.NewSession(model.DelegatedContainer)
	p, err := s.Launch(context.Background(), session, &model.RemoteWorkload{Name: "demo", Owned: true, Ports: []int{8080}})
	require.NoError(t, err)

	assert.Equal(t, "kbridge-proxy-"+session.ID, p.Name)
	assert.Equal(t, "127.0.0.1", p.HostAddress)
	assert.NotEmpty(t, p.ScratchDir)
	assert.True(t, stopRegisteredAtRun, "the stop action must be in the ledger before the container is started")

	require.Len(t, f.calls, 1)
	argv := f.calls[0]
	assert.Equal(t, []string{"docker", "run", "--rm", "--detach"}, argv[:4])
	assert.Contains(t, argv, "kbridge/proxy:latest")
	assert.NotContains(t, argv, "-p", "the SOCKS port is only published in shell mode")
	// the image's arguments come last: workload, mode, host address, ports
	assert.Equal(t, []string{"demo", "container", "127.0.0.1", "8080"}, argv[len(argv)-4:])
}

func TestLaunchInShellModePublishesTheSocksPort(t *testing.T) {
	f := &fakeRunner{outputs: map[string]string{"docker port": "0.0.0.0:32768"}}
	s := NewSupervisor(f, cleanup.NewRegistry(), testSettings(), afero.NewMemMapFs())

	p, err := s.Launch(context.Background(), model.NewSession(model.DirectShell), &model.RemoteWorkload{Name: "demo"})
	require.NoError(t, err)

	assert.Equal(t, 32768, p.SocksPort)
	assert.NotEmpty(t, p.HostAddress)

	run := f.calls[0]
	assert.Contains(t, run, "-p")
	assert.Contains(t, run, "9050")
}

func TestLaunchFailureLeavesTheStopActionRegistered(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{"docker run": kErrors.ProcessError{ExitCode: 125}}}
	reg := cleanup.NewRegistry()
	s := NewSupervisor(f, reg, testSettings(), afero.NewMemMapFs())

	_, err := s.Launch(context.Background(), model.NewSession(model.DelegatedContainer), &model.RemoteWorkload{Name: "demo"})
	require.Error(t, err)

	names := reg.Names()
	require.Len(t, names, 2)
	assert.Equal(t, "remove scratch directory", names[0])
	assert.True(t, strings.HasPrefix(names[1], "stop proxy container"))
}

func TestPublishedPort(t *testing.T) {
	var tests = []struct {
		name        string
		out         string
		expected    int
		expectedErr bool
	}{
		{name: "single mapping", out: "0.0.0.0:32768", expected: 32768},
		{name: "one mapping per family", out: "0.0.0.0:49153\n[::]:49154", expected: 49153},
		{name: "garbage", out: "no port mapping", expectedErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRunner{outputs: map[string]string{"docker port": tt.out}}
			s := NewSupervisor(f, cleanup.NewRegistry(), testSettings(), afero.NewMemMapFs())
			port, err := s.PublishedPort(context.Background(), "c1", SocksPort)
			if tt.expectedErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, port)
		})
	}
}

func TestArtifactPath(t *testing.T) {
	assert.Equal(t, "/scratch/unproxied.env", ArtifactPath("/scratch", model.DirectShell))
	assert.Equal(t, "/scratch/docker.env", ArtifactPath("/scratch", model.DelegatedContainer))
}

func TestWaitForReadinessReturnsTheOverlay(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewSupervisor(&fakeRunner{}, cleanup.NewRegistry(), testSettings(), fs)

	artifact := "API_HOST=10.0.0.12\nAPI_PORT=8080\nDATA_URL=postgres://db?sslmode=disable\n"
	go func() {
		time.Sleep(10 * time.Millisecond)
		err := afero.WriteFile(fs, "/scratch/docker.env", []byte(artifact), 0644)
		assert.NoError(t, err)
	}()

	overlay, err := s.WaitForReadiness(context.Background(), "/scratch", model.DelegatedContainer)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"API_HOST": "10.0.0.12",
		"API_PORT": "8080",
		// only the first '=' separates key from value
		"DATA_URL": "postgres://db?sslmode=disable",
	}, overlay)
}

func TestWaitForReadinessHonorsCancellation(t *testing.T) {
	s := NewSupervisor(&fakeRunner{}, cleanup.NewRegistry(), testSettings(), afero.NewMemMapFs())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := s.WaitForReadiness(ctx, "/scratch", model.DirectShell)
	assert.ErrorIs(t, err, context.Canceled)
}
