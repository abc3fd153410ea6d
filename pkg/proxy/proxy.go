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

// Package proxy supervises the local proxy container: it launches it,
// waits for the readiness artifact the proxy image writes to the scratch
// directory, and owns its teardown.
package proxy

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/compose-spec/godotenv"
	"github.com/google/uuid"
	"github.com/kbridge/kbridge/pkg/cleanup"
	"github.com/kbridge/kbridge/pkg/config"
	kErrors "github.com/kbridge/kbridge/pkg/errors"
	"github.com/kbridge/kbridge/pkg/log"
	"github.com/kbridge/kbridge/pkg/model"
	"github.com/kbridge/kbridge/pkg/runner"
	"github.com/spf13/afero"
)

const (
	// SocksPort is the port the proxy image listens on inside the container
	SocksPort = 9050

	// ShellModeArtifact signals readiness in direct-shell mode
	ShellModeArtifact = "unproxied.env"

	// ContainerModeArtifact signals readiness in delegated-container mode
	ContainerModeArtifact = "docker.env"
)

// Supervisor owns the local proxy container's lifecycle
type Supervisor struct {
	runner   runner.Runner
	registry *cleanup.Registry
	settings *config.Settings
	fs       afero.Fs
}

// NewSupervisor returns a Supervisor wired to the session's runner and cleanup ledger
func NewSupervisor(r runner.Runner, reg *cleanup.Registry, s *config.Settings, fs afero.Fs) *Supervisor {
	return &Supervisor{
		runner:   r,
		registry: reg,
		settings: s,
		fs:       fs,
	}
}

// Launch starts the proxy container detached and returns its identity. The
// stop action is registered before the run call is issued, so a container
// whose confirmation never arrives is still torn down.
func (s *Supervisor) Launch(ctx context.Context, session *model.Session, workload *model.RemoteWorkload) (*model.ProxyContainer, error) {
	scratch, err := afero.TempDir(s.fs, "", fmt.Sprintf("kbridge-%s-", uuid.New().String()[:8]))
	if err != nil {
		return nil, fmt.Errorf("couldn't create the scratch directory: %w", err)
	}
	s.registry.Register("remove scratch directory", func() error {
		return s.fs.RemoveAll(scratch)
	})

	home := config.GetUserHomeDir()
	name := fmt.Sprintf("kbridge-proxy-%s", session.ID)

	hostAddress := "127.0.0.1"
	if session.Mode == model.DirectShell {
		// the shell's traffic originates outside the container, so the
		// proxy needs an address of the host that is reachable from it
		hostAddress, err = routableHostAddress()
		if err != nil {
			return nil, err
		}
	}

	argv := []string{
		"docker", "run", "--rm", "--detach",
		"--name", name,
		"-v", fmt.Sprintf("%s:/opt:ro", home),
		// some tools hard-code absolute paths under the operator's home
		"-v", fmt.Sprintf("%s:%s:ro", home, home),
		"-v", fmt.Sprintf("%s:/output", scratch),
	}
	if session.Mode == model.DirectShell {
		argv = append(argv, "-p", strconv.Itoa(SocksPort))
	}
	argv = append(argv, s.settings.ProxyImage, workload.Name, string(session.Mode), hostAddress)
	for _, p := range workload.Ports {
		argv = append(argv, strconv.Itoa(p))
	}

	s.registry.Register(fmt.Sprintf("stop proxy container %s", name), func() error {
		err := s.runner.Run(context.Background(), "docker", "stop", name)
		if kErrors.IsNotFound(err) {
			return nil
		}
		return err
	})

	if err := s.runner.Run(ctx, argv...); err != nil {
		return nil, err
	}
	log.Infof("proxy container %s started", name)

	proxy := &model.ProxyContainer{
		Name:        name,
		ScratchDir:  scratch,
		HostAddress: hostAddress,
	}
	if session.Mode == model.DirectShell {
		proxy.SocksPort, err = s.PublishedPort(ctx, name, SocksPort)
		if err != nil {
			return nil, err
		}
	}

	return proxy, nil
}

// PublishedPort returns the host port a container port was published on
func (s *Supervisor) PublishedPort(ctx context.Context, container string, containerPort int) (int, error) {
	out, err := s.runner.Output(ctx, "docker", "port", container, strconv.Itoa(containerPort))
	if err != nil {
		return 0, err
	}

	// docker may print one mapping per address family; any of them works
	line := strings.SplitN(out, "\n", 2)[0]
	idx := strings.LastIndex(line, ":")
	if idx < 0 {
		return 0, fmt.Errorf("unexpected 'docker port' output: %q", out)
	}
	port, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
	if err != nil {
		return 0, fmt.Errorf("unexpected 'docker port' output: %q", out)
	}
	return port, nil
}

// ArtifactPath returns the path of the readiness artifact for a run mode
func ArtifactPath(scratchDir string, mode model.RunMode) string {
	if mode == model.DirectShell {
		return filepath.Join(scratchDir, ShellModeArtifact)
	}
	return filepath.Join(scratchDir, ContainerModeArtifact)
}

// WaitForReadiness blocks until the proxy writes the readiness artifact,
// then returns the environment overlay it contains. The artifact is checked
// at fixed intervals; the wait is unbounded but honors ctx cancellation so
// an interrupt can still unwind the session.
func (s *Supervisor) WaitForReadiness(ctx context.Context, scratchDir string, mode model.RunMode) (map[string]string, error) {
	path := ArtifactPath(scratchDir, mode)
	log.Infof("waiting for %s", path)

	t := time.NewTicker(s.settings.PollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}

		ok, err := afero.Exists(s.fs, path)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
	}

	b, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, err
	}
	overlay, err := godotenv.UnmarshalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse the environment overlay %s: %w", path, err)
	}
	log.Infof("environment overlay ready with %d variables", len(overlay))
	return overlay, nil
}

// routableHostAddress returns the address of this machine on the interface
// that carries its default route
func routableHostAddress() (string, error) {
	// no packet is sent, the dial just resolves the outbound interface
	conn, err := net.Dial("udp4", "8.8.8.8:53")
	if err != nil {
		hostname, herr := os.Hostname()
		if herr != nil {
			return "", fmt.Errorf("couldn't determine the host address: %w", err)
		}
		addrs, herr := net.LookupHost(hostname)
		if herr != nil || len(addrs) == 0 {
			return "", fmt.Errorf("couldn't determine the host address: %w", err)
		}
		return addrs[0], nil
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
