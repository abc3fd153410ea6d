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

// Package cluster manages the cluster-side workload the remote proxy agent
// runs inside. It talks to the cluster exclusively through the kubectl CLI,
// consuming trimmed stdout and exit codes.
package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/kbridge/kbridge/pkg/cleanup"
	"github.com/kbridge/kbridge/pkg/config"
	kErrors "github.com/kbridge/kbridge/pkg/errors"
	"github.com/kbridge/kbridge/pkg/log"
	"github.com/kbridge/kbridge/pkg/model"
	"github.com/kbridge/kbridge/pkg/runner"
)

// Manager creates and deletes the cluster-side workload
type Manager struct {
	runner   runner.Runner
	registry *cleanup.Registry
	settings *config.Settings
}

// NewManager returns a Manager wired to the session's runner and cleanup ledger
func NewManager(r runner.Runner, reg *cleanup.Registry, s *config.Settings) *Manager {
	return &Manager{
		runner:   r,
		registry: reg,
		settings: s,
	}
}

// CurrentContext returns the name of the selected cluster context
func (m *Manager) CurrentContext(ctx context.Context) (string, error) {
	out, err := m.runner.Output(ctx, "kubectl", "config", "current-context")
	if err != nil {
		return "", kErrors.UserError{
			E:    kErrors.ErrNoClusterContext,
			Hint: "Run 'kubectl config use-context' to select the cluster to bridge into and try again.",
		}
	}
	return out, nil
}

// CheckAccess verifies the cluster control plane answers
func (m *Manager) CheckAccess(ctx context.Context) error {
	if _, err := m.runner.Output(ctx, "kubectl", "cluster-info"); err != nil {
		log.Infof("cluster-info failed: %s", err)
		return kErrors.UserError{
			E:    kErrors.ErrClusterUnreachable,
			Hint: "Check your kubeconfig and your network connection and try again.",
		}
	}
	return nil
}

// EnsureWorkload returns the workload the session will bridge into.
//
// With a name, the workload is assumed to exist and the session is a guest:
// nothing is created and nothing is registered for deletion. Without a name,
// a session-derived workload is created; its deletion is registered in the
// cleanup ledger before the creation call is issued, so a creation whose
// confirmation never arrives is still compensated.
func (m *Manager) EnsureWorkload(ctx context.Context, name string, session *model.Session, ports []int) (*model.RemoteWorkload, error) {
	if name != "" {
		log.Infof("joining existing workload '%s'", name)
		return &model.RemoteWorkload{Name: name, Owned: false, Ports: ports}, nil
	}

	name = fmt.Sprintf("kbridge-%s", session.ID)

	// a previous session that died hard can have left a workload with
	// this name behind
	if err := m.deleteWorkload(ctx, name, true); err != nil {
		log.Infof("stale workload delete failed: %s", err)
	}

	m.registry.Register(fmt.Sprintf("delete workload %s", name), func() error {
		err := m.deleteWorkload(context.Background(), name, true)
		if kErrors.IsNotFound(err) {
			return nil
		}
		return err
	})

	argv := []string{"kubectl", "run", name, fmt.Sprintf("--image=%s", m.settings.RemoteImage), "--restart=Always"}
	for _, p := range ports {
		argv = append(argv, fmt.Sprintf("--port=%d", p), "--expose")
	}
	if err := m.runner.Run(ctx, argv...); err != nil {
		return nil, err
	}

	// give the remote scheduler a moment to converge before the proxy
	// starts dialing it
	log.Debugf("waiting %s for the scheduler to converge", m.settings.GraceDelay)
	select {
	case <-time.After(m.settings.GraceDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &model.RemoteWorkload{Name: name, Owned: true, Ports: ports}, nil
}

func (m *Manager) deleteWorkload(ctx context.Context, name string, ignoreNotFound bool) error {
	argv := []string{"kubectl", "delete", "deployment,service", name}
	if ignoreNotFound {
		argv = append(argv, "--ignore-not-found")
	}
	return m.runner.Run(ctx, argv...)
}
