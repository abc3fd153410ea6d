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

package up

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/kbridge/kbridge/cmd/utils"
	"github.com/kbridge/kbridge/pkg/cluster"
	"github.com/kbridge/kbridge/pkg/config"
	kErrors "github.com/kbridge/kbridge/pkg/errors"
	"github.com/kbridge/kbridge/pkg/log"
	"github.com/kbridge/kbridge/pkg/model"
	"github.com/kbridge/kbridge/pkg/proxy"
)

// activate walks the session through its states: validate, remote workload,
// local proxy, readiness, payload. Any failure propagates to start(), which
// unwinds whatever was acquired so far.
func (up *upContext) activate(ctx context.Context) (err error) {
	defer up.recoverCrash(&err)

	if err := config.UpdateStateFile(up.Session.ID, config.Validating); err != nil {
		return err
	}
	clusterMgr := cluster.NewManager(up.Runner, up.Registry, up.Settings)
	if err := up.validatePreconditions(ctx, clusterMgr); err != nil {
		return err
	}

	spinner := utils.NewSpinner("Creating the remote workload...")
	spinner.Start()
	defer spinner.Stop()

	workload, err := clusterMgr.EnsureWorkload(ctx, up.Options.Workload, up.Session, up.Options.Expose)
	if err != nil {
		return err
	}
	if err := config.UpdateStateFile(up.Session.ID, config.RemoteReady); err != nil {
		return err
	}

	spinner.Update("starting the local proxy...")
	if err := config.UpdateStateFile(up.Session.ID, config.StartingProxy); err != nil {
		return err
	}
	supervisor := proxy.NewSupervisor(up.Runner, up.Registry, up.Settings, up.Fs)
	p, err := supervisor.Launch(ctx, up.Session, workload)
	if err != nil {
		return err
	}

	spinner.Update("waiting for the proxy to become ready...")
	if err := config.UpdateStateFile(up.Session.ID, config.WaitingReadiness); err != nil {
		return err
	}
	overlay, err := supervisor.WaitForReadiness(ctx, p.ScratchDir, up.Session.Mode)
	if err != nil {
		return err
	}

	spinner.Stop()
	log.Success("Proxy is ready, workload '%s' is bridged", workload.Name)

	if err := config.UpdateStateFile(up.Session.ID, config.Running); err != nil {
		return err
	}
	code, err := up.strategyFactory().Attach(ctx, p, overlay)
	if err != nil {
		return err
	}
	up.payloadExitCode = code
	log.Infof("payload finished with exit code %d", code)
	return nil
}

// validatePreconditions verifies the external tooling the session depends
// on before anything is acquired
func (up *upContext) validatePreconditions(ctx context.Context, clusterMgr *cluster.Manager) error {
	if _, err := exec.LookPath("kubectl"); err != nil {
		return kErrors.UserError{
			E:    fmt.Errorf("kubectl is not installed"),
			Hint: "Install kubectl and make sure it is in your PATH: https://kubernetes.io/docs/tasks/tools/",
		}
	}

	clusterContext, err := clusterMgr.CurrentContext(ctx)
	if err != nil {
		return err
	}
	up.clusterContext = clusterContext
	log.Infof("using cluster context '%s'", clusterContext)

	if err := clusterMgr.CheckAccess(ctx); err != nil {
		return err
	}

	if _, err := up.Runner.Output(ctx, "docker", "version", "--format", "{{.Server.Version}}"); err != nil {
		log.Infof("docker version failed: %s", err)
		return kErrors.UserError{
			E:    fmt.Errorf("couldn't talk to the local container runtime"),
			Hint: "Make sure docker is installed and its daemon is running.",
		}
	}

	if up.Session.Mode == model.DirectShell {
		if _, err := exec.LookPath("torsocks"); err != nil {
			return kErrors.UserError{
				E:    fmt.Errorf("torsocks is not installed"),
				Hint: "Install torsocks to relay your shell's traffic, or use --docker-run instead.",
			}
		}
	}

	return nil
}
