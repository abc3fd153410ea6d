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

package cmd

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/kbridge/kbridge/pkg/cleanup"
	"github.com/kbridge/kbridge/pkg/cluster"
	"github.com/kbridge/kbridge/pkg/config"
	"github.com/kbridge/kbridge/pkg/log"
	"github.com/kbridge/kbridge/pkg/runner"
	"github.com/spf13/cobra"
)

// Doctor checks that every external tool a session depends on is usable
func Doctor() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that your machine is ready to run a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			r := runner.NewExec()

			settings, err := config.GetSettings()
			if err != nil {
				return err
			}
			clusterMgr := cluster.NewManager(r, cleanup.NewRegistry(), settings)

			checks := []struct {
				name string
				fn   func() error
			}{
				{"kubectl is installed", func() error {
					_, err := exec.LookPath("kubectl")
					return err
				}},
				{"a cluster context is selected", func() error {
					_, err := clusterMgr.CurrentContext(ctx)
					return err
				}},
				{"the cluster is reachable", func() error {
					return clusterMgr.CheckAccess(ctx)
				}},
				{"the container runtime is usable", func() error {
					_, err := r.Output(ctx, "docker", "version", "--format", "{{.Server.Version}}")
					return err
				}},
				{"torsocks is installed (shell mode)", func() error {
					_, err := exec.LookPath("torsocks")
					return err
				}},
			}

			failed := 0
			for _, c := range checks {
				if err := c.fn(); err != nil {
					log.Fail("%s", c.name)
					log.Infof("check '%s' failed: %s", c.name, err)
					failed++
					continue
				}
				log.Success("%s", c.name)
			}

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}
