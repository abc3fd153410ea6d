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
	"os"
	"os/signal"
	"syscall"

	"github.com/kbridge/kbridge/pkg/cleanup"
	"github.com/kbridge/kbridge/pkg/config"
	kErrors "github.com/kbridge/kbridge/pkg/errors"
	"github.com/kbridge/kbridge/pkg/log"
	"github.com/kbridge/kbridge/pkg/model"
	"github.com/kbridge/kbridge/pkg/runmode"
	"github.com/kbridge/kbridge/pkg/runner"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Options represents the options available on up command
type Options struct {
	// Workload is a pre-existing workload to join. When empty a new one
	// is created for the session and deleted when it ends.
	Workload string

	// Expose are the ports the remote workload declares
	Expose []int

	// DockerRun switches to delegated-container mode; the payload argv
	// comes after '--'
	DockerRun bool

	payloadArgs []string
}

type upContext struct {
	Session  *model.Session
	Settings *config.Settings
	Registry *cleanup.Registry
	Runner   runner.Runner
	Fs       afero.Fs
	Options  *Options
	Exit     chan error

	clusterContext  string
	strategyFactory func() runmode.Strategy
	payloadExitCode int
	interrupted     bool
}

// Up bridges a local shell or container into the cluster
func Up() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "up [-- ARG...]",
		Short: "Run a local shell or container as if it were inside your cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.payloadArgs = args

			mode := model.DirectShell
			if opts.DockerRun {
				if len(opts.payloadArgs) == 0 {
					return kErrors.UserError{
						E:    fmt.Errorf("--docker-run requires the payload arguments after '--'"),
						Hint: fmt.Sprintf("Example: %s up --docker-run -- -it alpine:3.5 /bin/sh", config.GetBinaryName()),
					}
				}
				mode = model.DelegatedContainer
			} else if len(opts.payloadArgs) > 0 {
				return kErrors.UserError{
					E:    fmt.Errorf("payload arguments are only accepted with --docker-run"),
					Hint: "Drop the extra arguments to get an interactive shell instead.",
				}
			}

			settings, err := config.GetSettings()
			if err != nil {
				return err
			}

			session := model.NewSession(mode)
			log.ConfigureFileLogger(config.GetSessionHome(session.ID), config.VersionString)
			log.Infof("starting session %s in %s mode", session.ID, mode)

			execRunner := runner.NewExec()
			up := &upContext{
				Session:  session,
				Settings: settings,
				Registry: cleanup.NewRegistry(),
				Runner:   execRunner,
				Fs:       afero.NewOsFs(),
				Options:  opts,
				Exit:     make(chan error, 1),
			}
			up.strategyFactory = func() runmode.Strategy {
				if mode == model.DelegatedContainer {
					return runmode.NewContainer(execRunner, up.Registry, opts.payloadArgs)
				}
				return runmode.NewShell(up.Registry, session, up.clusterContext)
			}

			return up.start()
		},
	}

	cmd.Flags().StringVarP(&opts.Workload, "workload", "w", "", "bridge into an existing workload instead of creating one")
	cmd.Flags().IntSliceVarP(&opts.Expose, "expose", "e", nil, "ports the remote workload exposes")
	cmd.Flags().BoolVarP(&opts.DockerRun, "docker-run", "d", false, "run the payload as a container sharing the proxy's network")
	return cmd
}

// start installs the signal handling and supervises the activation. The
// cleanup ledger is unwound exactly once no matter how the session ends.
func (up *upContext) start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		up.Exit <- up.activate(ctx)
	}()

	select {
	case <-stop:
		log.Infof("interrupt received, starting shutdown sequence")
		up.interrupted = true
		cancel()
		up.unwind()
		log.Println()
		// a user-initiated abort is a normal termination
		return nil
	case err := <-up.Exit:
		up.unwind()
		if err != nil {
			return err
		}
		if up.payloadExitCode != 0 {
			return kErrors.ExitError{Code: up.payloadExitCode}
		}
		return nil
	}
}

// unwind runs the cleanup ledger and retires the session state file
func (up *upContext) unwind() {
	if err := config.UpdateStateFile(up.Session.ID, config.Unwinding); err != nil {
		log.Infof("failed to update state file: %s", err)
	}

	up.Registry.Unwind()

	if err := config.DeleteStateFile(up.Session.ID); err != nil && !os.IsNotExist(err) {
		log.Infof("failed to delete state file: %s", err)
	}
	log.Info("completed shutdown sequence")
}
