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
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/kbridge/kbridge/pkg/cleanup"
	"github.com/kbridge/kbridge/pkg/log"
	"github.com/kbridge/kbridge/pkg/model"
	"github.com/kbridge/kbridge/pkg/proxy"
	"github.com/kbridge/kbridge/pkg/runner"
)

// proxyLabel tags payload containers with the proxy they belong to so
// survivors can be found and stopped during unwind
const proxyLabel = "kbridge.proxy"

// Container is the delegated-container strategy: the payload runs as a
// container sharing the proxy container's network namespace.
type Container struct {
	runner   runner.Runner
	exec     *runner.Exec
	registry *cleanup.Registry
	args     []string
}

// NewContainer returns the delegated-container strategy. args is the
// user-supplied payload command and arguments, passed to the container
// runtime verbatim.
func NewContainer(r *runner.Exec, reg *cleanup.Registry, args []string) *Container {
	return &Container{
		runner:   r,
		exec:     r,
		registry: reg,
		args:     args,
	}
}

// PayloadArgv builds the container invocation for a payload attached to the
// given proxy
func PayloadArgv(p *model.ProxyContainer, args []string) []string {
	argv := []string{
		"docker", "run", "--rm",
		fmt.Sprintf("--net=container:%s", p.Name),
		fmt.Sprintf("--env-file=%s", proxy.ArtifactPath(p.ScratchDir, model.DelegatedContainer)),
		"--label", fmt.Sprintf("%s=%s", proxyLabel, p.Name),
	}
	return append(argv, args...)
}

// Attach implements Strategy
func (c *Container) Attach(ctx context.Context, p *model.ProxyContainer, overlay map[string]string) (int, error) {
	// the payload container can outlive this process's handle on it, so
	// unwind searches by label instead of keeping a reference
	c.registry.Register("stop payload containers", func() error {
		return c.stopLabeled(p.Name)
	})

	argv := c.exec.Argv(PayloadArgv(p, c.args))
	log.Infof("running payload: %s", strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if cmd.ProcessState != nil {
		code := cmd.ProcessState.ExitCode()
		if code > 0 {
			return code, nil
		}
	}
	if err != nil && ctx.Err() == nil {
		return 0, err
	}
	return 0, nil
}

func (c *Container) stopLabeled(proxyName string) error {
	out, err := c.runner.Output(context.Background(), "docker", "ps", "-q", "--filter", fmt.Sprintf("label=%s=%s", proxyLabel, proxyName))
	if err != nil {
		return err
	}
	if out == "" {
		return nil
	}
	for _, id := range strings.Fields(out) {
		if err := c.runner.Run(context.Background(), "docker", "stop", id); err != nil {
			log.Infof("failed to stop payload container %s: %s", id, err)
		}
	}
	return nil
}
