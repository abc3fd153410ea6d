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

package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/kballard/go-shellquote"
	kErrors "github.com/kbridge/kbridge/pkg/errors"
	"github.com/kbridge/kbridge/pkg/log"
	"golang.org/x/sys/unix"
)

// Runner executes external processes on behalf of the session
type Runner interface {
	// Run executes argv, streaming its output to the log sink. It returns
	// a ProcessError on non-zero exit.
	Run(ctx context.Context, argv ...string) error

	// Output executes argv and returns its trimmed stdout on success. It
	// returns a ProcessError carrying the captured stderr on non-zero exit.
	Output(ctx context.Context, argv ...string) (string, error)
}

// Exec is the Runner backed by os/exec
type Exec struct {
	sudoOnce  sync.Once
	needsSudo bool
}

// NewExec returns a Runner backed by os/exec
func NewExec() *Exec {
	return &Exec{}
}

const dockerSocket = "/var/run/docker.sock"

// Argv returns argv with a sudo prefix when the invocation touches the
// container-runtime control socket and the current user can't write to it.
func (e *Exec) Argv(argv []string) []string {
	if len(argv) == 0 || argv[0] != "docker" {
		return argv
	}

	e.sudoOnce.Do(func() {
		e.needsSudo = socketNeedsSudo(dockerSocket)
		if e.needsSudo {
			log.Infof("%s is not writable by the current user, prefixing docker invocations with sudo", dockerSocket)
		}
	})

	if e.needsSudo {
		return append([]string{"sudo"}, argv...)
	}
	return argv
}

// Run implements Runner
func (e *Exec) Run(ctx context.Context, argv ...string) error {
	argv = e.Argv(argv)
	log.Infof("running: %s", shellquote.Join(argv...))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = log.Writer()
	cmd.Stderr = log.Writer()

	if err := cmd.Run(); err != nil {
		return asProcessError(argv, err, "")
	}
	return nil
}

// Output implements Runner
func (e *Exec) Output(ctx context.Context, argv ...string) (string, error) {
	argv = e.Argv(argv)
	log.Infof("running: %s", shellquote.Join(argv...))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = io.MultiWriter(&stdout, log.Writer())
	cmd.Stderr = io.MultiWriter(&stderr, log.Writer())

	if err := cmd.Run(); err != nil {
		return "", asProcessError(argv, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func asProcessError(argv []string, err error, stderr string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return kErrors.ProcessError{
			Argv:     argv,
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr,
		}
	}
	return kErrors.ProcessError{
		Argv:     argv,
		ExitCode: -1,
		Stderr:   err.Error(),
	}
}

func socketNeedsSudo(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return unix.Access(path, unix.W_OK) != nil
}
