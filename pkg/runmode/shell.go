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
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/alessio/shellescape"
	"github.com/google/uuid"
	"github.com/kbridge/kbridge/pkg/cleanup"
	"github.com/kbridge/kbridge/pkg/log"
	"github.com/kbridge/kbridge/pkg/model"
	"github.com/moby/term"
)

// Shell is the direct-shell strategy: an interactive local shell whose
// traffic is relayed through the proxy's published SOCKS port by torsocks.
type Shell struct {
	registry       *cleanup.Registry
	session        *model.Session
	clusterContext string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewShell returns the direct-shell strategy
func NewShell(reg *cleanup.Registry, session *model.Session, clusterContext string) *Shell {
	return &Shell{
		registry:       reg,
		session:        session,
		clusterContext: clusterContext,
	}
}

// RelayConfig renders the private relay configuration granting inbound
// listening and pinning the relay's upstream port to the proxy's SOCKS port
func RelayConfig(socksPort int) string {
	return fmt.Sprintf("AllowInbound 1\nTorPort %d\n", socksPort)
}

// Attach implements Strategy
func (s *Shell) Attach(ctx context.Context, proxy *model.ProxyContainer, overlay map[string]string) (int, error) {
	confPath := filepath.Join(os.TempDir(), fmt.Sprintf("kbridge-torsocks-%s.conf", uuid.New().String()))
	if err := os.WriteFile(confPath, []byte(RelayConfig(proxy.SocksPort)), 0600); err != nil {
		return 0, fmt.Errorf("couldn't write the relay configuration: %w", err)
	}

	s.registry.Register("remove relay configuration and stop shell", func() error {
		if err := os.Remove(confPath); err != nil && !os.IsNotExist(err) {
			log.Infof("failed to remove %s: %s", confPath, err)
		}
		return s.terminate()
	})

	marker := fmt.Sprintf("[%s/%s] ", s.clusterContext, s.session.ID)
	env := BuildShellEnv(os.Environ(), overlay, marker, confPath)

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}

	cmd := exec.CommandContext(ctx, "torsocks", shell)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	inFd, isTerm := term.GetFdInfo(os.Stdin)
	var state *term.State
	if isTerm {
		var err error
		state, err = term.SaveState(inFd)
		if err != nil {
			log.Infof("failed to save the state of the terminal: %s", err)
		}
	}
	defer func() {
		if state != nil {
			if err := term.RestoreTerminal(inFd, state); err != nil {
				log.Infof("failed to restore terminal: %s", err)
			}
		}
	}()

	log.Println()
	log.Information("Your shell is now bridged into the cluster. Exit it to end the session.")
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("couldn't start the shell: %w", err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	err := cmd.Wait()
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

// BuildShellEnv merges the environment overlay over the host environment,
// points the relay at confPath and decorates the prompt with the active
// cluster context and session marker.
func BuildShellEnv(hostEnv []string, overlay map[string]string, marker, confPath string) []string {
	merged := map[string]string{}
	for _, kv := range hostEnv {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		merged[parts[0]] = parts[1]
	}
	for k, v := range overlay {
		merged[k] = v
	}

	merged["TORSOCKS_CONF_FILE"] = confPath
	merged["KBRIDGE_SESSION"] = strings.TrimSpace(marker)

	// cosmetic: show where the shell is bridged to. PROMPT_COMMAND wins
	// over PS1 in bash, so when one is already set our prefix is applied
	// there instead.
	merged["PS1"] = marker + merged["PS1"]
	if pc, ok := merged["PROMPT_COMMAND"]; ok && pc != "" {
		merged["PROMPT_COMMAND"] = fmt.Sprintf("%s;PS1=%s\"$PS1\"", pc, shellescape.Quote(marker))
	}

	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(env)
	return env
}

// terminate stops the shell and its children if they are still running
func (s *Shell) terminate() error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if cmd.ProcessState != nil {
		// already exited
		return nil
	}

	log.Infof("terminating shell %d", cmd.Process.Pid)
	terminateTree(cmd.Process.Pid)
	return nil
}
