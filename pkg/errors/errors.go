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

package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// UserError is meant for errors displayed to the user. It can include a message and a hint
type UserError struct {
	E    error
	Hint string
}

// Error returns the error message
func (u UserError) Error() string {
	return u.E.Error()
}

func (u UserError) Unwrap() error {
	return u.E
}

// ProcessError is raised when an external invocation returns a non-zero exit status
type ProcessError struct {
	Argv     []string
	ExitCode int
	Stderr   string
}

// Error returns the error message
func (p ProcessError) Error() string {
	if p.Stderr != "" {
		return fmt.Sprintf("command '%s' failed with exit code %d: %s", shellquote.Join(p.Argv...), p.ExitCode, strings.TrimSpace(p.Stderr))
	}
	return fmt.Sprintf("command '%s' failed with exit code %d", shellquote.Join(p.Argv...), p.ExitCode)
}

// ExitError carries the payload's own exit code to the top of the program
type ExitError struct {
	Code int
}

// Error returns the error message
func (e ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

var (
	// ErrInterrupt is raised when we get an interrupt or termination signal in the middle of a session
	ErrInterrupt = errors.New("interrupt signal received")

	// ErrClusterUnreachable is raised when the cluster control plane doesn't answer
	ErrClusterUnreachable = errors.New("couldn't reach your cluster")

	// ErrNoClusterContext is raised when no cluster context is selected
	ErrNoClusterContext = errors.New("no cluster context is selected")
)

// IsNotFound returns true if err refers to a resource that is already gone
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case strings.Contains(err.Error(), "not found"),
		strings.Contains(err.Error(), "no such container"),
		strings.Contains(err.Error(), "No such container"),
		strings.Contains(err.Error(), "NotFound"):
		return true
	default:
		return false
	}
}
