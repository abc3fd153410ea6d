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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessErrorMessage(t *testing.T) {
	var tests = []struct {
		name     string
		err      ProcessError
		expected string
	}{
		{
			name:     "without stderr",
			err:      ProcessError{Argv: []string{"kubectl", "cluster-info"}, ExitCode: 1},
			expected: "command 'kubectl cluster-info' failed with exit code 1",
		},
		{
			name:     "with stderr",
			err:      ProcessError{Argv: []string{"docker", "stop", "c1"}, ExitCode: 125, Stderr: "no such container\n"},
			expected: "command 'docker stop c1' failed with exit code 125: no such container",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestIsNotFound(t *testing.T) {
	var tests = []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "kubectl not found", err: fmt.Errorf(`deployments.apps "demo" not found`), expected: true},
		{name: "docker no such container", err: fmt.Errorf("Error response from daemon: No such container: c1"), expected: true},
		{name: "unrelated", err: fmt.Errorf("connection refused"), expected: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFound(tt.err))
		})
	}
}

func TestUserErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("boom")
	err := UserError{E: inner, Hint: "try again"}
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, inner, err.Unwrap())
}
