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

package model

import (
	"fmt"
	"os"
	"time"
)

// RunMode selects how the payload is attached to the proxy
type RunMode string

const (
	// DirectShell runs an interactive local shell relayed through a SOCKS tunnel
	DirectShell RunMode = "shell"

	// DelegatedContainer runs the payload as a container sharing the proxy's network namespace
	DelegatedContainer RunMode = "container"
)

// Session is the top-level unit of work
type Session struct {
	ID        string
	Mode      RunMode
	StartTime time.Time
}

// NewSession constructs a new Session. The ID is derived from the start time
// and the pid so concurrent sessions on the same machine never collide.
func NewSession(mode RunMode) *Session {
	now := time.Now()
	return &Session{
		ID:        fmt.Sprintf("%s-%d", now.Format("20060102-150405"), os.Getpid()),
		Mode:      mode,
		StartTime: now,
	}
}

// RemoteWorkload represents the cluster-side deployment the proxy agent runs inside
type RemoteWorkload struct {
	// Name of the deployment, user-supplied or session-derived
	Name string

	// Owned is true when the session created the workload and must delete it
	Owned bool

	// Ports exposed by the workload
	Ports []int
}

// ProxyContainer represents the local proxy container
type ProxyContainer struct {
	// Name of the container, unique per session
	Name string

	// ScratchDir is the private output directory mounted at /output
	ScratchDir string

	// SocksPort is the host port the container's SOCKS endpoint is
	// published on. Only set in direct-shell mode.
	SocksPort int

	// HostAddress is the address the payload's traffic originates from,
	// as seen by the proxy
	HostAddress string
}
