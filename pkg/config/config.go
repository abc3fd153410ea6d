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

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kbridge/kbridge/pkg/log"
)

// SessionState represents the state of the session orchestrator
type SessionState string

const (
	kbridgeFolderName = ".kbridge"

	// Initialized session created, nothing acquired yet
	Initialized SessionState = "initialized"
	// Validating checking external tooling and cluster access
	Validating SessionState = "validating"
	// RemoteReady the cluster-side workload exists
	RemoteReady SessionState = "remoteReady"
	// StartingProxy the local proxy container run call was issued
	StartingProxy SessionState = "startingProxy"
	// WaitingReadiness polling for the environment overlay file
	WaitingReadiness SessionState = "waitingReadiness"
	// Running the payload is attached and running
	Running SessionState = "running"
	// Unwinding releasing every acquired resource in reverse order
	Unwinding SessionState = "unwinding"
	// Terminal the session is over
	Terminal SessionState = "terminal"

	stateFile = "kbridge.state"
)

// VersionString the version of the cli
var VersionString string

// GetBinaryName returns the name of the binary
func GetBinaryName() string {
	return filepath.Base(os.Args[0])
}

// GetUserHomeDir returns the home of the user
func GetUserHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("couldn't determine your home directory: %s", err)
	}
	return home
}

// GetHome returns the path of the kbridge folder
func GetHome() string {
	if v, ok := os.LookupEnv("KBRIDGE_FOLDER"); ok {
		if _, err := os.Stat(v); err != nil {
			log.Fatalf("KBRIDGE_FOLDER doesn't exist: %s", v)
		}
		return v
	}

	d := filepath.Join(GetUserHomeDir(), kbridgeFolderName)
	if err := os.MkdirAll(d, 0700); err != nil {
		log.Fatalf("failed to create %s: %s", d, err)
	}

	return d
}

// GetSessionHome returns the folder where a session keeps its state and logs
func GetSessionHome(sessionID string) string {
	d := filepath.Join(GetHome(), sessionID)
	if err := os.MkdirAll(d, 0700); err != nil {
		log.Fatalf("failed to create %s: %s", d, err)
	}

	return d
}

// UpdateStateFile records the current orchestrator state for a session
func UpdateStateFile(sessionID string, state SessionState) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is empty")
	}
	s := filepath.Join(GetSessionHome(sessionID), stateFile)
	if err := os.WriteFile(s, []byte(state), 0644); err != nil {
		return fmt.Errorf("failed to update state file: %w", err)
	}
	return nil
}

// DeleteStateFile removes the state file of a session
func DeleteStateFile(sessionID string) error {
	s := filepath.Join(GetSessionHome(sessionID), stateFile)
	return os.Remove(s)
}
