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

// Package cleanup keeps an ordered ledger of release actions for the
// resources a session acquires. The ledger is unwound in reverse
// registration order so the most recently acquired resource is released
// first. Actions must be idempotent: both the normal-exit path and the
// signal path can reach Unwind.
package cleanup

import (
	"sync"

	"github.com/kbridge/kbridge/pkg/log"
)

type action struct {
	name string
	fn   func() error
}

// Registry is the ordered cleanup ledger of a session
type Registry struct {
	mu      sync.Mutex
	actions []action
	unwound bool
}

// NewRegistry returns an empty Registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a named release action to the ledger
func (r *Registry) Register(name string, fn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unwound {
		log.Infof("cleanup action '%s' registered after unwind, running it now", name)
		if err := fn(); err != nil {
			log.Infof("cleanup action '%s' failed: %s", name, err)
		}
		return
	}

	log.Debugf("registered cleanup action '%s'", name)
	r.actions = append(r.actions, action{name: name, fn: fn})
}

// Names returns the names of the registered actions in registration order
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.actions))
	for i, a := range r.actions {
		names[i] = a.name
	}
	return names
}

// Unwind runs every registered action exactly once, most recent first. A
// failed action is logged and never blocks the rest. A second call is a
// no-op.
func (r *Registry) Unwind() {
	r.mu.Lock()
	if r.unwound {
		r.mu.Unlock()
		log.Debug("cleanup ledger already unwound")
		return
	}
	r.unwound = true
	actions := r.actions
	r.actions = nil
	r.mu.Unlock()

	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		log.Debugf("running cleanup action '%s'", a.name)
		if err := a.fn(); err != nil {
			log.Infof("cleanup action '%s' failed: %s", a.name, err)
		}
	}
}
