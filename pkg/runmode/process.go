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
	"time"

	"github.com/kbridge/kbridge/pkg/log"
	ps "github.com/mitchellh/go-ps"
	"github.com/shirou/gopsutil/process"
)

// terminateTree terminates a process and all of its descendants, children
// first
func terminateTree(pid int) {
	pList, err := ps.Processes()
	if err != nil {
		log.Infof("error getting list of processes: %s", err)
		pList = nil
	}

	terminateChildren(pid, pList)

	if err := terminate(pid, true); err != nil {
		log.Debugf("error terminating process %d: %s", pid, err)
	}
}

func terminateChildren(parent int, pList []ps.Process) {
	for _, pr := range pList {
		if pr.PPid() != parent {
			continue
		}
		terminateChildren(pr.Pid(), pList)
		if err := terminate(pr.Pid(), false); err != nil {
			log.Debugf("error terminating process %d: %s", pr.Pid(), err)
		}
	}
}

func terminate(pid int, wait bool) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	if err := p.Terminate(); err != nil {
		return err
	}

	if wait {
		isRunning, err := p.IsRunning()
		if err != nil {
			return err
		}
		for isRunning {
			time.Sleep(10 * time.Millisecond)
			isRunning, err = p.IsRunning()
			if err != nil {
				return err
			}
		}
	}

	return nil
}
