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
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/kbridge/kbridge/cmd/utils"
	"github.com/kbridge/kbridge/pkg/config"
	"github.com/kbridge/kbridge/pkg/log"
	"github.com/skratchdot/open-golang/open"
)

const (
	issuesURL = "https://github.com/kbridge/kbridge/issues/new"

	// GitHub rejects URLs past ~8k; keep room for the title and fields
	maxReportBody = 6000
)

// recoverCrash is the single recovery boundary around the session. An
// unexpected fault becomes a crash report: the traceback plus the session
// log are written to disk and the user is offered a pre-filled issue.
func (up *upContext) recoverCrash(errp *error) {
	r := recover()
	if r == nil {
		return
	}

	stack := debug.Stack()
	report := fmt.Sprintf("kbridge %s\npanic: %v\n\n%s\n--- session log ---\n%s",
		config.VersionString, r, stack, log.Capture())

	path := filepath.Join(config.GetSessionHome(up.Session.ID), "crash.txt")
	if err := os.WriteFile(path, []byte(report), 0600); err != nil {
		log.Infof("failed to write crash report: %s", err)
		path = ""
	}

	fmt.Fprintf(os.Stderr, "panic: %v\n\n%s\n", r, stack)
	log.Fail("kbridge hit an unexpected fault: %v", r)
	if path != "" {
		log.Information("A crash report was written to %s", path)
	}

	answer, err := utils.AskYesNo("Would you like to open a pre-filled issue in your browser? [y/n] ", os.Stdin)
	if err == nil && answer {
		if err := open.Run(prefilledIssueURL(fmt.Sprint(r), report)); err != nil {
			log.Infof("failed to open the browser: %s", err)
			log.Information("You can file the issue manually at %s", issuesURL)
		}
	}

	*errp = fmt.Errorf("unexpected fault: %v", r)
}

func prefilledIssueURL(title, report string) string {
	if len(report) > maxReportBody {
		report = report[:maxReportBody] + "\n[truncated]"
	}
	v := url.Values{}
	v.Set("title", fmt.Sprintf("crash: %s", title))
	v.Set("body", fmt.Sprintf("```\n%s\n```", report))
	return fmt.Sprintf("%s?%s", issuesURL, v.Encode())
}
