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

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kbridge/kbridge/cmd"
	"github.com/kbridge/kbridge/cmd/up"
	"github.com/kbridge/kbridge/pkg/config"
	kErrors "github.com/kbridge/kbridge/pkg/errors"
	"github.com/kbridge/kbridge/pkg/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log.Init(logrus.WarnLevel)
	var logLevel string

	root := &cobra.Command{
		Use:           fmt.Sprintf("%s COMMAND [ARG...]", config.GetBinaryName()),
		Short:         "Run local programs as if they were inside your cluster",
		SilenceErrors: true,
		PersistentPreRun: func(ccmd *cobra.Command, args []string) {
			log.SetLevel(logLevel)
			ccmd.SilenceUsage = true
		},
	}

	root.PersistentFlags().StringVarP(&logLevel, "loglevel", "l", "warn", "amount of information outputted (debug, info, warn, error)")
	root.AddCommand(cmd.Version())
	root.AddCommand(cmd.Doctor())
	root.AddCommand(up.Up())

	if err := root.Execute(); err != nil {
		var exitErr kErrors.ExitError
		if errors.As(err, &exitErr) {
			// the payload's own exit code is the session's exit code
			os.Exit(exitErr.Code)
		}

		log.Fail(err.Error())
		var uErr kErrors.UserError
		if errors.As(err, &uErr) && len(uErr.Hint) > 0 {
			log.Hint("    %s", uErr.Hint)
		}
		os.Exit(1)
	}
}
