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

package utils

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/kbridge/kbridge/pkg/log"
)

// AskYesNo prompts on stdout and reads a yes/no answer from in, reprompting
// until one is given
func AskYesNo(q string, in io.Reader) (bool, error) {
	r := bufio.NewReader(in)
	for {
		fmt.Print(q)
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return false, err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}

		log.Fail("input must be 'y' or 'n'")
		if err != nil {
			return false, err
		}
	}
}
