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

// Package utils has small helpers shared by the commands.
package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	sp "github.com/briandowns/spinner"
	"github.com/kbridge/kbridge/pkg/log"
)

// Spinner shows progress through the activation stages. When disabled via
// KBRIDGE_DISABLE_SPINNER each stage is printed as a plain line instead,
// which keeps CI logs readable.
type Spinner struct {
	sp      *sp.Spinner
	enabled bool
}

// NewSpinner returns a Spinner for the given stage message
func NewSpinner(msg string) *Spinner {
	enabled := true
	if v := os.Getenv("KBRIDGE_DISABLE_SPINNER"); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			log.Yellow("'%s' is not a valid value for KBRIDGE_DISABLE_SPINNER", v)
		}
		enabled = !disabled
	}

	s := sp.New(sp.CharSets[14], 100*time.Millisecond)
	s.HideCursor = true
	s.Suffix = " " + capitalize(msg)
	return &Spinner{sp: s, enabled: enabled}
}

// Start starts the spinner
func (s *Spinner) Start() {
	if !s.enabled {
		fmt.Println(strings.TrimSpace(s.sp.Suffix))
		return
	}
	s.sp.Start()
}

// Stop stops the spinner
func (s *Spinner) Stop() {
	if s.enabled {
		s.sp.Stop()
	}
}

// Update changes the stage message
func (s *Spinner) Update(msg string) {
	s.sp.Suffix = " " + capitalize(msg)
	if !s.enabled {
		fmt.Println(strings.TrimSpace(s.sp.Suffix))
	}
}

func capitalize(msg string) string {
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
