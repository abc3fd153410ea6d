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

package log

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	redString    = color.New(color.FgHiRed).SprintfFunc()
	greenString  = color.New(color.FgGreen).SprintfFunc()
	yellowString = color.New(color.FgHiYellow).SprintfFunc()
	blueString   = color.New(color.FgHiBlue).SprintfFunc()

	coloredErrorSymbol       = color.New(color.BgHiRed, color.FgBlack).Sprint(" x ")
	coloredSuccessSymbol     = color.New(color.BgGreen, color.FgBlack).Sprint(" ✓ ")
	coloredInformationSymbol = color.New(color.BgHiBlue, color.FgBlack).Sprint(" i ")
)

// Yellow writes a line in yellow
func Yellow(format string, args ...interface{}) {
	fmt.Fprintln(os.Stdout, yellowString(format, args...))
	if log.file != nil {
		log.file.Warnf(format, args...)
	}
}

// Green writes a line in green
func Green(format string, args ...interface{}) {
	fmt.Fprintln(os.Stdout, greenString(format, args...))
	if log.file != nil {
		log.file.Infof(format, args...)
	}
}

// BlueString returns a string in blue
func BlueString(format string, args ...interface{}) string {
	return blueString(format, args...)
}

// Success prints a message with the success symbol first, and the text in green
func Success(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", coloredSuccessSymbol, greenString(format, args...))
	if log.file != nil {
		log.file.Infof(format, args...)
	}
}

// Information prints a message with the information symbol first, and the text in blue
func Information(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", coloredInformationSymbol, blueString(format, args...))
	if log.file != nil {
		log.file.Infof(format, args...)
	}
}

// Fail prints a message with the error symbol first, and the text in red
func Fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", coloredErrorSymbol, redString(format, args...))
	if log.file != nil {
		log.file.Errorf(format, args...)
	}
}

// Hint prints a message with the text in blue
func Hint(format string, args ...interface{}) {
	fmt.Fprintln(os.Stdout, blueString(format, args...))
	if log.file != nil {
		log.file.Infof(format, args...)
	}
}
