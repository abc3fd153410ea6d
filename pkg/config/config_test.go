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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHomeHonorsOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KBRIDGE_FOLDER", dir)

	assert.Equal(t, dir, GetHome())
}

func TestStateFileLifecycle(t *testing.T) {
	t.Setenv("KBRIDGE_FOLDER", t.TempDir())

	require.NoError(t, UpdateStateFile("s1", Validating))

	path := filepath.Join(GetSessionHome("s1"), stateFile)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(Validating), string(b))

	require.NoError(t, UpdateStateFile("s1", Running))
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(Running), string(b))

	require.NoError(t, DeleteStateFile("s1"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateStateFileRequiresASession(t *testing.T) {
	assert.Error(t, UpdateStateFile("", Running))
}
