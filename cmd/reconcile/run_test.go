// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand_Flags(t *testing.T) {
	opts := &rootOptions{}
	cmd := newRunCommand(opts)

	require.NoError(t, cmd.ParseFlags([]string{"--skip-lock", "--timeout", "45s"}))

	skip, err := cmd.Flags().GetBool("skip-lock")
	require.NoError(t, err)
	assert.True(t, skip)

	timeout, err := cmd.Flags().GetDuration("timeout")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, timeout)
}

func TestRunCommand_RejectsNegativeTimeout(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"run", "--timeout=-1s"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--timeout")
}

func TestRunCommand_MissingConfig(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	root := newRootCommand()
	root.SetArgs([]string{"run"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load configuration")
}

func TestRunCommand_RejectsArgs(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"run", "extra"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	assert.Error(t, root.Execute())
}
