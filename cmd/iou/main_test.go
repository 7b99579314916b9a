/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	cmd := versionCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs(nil)
	assert.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Version: latest")
	assert.Contains(t, out.String(), "Go version:")
}

func TestNetworkWithoutConfig(t *testing.T) {
	assert.EqualError(t, runNetwork(""), "network file not set, use --config")
	assert.ErrorContains(t, runNetwork("testdata/missing.yaml"), "failed reading network file [testdata/missing.yaml]")
}
