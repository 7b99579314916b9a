/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type identityConfig struct {
	Anonymous bool
	Key       string
	Peers     []string
}

func TestReadFile(t *testing.T) {
	p, err := NewProvider("./testdata")
	require.NoError(t, err)
	testBasics(t, p)
	testMerge(t, p)
}

func TestMissingFile(t *testing.T) {
	_, err := NewProvider("./nowhere")
	assert.Error(t, err)
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("IOU_SESSION_TIMEOUT", "10s")
	t.Setenv("IOU_PERSISTENCE_OPTS_PATH", "/tmp/other")
	t.Setenv("IOU_WEB_ADDRESS", "") // empty env vars are disregarded
	t.Setenv("IOU_NON_EXISTENT", "new")
	t.Setenv("IOU_KVS", "cannot override maps")

	p, err := NewProvider("./testdata")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, p.GetDuration(SessionTimeoutKey))
	assert.Equal(t, "127.0.0.1:9001", p.GetString(WebAddressKey))
	assert.Equal(t, "new", p.GetString("iou.non.existent"))
	assert.Equal(t, 200, p.GetInt(KVSCacheSizeKey))

	var opts driver.Opts
	require.NoError(t, p.UnmarshalKey(PersistenceOptsKey, &opts))
	assert.Equal(t, "/tmp/other", opts.Path)
	assert.True(t, opts.SkipPragmas)
	assert.Equal(t, 3, opts.MaxOpenConns)

	// siblings of the substituted key survive
	assert.Equal(t, "sqlite", p.GetString(PersistenceTypeKey))
}

func TestFromBytesAndDefaults(t *testing.T) {
	p, err := NewProviderFromBytes([]byte("iou:\n  name: bob\n"))
	require.NoError(t, err)

	assert.Equal(t, "bob", p.ID())
	assert.Equal(t, DefaultTimeout, p.GetDuration(SessionTimeoutKey))
	assert.Equal(t, DefaultTimeout, p.GetDuration(FinalityTimeoutKey))
	assert.Equal(t, "memory", p.GetString(PersistenceTypeKey))
	assert.Equal(t, "", p.GetPath(WebAddressKey))
	assert.False(t, p.IsSet(KVSCacheSizeKey))

	_, err = NewProviderFromBytes([]byte("iou: [unbalanced"))
	assert.Error(t, err)
}

func TestFromMap(t *testing.T) {
	p, err := NewProviderFromMap(map[string]interface{}{
		"iou": map[string]interface{}{
			"name":    "notary",
			"notary":  true,
			"session": map[string]interface{}{"timeout": "3s"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "notary", p.ID())
	assert.True(t, p.GetBool(NotaryKey))
	assert.Equal(t, 3*time.Second, p.GetDuration(SessionTimeoutKey))
	assert.Equal(t, DefaultTimeout, p.GetDuration(FinalityTimeoutKey))
}

func TestUnmarshalErrors(t *testing.T) {
	p, err := NewProviderFromBytes([]byte("iou:\n  identity:\n    key:\n      file: ./testdata/missing.pem\n"))
	require.NoError(t, err)

	var c identityConfig
	assert.Error(t, p.UnmarshalKey(IdentityKey, &c))
	assert.Error(t, p.UnmarshalKey(IdentityKey, c))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "iou.session.timeout", Join("iou", ".session.", " timeout"))
	assert.Equal(t, "iou", Join("iou", "", " . "))
	assert.Equal(t, "", Join())
}

func testBasics(t *testing.T, p *Provider) {
	assert.Equal(t, "alice", p.ID())
	assert.Equal(t, 5*time.Second, p.GetDuration(SessionTimeoutKey))
	assert.Equal(t, DefaultTimeout, p.GetDuration(FinalityTimeoutKey))
	assert.Equal(t, "info:view.manager=debug", p.GetString(LoggingSpecKey))
	assert.Equal(t, "logfmt", p.GetString(LoggingFormatKey))
	assert.True(t, p.GetBool(IdentityAnonymousKey))

	abs, err := filepath.Abs("testdata/data/alice")
	require.NoError(t, err)
	assert.Equal(t, abs, p.GetPath(Join(PersistenceOptsKey, "path")))

	var c identityConfig
	require.NoError(t, p.UnmarshalKey(IdentityKey, &c))
	raw, err := os.ReadFile("./testdata/key.pem")
	require.NoError(t, err)
	assert.Equal(t, string(raw), c.Key)
	assert.Equal(t, []string{"bob", "charlie"}, c.Peers)
}

func testMerge(t *testing.T, p *Provider) {
	assert.Empty(t, p.GetString("iou.extra.greeting"))

	wg := sync.WaitGroup{}
	wg.Add(1)
	p.OnMergeConfig(&mergeConfigHandler{wg: &wg})

	raw, err := os.ReadFile("./testdata/merge.yaml")
	require.NoError(t, err)
	require.NoError(t, p.MergeConfig(raw))
	wg.Wait()

	assert.Equal(t, "hello world", p.GetString("iou.extra.greeting"))
	assert.Equal(t, 20*time.Second, p.GetDuration(SessionTimeoutKey))
	assert.Equal(t, "alice", p.ID())
}

type mergeConfigHandler struct {
	wg *sync.WaitGroup
}

func (m *mergeConfigHandler) OnMergeConfig() {
	m.wg.Done()
}
