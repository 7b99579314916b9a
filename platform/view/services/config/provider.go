/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	viperutil "github.com/hyperledger-labs/iou-smart-client/platform/view/services/config/viper"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/events"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/events/simple"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/view"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// CmdRoot is both the name of the configuration file and the root of every key
	CmdRoot = "iou"
	// EnvPrefix prefixes the environment variables overriding configuration keys.
	// IOU_SESSION_TIMEOUT overrides iou.session.timeout.
	EnvPrefix = "IOU"
	// PathEnv overrides the directories searched for the configuration file
	PathEnv = "IOU_CFG_PATH"

	MergeConfigEventTopic = "iou.mergeConfig.event.topic"
)

var (
	IDKey                = Join(CmdRoot, "id")
	NameKey              = Join(CmdRoot, "name")
	NotaryKey            = Join(CmdRoot, "notary")
	PersistenceTypeKey   = Join(CmdRoot, "persistence", "type")
	PersistenceOptsKey   = Join(CmdRoot, "persistence", "opts")
	KVSCacheSizeKey      = Join(CmdRoot, "kvs", "cache", "size")
	SessionTimeoutKey    = Join(CmdRoot, "session", "timeout")
	FinalityTimeoutKey   = Join(CmdRoot, "finality", "timeout")
	WebAddressKey        = Join(CmdRoot, "web", "address")
	MetricsEnabledKey    = Join(CmdRoot, "metrics", "enabled")
	TracingProviderKey   = Join(CmdRoot, "tracing", "provider")
	LoggingSpecKey       = Join(CmdRoot, "logging", "spec")
	LoggingFormatKey     = Join(CmdRoot, "logging", "format")
	IdentityKey          = Join(CmdRoot, "identity")
	IdentityAnonymousKey = Join(CmdRoot, "identity", "anonymous")
	IdentityKeyFileKey   = Join(CmdRoot, "identity", "key", "file")
)

const (
	DefaultTimeout       = time.Minute
	DefaultPersistence   = "memory"
	DefaultLoggingSpec   = "info"
	DefaultLoggingFormat = "console"
)

type OnMergeConfigEventHandler interface {
	OnMergeConfig()
}

// Provider gives access to the configuration of a node
type Provider struct {
	confPath    string
	Backend     *viper.Viper
	eventSystem events.EventSystem

	mergeConfigMutex sync.Mutex
}

// NewProvider loads iou.yaml from confPath, then from IOU_CFG_PATH or the working directory
func NewProvider(confPath string) (*Provider, error) {
	p := newProvider(confPath)
	if err := p.initViper(); err != nil {
		return nil, err
	}
	if err := p.Backend.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, errors.Errorf("could not find config file, "+
				"please make sure that %s is set to a path which contains %s.yaml", PathEnv, CmdRoot)
		}
		return nil, errors.WithMessagef(err, "error when reading %s config file", CmdRoot)
	}
	if err := p.substituteEnv(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewProviderFromBytes loads a YAML configuration held in memory
func NewProviderFromBytes(raw []byte) (*Provider, error) {
	p := newProvider("")
	p.Backend.SetConfigType("yaml")
	if err := p.Backend.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, errors.Wrap(err, "error when reading configuration")
	}
	if err := p.substituteEnv(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewProviderFromMap loads a configuration already decoded, for example one entry of a network file
func NewProviderFromMap(m map[string]interface{}) (*Provider, error) {
	p := newProvider("")
	if err := p.Backend.MergeConfigMap(m); err != nil {
		return nil, errors.Wrap(err, "error when reading configuration")
	}
	if err := p.substituteEnv(); err != nil {
		return nil, err
	}
	return p, nil
}

func newProvider(confPath string) *Provider {
	v := viper.New()
	v.SetDefault(SessionTimeoutKey, DefaultTimeout)
	v.SetDefault(FinalityTimeoutKey, DefaultTimeout)
	v.SetDefault(PersistenceTypeKey, DefaultPersistence)
	v.SetDefault(LoggingSpecKey, DefaultLoggingSpec)
	v.SetDefault(LoggingFormatKey, DefaultLoggingFormat)
	return &Provider{
		confPath:    confPath,
		Backend:     v,
		eventSystem: simple.NewEventBus(),
	}
}

// GetProvider returns the config provider registered in sp.
// It panics, if no instance is found.
func GetProvider(sp view.ServiceProvider) *Provider {
	s, err := sp.GetService(reflect.TypeOf((*Provider)(nil)))
	if err != nil {
		panic(err)
	}
	return s.(*Provider)
}

// ID returns the node identifier, falling back to iou.name
func (p *Provider) ID() string {
	if id := p.GetString(IDKey); len(id) != 0 {
		return id
	}
	return p.GetString(NameKey)
}

func (p *Provider) GetDuration(key string) time.Duration {
	return p.Backend.GetDuration(key)
}

func (p *Provider) GetBool(key string) bool {
	return p.Backend.GetBool(key)
}

func (p *Provider) GetInt(key string) int {
	return p.Backend.GetInt(key)
}

func (p *Provider) GetString(key string) string {
	return p.Backend.GetString(key)
}

func (p *Provider) GetStringSlice(key string) []string {
	return p.Backend.GetStringSlice(key)
}

func (p *Provider) UnmarshalKey(key string, rawVal interface{}) error {
	return viperutil.EnhancedExactUnmarshal(p.Backend, key, rawVal)
}

func (p *Provider) IsSet(key string) bool {
	return p.Backend.IsSet(key)
}

// GetPath returns the path stored under key, relative paths are resolved against the config file directory
func (p *Provider) GetPath(key string) string {
	return p.TranslatePath(p.Backend.GetString(key))
}

func (p *Provider) TranslatePath(path string) string {
	if path == "" {
		return ""
	}
	return TranslatePath(filepath.Dir(p.Backend.ConfigFileUsed()), path)
}

func (p *Provider) ConfigFileUsed() string {
	return p.Backend.ConfigFileUsed()
}

func (p *Provider) MergeConfig(raw []byte) error {
	// only one writer at the time
	p.mergeConfigMutex.Lock()
	defer p.mergeConfigMutex.Unlock()

	if err := p.Backend.MergeConfig(bytes.NewReader(raw)); err != nil {
		return err
	}
	p.eventSystem.Publish(&events.GenericEvent{EventTopic: MergeConfigEventTopic})
	return nil
}

func (p *Provider) OnMergeConfig(handler OnMergeConfigEventHandler) {
	p.eventSystem.Subscribe(MergeConfigEventTopic, &eventListener{handler: handler})
}

// substituteEnv overrides keys with the IOU_ environment variables, because viper
// doesn't do that for UnmarshalKey values.
func (p *Provider) substituteEnv() error {
	prefix := EnvPrefix + "_"
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, prefix) || strings.HasPrefix(e, PathEnv+"=") {
			continue
		}
		env := strings.Split(e, "=")
		key, val := env[0], strings.Join(env[1:], "=")
		if len(val) == 0 {
			continue
		}
		key = Join(CmdRoot, strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, prefix), "_", ".")))

		keys := strings.Split(key, ".")
		parent := strings.Join(keys[:len(keys)-1], ".")
		if !p.Backend.IsSet(parent) {
			logger.Debugf("applying %s, parent not found: %s", env[0], parent)
			p.Backend.Set(key, val)
			continue
		}
		if len(p.Backend.GetStringMap(key)) > 0 {
			logger.Warnf("skipping %s: cannot override maps", env[0])
			continue
		}

		root := p.Backend.GetStringMap(keys[0])
		if err := setDeepValue(root, keys, val); err != nil {
			return errors.Wrapf(err, "error when substituting %s", env[0])
		}
		p.Backend.Set(keys[0], root)
		logger.Debugf("applying %s", env[0])
	}
	return nil
}

func setDeepValue(m map[string]any, keys []string, value any) error {
	if len(keys) < 2 {
		return errors.New("can't set root key")
	}
	current := m
	for i := 1; i < len(keys)-1; i++ {
		next, ok := current[keys[i]].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[keys[i]] = next
		}
		current = next
	}
	current[keys[len(keys)-1]] = value
	return nil
}

func (p *Provider) initViper() error {
	if len(p.confPath) != 0 {
		p.Backend.AddConfigPath(p.confPath)
	}
	if altPath := os.Getenv(PathEnv); altPath != "" {
		if !dirExists(altPath) {
			return errors.Errorf("%s %s does not exist", PathEnv, altPath)
		}
		p.Backend.AddConfigPath(altPath)
	} else {
		p.Backend.AddConfigPath("./")
	}
	p.Backend.SetConfigName(CmdRoot)
	return nil
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.IsDir()
}

func TranslatePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

type eventListener struct {
	handler OnMergeConfigEventHandler
}

func (e *eventListener) OnReceive(events.Event) {
	e.handler.OnMergeConfig()
}
