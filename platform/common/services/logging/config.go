/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"go.uber.org/zap/zapcore"
)

const (
	ConsoleFormat = "console"
	JSONFormat    = "json"
	LogfmtFormat  = "logfmt"
)

type Config struct {
	// Format selects the encoder: console (default), json or logfmt.
	Format string
	// LogSpec determines the log levels that are enabled for the logging system.
	// The spec is a colon separated list of segments. A segment either names a level,
	// and becomes the default, or has the form logger1,logger2=level.
	//
	// If LogSpec is not provided, loggers will be enabled at the INFO level.
	LogSpec string
	// Writer is the sink for encoded log records.
	//
	// If a Writer is not provided, os.Stderr will be used as the log sink.
	Writer io.Writer
}

type state struct {
	levels *LevelSpec
	core   zapcore.Core
}

var (
	stateMutex sync.RWMutex
	global     = newState(Config{})
)

// Init configures the process-wide logging system.
// Loggers obtained through MustGetLogger pick up the new configuration immediately.
func Init(c Config) error {
	levels, err := ParseSpec(c.LogSpec)
	if err != nil {
		return err
	}
	s := newState(c)
	s.levels = levels

	stateMutex.Lock()
	defer stateMutex.Unlock()
	global = s
	return nil
}

// MustInit is like Init but panics on an invalid spec
func MustInit(c Config) {
	if err := Init(c); err != nil {
		panic(err)
	}
}

func current() *state {
	stateMutex.RLock()
	defer stateMutex.RUnlock()
	return global
}

func newState(c Config) *state {
	w := c.Writer
	if w == nil {
		w = os.Stderr
	}
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(c.Format) {
	case JSONFormat:
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	case LogfmtFormat:
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zaplogfmt.NewEncoder(cfg)
	default:
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	return &state{
		levels: &LevelSpec{defaultLevel: zapcore.InfoLevel},
		core:   zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), zapcore.DebugLevel),
	}
}

// LevelSpec maps logger names to their enabled level
type LevelSpec struct {
	defaultLevel zapcore.Level
	levels       map[string]zapcore.Level
}

// ParseSpec parses a spec in the form described by Config.LogSpec
func ParseSpec(spec string) (*LevelSpec, error) {
	ls := &LevelSpec{defaultLevel: zapcore.InfoLevel, levels: map[string]zapcore.Level{}}
	spec = strings.TrimSpace(spec)
	if len(spec) == 0 {
		return ls, nil
	}
	for _, segment := range strings.Split(spec, ":") {
		parts := strings.Split(segment, "=")
		switch len(parts) {
		case 1:
			lvl, err := parseLevel(parts[0])
			if err != nil {
				return nil, errors.Wrapf(err, "invalid log spec [%s]", spec)
			}
			ls.defaultLevel = lvl
		case 2:
			lvl, err := parseLevel(parts[1])
			if err != nil {
				return nil, errors.Wrapf(err, "invalid log spec [%s]", spec)
			}
			for _, name := range strings.Split(parts[0], ",") {
				if len(name) == 0 {
					return nil, errors.Errorf("invalid log spec [%s]: empty logger name", spec)
				}
				ls.levels[name] = lvl
			}
		default:
			return nil, errors.Errorf("invalid log spec [%s]", spec)
		}
	}
	return ls, nil
}

// Level returns the level for the named logger.
// The most specific dotted prefix wins.
func (s *LevelSpec) Level(name string) zapcore.Level {
	for n := name; len(n) > 0; {
		if lvl, ok := s.levels[n]; ok {
			return lvl
		}
		i := strings.LastIndex(n, ".")
		if i < 0 {
			break
		}
		n = n[:i]
	}
	return s.defaultLevel
}

func parseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warning":
		return zapcore.WarnLevel, nil
	default:
		err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s))))
		return lvl, err
	}
}

// dynamicCore resolves the encoder core and the logger level at every write
type dynamicCore struct {
	fields []zapcore.Field
}

func (c *dynamicCore) Enabled(zapcore.Level) bool { return true }

func (c *dynamicCore) With(fields []zapcore.Field) zapcore.Core {
	clone := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	clone = append(clone, c.fields...)
	return &dynamicCore{fields: append(clone, fields...)}
}

func (c *dynamicCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if current().levels.Level(ent.LoggerName).Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *dynamicCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	core := current().core
	if len(c.fields) > 0 {
		core = core.With(c.fields)
	}
	return core.Write(ent, fields)
}

func (c *dynamicCore) Sync() error {
	return current().core.Sync()
}
