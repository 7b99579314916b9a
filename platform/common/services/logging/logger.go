/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Logger provides logging API
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Panicf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	IsEnabledFor(level zapcore.Level) bool
	Named(name string) Logger
	With(args ...interface{}) Logger
	Zap() *zap.Logger
}

// Recorder gives access to the entries produced by a test logger
type Recorder = observer.ObservedLogs

// MustGetLogger returns a named logger bound to the process-wide logging configuration.
// The level of the logger follows the LogSpec passed to Init, also when Init is invoked later.
func MustGetLogger(loggerName string) Logger {
	l := zap.New(&dynamicCore{}, zap.AddCaller(), zap.AddCallerSkip(1)).Named(loggerName)
	return &logger{SugaredLogger: l.Sugar(), name: loggerName}
}

// NewTestLogger returns a logger that records every entry at debug level and above
func NewTestLogger(tb testing.TB, name string) (Logger, *Recorder) {
	core, recorder := observer.New(zapcore.DebugLevel)
	l := zap.New(core).Named(name)
	tb.Cleanup(func() { _ = l.Sync() })
	return &logger{SugaredLogger: l.Sugar(), name: name, fixed: true}, recorder
}

type logger struct {
	*zap.SugaredLogger
	name string
	// fixed loggers do not consult the global level spec
	fixed bool
}

func (l *logger) Warningf(format string, args ...interface{}) {
	l.SugaredLogger.Warnf(format, args...)
}

func (l *logger) IsEnabledFor(level zapcore.Level) bool {
	if l.fixed {
		return l.SugaredLogger.Desugar().Core().Enabled(level)
	}
	return current().levels.Level(l.name).Enabled(level)
}

func (l *logger) Named(name string) Logger {
	full := name
	if len(l.name) != 0 {
		full = l.name + "." + name
	}
	return &logger{SugaredLogger: l.SugaredLogger.Named(name), name: full, fixed: l.fixed}
}

func (l *logger) With(args ...interface{}) Logger {
	return &logger{SugaredLogger: l.SugaredLogger.With(args...), name: l.name, fixed: l.fixed}
}

func (l *logger) Zap() *zap.Logger {
	return l.SugaredLogger.Desugar()
}
