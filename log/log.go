// Copyright 2024 The avalanche-tools authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log is a small leveled-logger facade used throughout the adf
// package and its cmd/adfdump CLI, in place of a hard dependency on a
// full-featured logging framework. It mirrors the shape of
// github.com/saferwall/pe/log: a Logger interface, a level filter, and
// a Helper with printf-style methods per level.
package log

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// Level is a logging severity.
type Level int

// Levels, lowest to highest severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal sink every helper writes through.
type Logger interface {
	Log(level Level, msg string) error
}

// stdLogger writes every record to an underlying io.Writer via the
// standard library's log.Logger.
type stdLogger struct {
	mu  sync.Mutex
	std *log.Logger
}

// NewStdLogger returns a Logger that writes one line per record to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{std: log.New(w, "", log.LstdFlags)}
}

func (l *stdLogger) Log(level Level, msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.std.Printf("[%s] %s", level, msg)
	return nil
}

// FilterOption configures a filtering Logger built by NewFilter.
type FilterOption func(*filter)

// FilterLevel drops any record below the given level.
func FilterLevel(level Level) FilterOption {
	return func(f *filter) { f.level = level }
}

type filter struct {
	next  Logger
	level Level
}

// NewFilter wraps next with a Logger that drops records below the level
// configured by the given options.
func NewFilter(next Logger, opts ...FilterOption) Logger {
	f := &filter{next: next, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, msg string) error {
	if level < f.level {
		return nil
	}
	return f.next.Log(level, msg)
}

// Helper adds printf-style convenience methods over a Logger, the way
// callers in this module actually use it (pe.File.logger.Errorf(...)).
type Helper struct {
	logger Logger
}

// NewHelper wraps logger in printf-style convenience methods.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, args ...any) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, fmt.Sprintf(format, args...))
}

// Debugf logs at LevelDebug.
func (h *Helper) Debugf(format string, args ...any) { h.log(LevelDebug, format, args...) }

// Infof logs at LevelInfo.
func (h *Helper) Infof(format string, args ...any) { h.log(LevelInfo, format, args...) }

// Warnf logs at LevelWarn.
func (h *Helper) Warnf(format string, args ...any) { h.log(LevelWarn, format, args...) }

// Errorf logs at LevelError.
func (h *Helper) Errorf(format string, args ...any) { h.log(LevelError, format, args...) }
