// Package logging provides a thin, prefix-tagged wrapper around glog, used
// throughout this repository instead of bare log/fmt.Printf calls.
package logging

import (
	"fmt"

	"github.com/golang/glog"
)

// PrefixLogger tags every log line with a prefix, optionally chained from a
// parent logger, making it easy to trace which segment/container a log line
// originated from.
type PrefixLogger struct {
	prefix string
}

// NewPrefixLogger returns a new logger with the given prefix.
func NewPrefixLogger(prefix string) *PrefixLogger {
	return &PrefixLogger{prefix: createPrefixStr(prefix)}
}

// NewPrefixLoggerWithParent returns a new logger whose prefix is chained
// after the parent's, so nested components (container -> segment ->
// aggregator) remain traceable from the logs alone.
func NewPrefixLoggerWithParent(prefix string, parent *PrefixLogger) *PrefixLogger {
	actual := createPrefixStr(prefix)
	if parent != nil {
		actual = parent.GetPrefix() + " " + actual
	}
	return &PrefixLogger{prefix: actual}
}

func (l *PrefixLogger) GetPrefix() string {
	return l.prefix
}

func (l *PrefixLogger) Infof(format string, args ...interface{}) {
	glog.InfoDepth(1, fmt.Sprintf("%s %s", l.prefix, fmt.Sprintf(format, args...)))
}

func (l *PrefixLogger) Errorf(format string, args ...interface{}) {
	glog.ErrorDepth(1, fmt.Sprintf("%s %s", l.prefix, fmt.Sprintf(format, args...)))
}

func (l *PrefixLogger) Warningf(format string, args ...interface{}) {
	glog.WarningDepth(1, fmt.Sprintf("%s %s", l.prefix, fmt.Sprintf(format, args...)))
}

func (l *PrefixLogger) Fatalf(format string, args ...interface{}) {
	glog.FatalDepth(1, fmt.Sprintf("%s %s", l.prefix, fmt.Sprintf(format, args...)))
}

func (l *PrefixLogger) VInfof(v uint, format string, args ...interface{}) {
	if glog.V(glog.Level(v)) {
		glog.InfoDepth(1, fmt.Sprintf("%s %s", l.prefix, fmt.Sprintf(format, args...)))
	}
}

func createPrefixStr(prefix string) string {
	return "{" + prefix + "}"
}
