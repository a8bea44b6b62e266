package logutil

import (
	"fmt"

	"github.com/decred/slog"
)

// prefixLogger is a logger that tags every line with a fixed prefix.
type prefixLogger struct {
	log    slog.Logger
	prefix string
}

func (p *prefixLogger) Tracef(format string, params ...any) {
	p.log.Tracef(p.prefix+format, params...)
}

func (p *prefixLogger) Debugf(format string, params ...any) {
	p.log.Debugf(p.prefix+format, params...)
}

func (p *prefixLogger) Infof(format string, params ...any) {
	p.log.Infof(p.prefix+format, params...)
}

func (p *prefixLogger) Warnf(format string, params ...any) {
	p.log.Warnf(p.prefix+format, params...)
}

func (p *prefixLogger) Errorf(format string, params ...any) {
	p.log.Errorf(p.prefix+format, params...)
}

func (p *prefixLogger) Criticalf(format string, params ...any) {
	p.log.Criticalf(p.prefix+format, params...)
}

// args prepends the prefix to the operands of the non-formatting methods.
func (p *prefixLogger) args(v []any) []any {
	return append([]any{p.prefix}, v...)
}

func (p *prefixLogger) Trace(v ...any)    { p.log.Trace(p.args(v)...) }
func (p *prefixLogger) Debug(v ...any)    { p.log.Debug(p.args(v)...) }
func (p *prefixLogger) Info(v ...any)     { p.log.Info(p.args(v)...) }
func (p *prefixLogger) Warn(v ...any)     { p.log.Warn(p.args(v)...) }
func (p *prefixLogger) Error(v ...any)    { p.log.Error(p.args(v)...) }
func (p *prefixLogger) Critical(v ...any) { p.log.Critical(p.args(v)...) }

// Level returns the current logging level of the underlying logger.
func (p *prefixLogger) Level() slog.Level {
	return p.log.Level()
}

// SetLevel changes the logging level of the underlying logger.
func (p *prefixLogger) SetLevel(level slog.Level) {
	p.log.SetLevel(level)
}

// PrefixLogger returns a logger that writes to log with every message
// prefixed by "[prefix] ", where prefix is built from format and args.
func PrefixLogger(log slog.Logger, format string, args ...any) slog.Logger {
	prefix := "[" + fmt.Sprintf(format, args...) + "] "
	return &prefixLogger{log: log, prefix: prefix}
}
