// Package log provides structured, colored logging for the ledger node.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers, rebuilt by every Init.
var (
	Chain  zerolog.Logger
	RPC    zerolog.Logger
	Wallet zerolog.Logger
	Keys   zerolog.Logger
	Index  zerolog.Logger
)

func init() {
	Init(Options{Level: "info"})
}

// Options configures Init.
type Options struct {
	Level string
	JSON  bool
	// Output receives console logs. Nil means stdout.
	Output io.Writer
	// File adds a size-rotated JSON log file next to the console output.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Init replaces the global and component loggers.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	if opts.File != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		})
	}

	Logger = zerolog.New(out).Level(parseLevel(opts.Level)).With().Timestamp().Logger()
	Chain = WithComponent("chain")
	RPC = WithComponent("rpc")
	Wallet = WithComponent("wallet")
	Keys = WithComponent("keys")
	Index = WithComponent("index")
}

// WithComponent returns a logger with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"disabled": zerolog.Disabled,
}

// ValidLevel reports whether level is a level name Init understands.
func ValidLevel(level string) bool {
	_, ok := levels[strings.ToLower(level)]
	return ok
}

// parseLevel falls back to info for unknown names.
func parseLevel(level string) zerolog.Level {
	if l, ok := levels[strings.ToLower(level)]; ok {
		return l
	}
	return zerolog.InfoLevel
}
