// Package log holds the process-wide zerolog logger and the per-component
// loggers derived from it.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "15:04:05"

// Logger is the root logger. Component loggers are rebuilt from it by Init.
var Logger zerolog.Logger

// Component loggers.
var (
	Registry zerolog.Logger
	Router   zerolog.Logger
	Server   zerolog.Logger
	Storage  zerolog.Logger
	Keystore zerolog.Logger
	Provider zerolog.Logger
)

var levels = map[string]zerolog.Level{
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"disabled": zerolog.Disabled,
	"off":      zerolog.Disabled,
}

func init() {
	Logger = New(console(os.Stdout), "info")
	rebuild()
}

// Init replaces the root logger. Console output is colored unless jsonOutput
// is set. A non-empty file additionally receives JSON lines.
func Init(level string, jsonOutput bool, file string) error {
	var out io.Writer = os.Stdout
	if !jsonOutput {
		out = console(os.Stdout)
	}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return err
		}
		out = zerolog.MultiLevelWriter(out, f)
	}
	Logger = New(out, level)
	rebuild()
	return nil
}

// New builds a timestamped logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, level string) zerolog.Logger {
	lvl, ok := levels[level]
	if !ok {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// ValidLevel reports whether Init understands level.
func ValidLevel(level string) bool {
	_, ok := levels[level]
	return ok
}

// WithComponent returns a child of Logger tagged with component.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithNetwork tags a component logger with a network name as well.
func WithNetwork(component, network string) zerolog.Logger {
	return Logger.With().Str("component", component).Str("network", network).Logger()
}

func console(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
}

func rebuild() {
	Registry = WithComponent("registry")
	Router = WithComponent("router")
	Server = WithComponent("server")
	Storage = WithComponent("storage")
	Keystore = WithComponent("keystore")
	Provider = WithComponent("provider")
}
