package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DebugLogger routes component-tagged debug messages from every package into zerolog
type DebugLogger struct {
	logger zerolog.Logger
}

// Global debug logger instance
var globalDebugLogger *DebugLogger

// parseLevel maps a config level name onto zerolog
func parseLevel(name string) zerolog.Level {
	switch strings.ToUpper(name) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewDebugLogger writes console-formatted entries to out at the given level
func NewDebugLogger(out io.Writer, level zerolog.Level, noColor bool) *DebugLogger {
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}).Level(level).With().Timestamp().Logger()

	return &DebugLogger{logger: logger}
}

// componentLevel picks the level for a component tag. Lifecycle and
// performance components are informational; per-frame chatter is debug.
func componentLevel(component string) zerolog.Level {
	switch {
	case strings.HasSuffix(component, "ERROR"):
		return zerolog.ErrorLevel
	case strings.HasSuffix(component, "WARN"):
		return zerolog.WarnLevel
	}

	switch component {
	case "INFO", "PERF", "SESSION", "HTTP", "CAPTURE", "STORE":
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

// debugMsg logs message under component, tagged with the session when given
func (dl *DebugLogger) debugMsg(component, message string, sessionID ...string) {
	event := dl.logger.WithLevel(componentLevel(component)).Str("component", component)
	if len(sessionID) > 0 && sessionID[0] != "" {
		event = event.Str("session", sessionID[0])
	}
	event.Msg(message)
}

// debugMsg is the global convenience function for unified debug logging
func debugMsg(component, message string, sessionID ...string) {
	if globalDebugLogger != nil {
		globalDebugLogger.debugMsg(component, message, sessionID...)
	} else {
		// Fallback if logger not initialized
		fmt.Fprintf(os.Stderr, "[%s][%s] %s\n", time.Now().Format("15:04:05.000"), component, message)
	}
}
