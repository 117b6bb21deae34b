// Package logging provides the level-gated info/diagnostic helpers used
// throughout the node. Informational output is only emitted when the
// configuration file's log_enabled key is true; diagnostics always go
// to standard error regardless of that setting.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var (
	infoLog     = log.New(os.Stdout, "", log.Ldate|log.Ltime)
	diagLog     = log.New(os.Stderr, "", log.Ldate|log.Ltime)
	enabled     = false
	minVerbose  = LevelInfo
)

// Init configures the package from the config file's log_enabled value.
// The verbosity of informational output (Debug vs Info) can still be
// raised with KAVA_LOG_LEVEL for local debugging.
func Init(logEnabled bool) {
	enabled = logEnabled
	switch strings.ToLower(os.Getenv("KAVA_LOG_LEVEL")) {
	case "debug":
		minVerbose = LevelDebug
	default:
		minVerbose = LevelInfo
	}
}

// Debug and Info are informational: silenced unless log_enabled is true.
func Debug(format string, args ...any) { info(LevelDebug, format, args...) }
func Info(format string, args ...any)  { info(LevelInfo, format, args...) }

func info(level Level, format string, args ...any) {
	if !enabled || level < minVerbose {
		return
	}
	infoLog.Printf("[%s] %s", levelNames[level], fmt.Sprintf(format, args...))
}

// Warn and Error are diagnostics: always written to standard error,
// independent of log_enabled.
func Warn(format string, args ...any)  { diag(LevelWarn, format, args...) }
func Error(format string, args ...any) { diag(LevelError, format, args...) }

func diag(level Level, format string, args ...any) {
	diagLog.Printf("[%s] %s", levelNames[level], fmt.Sprintf(format, args...))
}
