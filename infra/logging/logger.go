package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a JSON slog.Logger writing to a rotating file under dir.
// With console set, output also goes to stdout. The engine binary must
// keep console off: its stdout carries protocol replies and its stderr
// carries the event feed, so a stray log line would corrupt a channel.
func New(dir, name, level string, console bool) *slog.Logger {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return slog.New(slog.DiscardHandler)
	}

	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(dir, name+".log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	var writer io.Writer = fileLogger
	if console {
		writer = io.MultiWriter(os.Stdout, fileLogger)
	}

	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: lvl}))
}
