// logger.go - Structured logging for the resource-machine node
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog logger writing human-readable output to the
// console and, if logFile is set, JSON lines to the file. The returned
// closer owns the file handle.
func NewLogger(level, logFile string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	var writer io.Writer = console
	var closer io.Closer
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = zerolog.MultiLevelWriter(console, f)
		closer = f
	}

	logger := zerolog.New(writer).Level(lvl).With().Timestamp().Str("service", "rmnode").Logger()
	return logger, closer, nil
}
