package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// NewServiceLogger returns the console logger used by the serve commands.
// With a non-empty logFile, entries are also appended to that file as JSON.
// The returned func closes the file.
func NewServiceLogger(debug bool, logFile string) (*zap.Logger, func() error, error) {
	console := NewLogger(debug)
	if logFile == "" {
		return console, func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := New(WithDebug(debug), WithJSON(true), WithWriter(f))
	return Multi(console, file), f.Close, nil
}
