package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Multi fans out entries to every logger.
func Multi(loggers ...*zap.Logger) *zap.Logger {
	cores := make([]zapcore.Core, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			cores = append(cores, l.Core())
		}
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
