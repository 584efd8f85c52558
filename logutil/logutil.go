// Package logutil holds the shared logger for the output subsystem.
//
// The logger is a no-op by default so the library stays silent when
// embedded; simulation drivers install their own with SetLogger.
package logutil

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Logger returns the subsystem logger. Never nil.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return logger
}

// SetLogger installs l as the subsystem logger. A nil l restores the no-op
// logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()

	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}
