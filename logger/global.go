package logger

import (
	"sync"
)

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
	fallbackOnce sync.Once
	fallback     *Logger
)

func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger 未设置时返回一个只输出到控制台的logger
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	fallbackOnce.Do(func() {
		var err error
		if fallback, err = NewLogger(DefaultLoggerOptions()); err != nil {
			fallback = NewNop()
		}
	})
	return fallback
}

// BuildGlobalLogger 新建全局用的Logger
func BuildGlobalLogger(options LoggerOptions) (*Logger, error) {
	logger, err := NewLogger(options)
	if err != nil {
		return nil, err
	}
	SetGlobalLogger(logger)
	return logger, nil
}
