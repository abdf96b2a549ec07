package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 解析fields，支持以下两种格式，可以混合使用，遇到不对称的的情况，会忽略该key
//  1. zap.Field
//  2. [key, value, ...]，key必须是string，value可以是任意类型
//     eg: "key1", "value1", zap.String("key2", "value2"), "key3", "value3", ...
func parseFields(fields []any) []zap.Field {
	result := make([]zap.Field, 0, len(fields)/2+1)
	for i := 0; i < len(fields); {
		switch k := fields[i].(type) {
		case zap.Field:
			result = append(result, k)
			i++
		case string:
			if i+1 >= len(fields) { // 最后一个key没有value，忽略
				return result
			}
			result = append(result, zap.Any(k, fields[i+1]))
			i += 2
		default: // 不识别的类型，忽略
			i++
		}
	}

	return result
}

// With 派生一个附加了fields的Logger
func (log *Logger) With(fields ...any) *Logger {
	return &Logger{
		logger: log.logger.With(parseFields(fields)...),
		shared: log.shared,
	}
}

func (log *Logger) WithOptions(options ...Option) *Logger {
	return &Logger{
		logger: log.logger.WithOptions(options...),
		shared: log.shared,
	}
}

// Named adds a new path segment to the logger's name. Segments are joined by
// periods. By default, Loggers are unnamed.
func (log *Logger) Named(s string) *Logger {
	return &Logger{
		logger: log.logger.Named(s),
		shared: log.shared,
	}
}

// Level reports the minimum enabled level for this logger.
func (log *Logger) Level() zapcore.Level {
	return zapcore.LevelOf(log.logger.Core())
}

// Log logs a message at the specified level.
func (log *Logger) Log(lvl zapcore.Level, msg string, fields ...any) {
	log.logger.Log(lvl, msg, parseFields(fields)...)
}

func (log *Logger) Debug(msg string, fields ...any) {
	log.logger.Debug(msg, parseFields(fields)...)
}

func (log *Logger) Info(msg string, fields ...any) {
	log.logger.Info(msg, parseFields(fields)...)
}

func (log *Logger) Warn(msg string, fields ...any) {
	log.logger.Warn(msg, parseFields(fields)...)
}

func (log *Logger) Error(msg string, fields ...any) {
	log.logger.Error(msg, parseFields(fields)...)
}

// Fatal logs a message at FatalLevel, then calls os.Exit(1).
func (log *Logger) Fatal(msg string, fields ...any) {
	log.logger.Fatal(msg, parseFields(fields)...)
}

// Sync calls the underlying Core's Sync method, flushing any buffered log
// entries. Applications should take care to call Sync before exiting.
func (log *Logger) Sync() error {
	return log.logger.Sync()
}

func (log *Logger) Core() zapcore.Core {
	return log.logger.Core()
}
