package logger

import (
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"
	"io"
)

// ToWriter 将写入的内容按行输出到日志中, 使用完需要 Close, 不然最后一行不完整的内容会丢失
func (log *Logger) ToWriter(level zapcore.Level, fields ...any) io.WriteCloser {
	return &zapio.Writer{
		Log:   log.With(fields...).ZapLogger(),
		Level: level,
	}
}
