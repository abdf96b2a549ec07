package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"strings"
)

type Option = zap.Option

const ZapConsoleLevel = "ZAP_CONSOLE_LOG_LEVEL"
const ZapFileLevel = "ZAP_LOG_LEVEL"
const ZapFileEncoder = "ZAP_LOG_ENCODER"

func errorLevelFn(level zapcore.Level) bool {
	return level >= zap.ErrorLevel
}

// 默认是DEBUG, "disabled" 表示关闭ERROR以下的输出
func toZapLevel(level string) zapcore.Level {
	minLevel := zapcore.DebugLevel
	envLevel := strings.ToLower(strings.TrimSpace(level))
	if envLevel == "" {
		return zap.DebugLevel
	} else if envLevel == "disabled" {
		return zap.ErrorLevel
	} else if envLevel == "warning" {
		return zap.WarnLevel
	} else if err := minLevel.UnmarshalText([]byte(envLevel)); err != nil {
		minLevel = zap.DebugLevel
	}

	return minLevel
}

func makeEncoder(encoder string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	switch strings.ToLower(encoder) {
	case "json":
		return zapcore.NewJSONEncoder(encoderConfig)
	default:
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
}
