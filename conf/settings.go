package conf

import (
	"gopkg.in/go-mixed/deadline.v1/logger"
	"os"
	timeUtils "gopkg.in/go-mixed/deadline.v1/utils/time"
	"time"
)

// Settings deadline-run 的配置
type Settings struct {
	// Deadline 秒, 可以是小数
	Deadline        float64 `json:"deadline" yaml:"deadline" validate:"gt=0"`
	CancelOnTimeout bool    `json:"cancel_on_timeout" yaml:"cancel_on_timeout"`
	// WaitAbandoned 退出前等待超时的任务的秒数, 0 表示不等待
	WaitAbandoned  float64 `json:"wait_abandoned" yaml:"wait_abandoned" validate:"gte=0"`
	OutputEncoding string  `json:"output_encoding" yaml:"output_encoding"`

	Logger  logger.LoggerOptions `json:"logger" yaml:"logger"`
	Metrics MetricsOptions       `json:"metrics" yaml:"metrics"`
}

type MetricsOptions struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Subsystem string `json:"subsystem" yaml:"subsystem"`
	// Listen 为空时不提供 /metrics
	Listen string `json:"listen" yaml:"listen" validate:"omitempty,hostname_port"`
}

// DefaultSettings 控制台默认只输出WARN及以上, 避免与命令的输出混在一起. 环境变量 ZAP_CONSOLE_LOG_LEVEL 优先
func DefaultSettings() Settings {
	loggerOptions := logger.DefaultLoggerOptions()
	if os.Getenv(logger.ZapConsoleLevel) == "" {
		loggerOptions.ConsoleMinLevel = "warning"
	}

	return Settings{
		Deadline:        30,
		CancelOnTimeout: false,
		WaitAbandoned:   0,
		Logger:          loggerOptions,
		Metrics: MetricsOptions{
			Namespace: "deadline",
		},
	}
}

func (s *Settings) DeadlineDuration() time.Duration {
	return timeUtils.Seconds(s.Deadline)
}

func (s *Settings) WaitAbandonedDuration() time.Duration {
	return timeUtils.Seconds(s.WaitAbandoned)
}
