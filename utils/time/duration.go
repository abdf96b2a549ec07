package timeUtils

import (
	"fmt"
	"github.com/pkg/errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// 2^63, float64 可以精确表示
const maxDurationNanos = float64(1 << 63)

// Seconds 将秒数(支持小数)转为 time.Duration, 精度为纳秒. 超出 time.Duration 的范围时取最大(小)值
//
//	Seconds(2.5) == 2500 * time.Millisecond
func Seconds(s float64) time.Duration {
	ns := math.Round(s * float64(time.Second))
	switch {
	case ns >= maxDurationNanos:
		return time.Duration(math.MaxInt64)
	case ns < -maxDurationNanos:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(ns)
}

// ParseDuration 解析时长, 支持两种格式:
//  1. 纯数字, 单位为秒, 可以带小数, 比如: "2.5"
//  2. Go的时长格式, 比如: "2.5s", "300ms", "1m30s"
//
// 本函数只解析格式, 不校验正负
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, errors.Errorf("invalid duration \"%s\"", s)
		}
		if ns := math.Round(f * float64(time.Second)); ns >= maxDurationNanos || ns < -maxDurationNanos {
			return 0, errors.Errorf("duration \"%s\" out of range, the maximum is %.0f seconds", s, time.Duration(math.MaxInt64).Seconds())
		}
		return Seconds(f), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration \"%s\"", s)
	}
	return d, nil
}

// DurationToString 输出 hh:mm:ss 或 hh:mm:ss.SSS
func DurationToString(t time.Duration) string {
	h := int64(t / time.Hour)
	m := int64(t/time.Minute) - h*60

	s := t.Seconds() - float64(h*3600+m*60)
	precision := s - float64(int64(s)) // 小数位

	if precision < 0.001 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, int64(s)) // 没小数
	}
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}
