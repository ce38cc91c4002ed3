// Package utils 提供 retry/backoff/serialize/time 等通用工具
package utils

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"
)

// Retry 固定间隔重试
func Retry(maxAttempts int, delay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < maxAttempts-1 {
			time.Sleep(delay)
		}
	}
	return lastErr
}

// RetryWithBackoff 指数退避重试
func RetryWithBackoff(maxAttempts int, initialDelay time.Duration, maxDelay time.Duration, fn func() error) error {
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < maxAttempts-1 {
			time.Sleep(delay)
			// 指数退避
			delay = time.Duration(float64(delay) * 2)
			if delay > maxDelay {
				delay = maxDelay
			}
		}
	}
	return lastErr
}

// BackoffDelay 计算第 attempt 次重试的退避间隔（attempt 从 0 开始），带 ±20% 抖动
func BackoffDelay(attempt int, minDelay, maxDelay time.Duration) time.Duration {
	if minDelay <= 0 {
		minDelay = time.Second
	}
	delay := minDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			delay = maxDelay
			break
		}
	}
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}

	// 抖动避免重试风暴
	jitter := time.Duration(rand.Int63n(int64(delay)/5 + 1))
	if rand.Intn(2) == 0 {
		return delay - jitter
	}
	return delay + jitter
}

// SleepContext 可取消的 sleep，context 取消时提前返回其错误
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ToJSON 序列化为 JSON 字符串，失败返回空串
func ToJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// FromJSON 从 JSON 字符串反序列化
func FromJSON(data string, v interface{}) error {
	return json.Unmarshal([]byte(data), v)
}

// TimeNow 当前时间毫秒时间戳
func TimeNow() int64 {
	return time.Now().UnixMilli()
}

// FormatTime 格式化时间
func FormatTime(t time.Time, layout string) string {
	if layout == "" {
		layout = time.RFC3339
	}
	return t.Format(layout)
}

// ParseTime 解析时间字符串
func ParseTime(timeStr string, layout string) (time.Time, error) {
	if layout == "" {
		layout = time.RFC3339
	}
	return time.Parse(layout, timeStr)
}
