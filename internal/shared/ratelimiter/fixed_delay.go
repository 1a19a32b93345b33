package ratelimiter

import (
	"context"
	"time"
)

// FixedDelay はバッチ間に一定時間だけ待機します。
type FixedDelay struct {
	delay time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFixedDelay は delay だけ待機する FixedDelay を返します。delay が0以下なら待機しません。
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{delay: delay, sleep: Sleep}
}

// Wait は設定された時間だけ待機します。
func (f *FixedDelay) Wait(ctx context.Context) error {
	if f.delay <= 0 {
		return nil
	}
	return f.sleep(ctx, f.delay)
}

// Delay は設定された待機時間を返します。
func (f *FixedDelay) Delay() time.Duration {
	return f.delay
}
